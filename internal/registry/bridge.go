package registry

import (
	"context"

	"github.com/google/uuid"

	"mosaic/internal/playback"
	"mosaic/internal/resolver"
	"mosaic/internal/supervisor"
)

// StreamSession pairs a server-side session handle with the engine that
// plays its output. The registry never sees the process itself.
type StreamSession struct {
	ID     uuid.UUID
	Engine playback.Engine
}

// Supervisor is the process supervisor surface the registry depends on.
type Supervisor interface {
	// StartSession spawns a transcoder for sourceURL and returns its handle.
	StartSession(ctx context.Context, sourceURL string, command []string) (*StreamSession, error)

	// StopSession terminates the session. Stopping an unknown or already
	// terminated handle is a no-op.
	StopSession(ctx context.Context, id uuid.UUID) error
}

// Resolver decides passthrough versus transcoding for a stream URL.
type Resolver interface {
	Resolve(ctx context.Context, streamURL string, opts resolver.Options) (*resolver.Resolution, error)
}

// SupervisorBridge adapts the concrete supervisor to the registry interface.
type SupervisorBridge struct {
	sup *supervisor.Supervisor
}

// NewSupervisorBridge wraps sup.
func NewSupervisorBridge(sup *supervisor.Supervisor) *SupervisorBridge {
	return &SupervisorBridge{sup: sup}
}

var _ Supervisor = (*SupervisorBridge)(nil)

// StartSession spawns a process and binds a session engine to its output.
func (b *SupervisorBridge) StartSession(ctx context.Context, sourceURL string, command []string) (*StreamSession, error) {
	sess, err := b.sup.Start(ctx, sourceURL, command)
	if err != nil {
		return nil, err
	}
	return &StreamSession{
		ID:     sess.ID,
		Engine: playback.NewSessionEngine(sess),
	}, nil
}

// StopSession stops the session by handle.
func (b *SupervisorBridge) StopSession(ctx context.Context, id uuid.UUID) error {
	return b.sup.Stop(ctx, id)
}
