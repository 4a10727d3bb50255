package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mosaic/internal/httpclient"
)

// State is the lifecycle state of a stream session.
type State int32

const (
	// StateStarting means the process has been spawned but has not produced
	// output yet.
	StateStarting State = iota

	// StateRunning means the process has produced output and is serving.
	StateRunning

	// StateStopping means a stop has been issued and the process is being
	// torn down.
	StateStopping

	// StateTerminated means the process has exited. Terminal state.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// canTransition reports whether the lifecycle permits moving to the given state.
func (s State) canTransition(to State) bool {
	switch s {
	case StateStarting:
		return to == StateRunning || to == StateStopping || to == StateTerminated
	case StateRunning:
		return to == StateStopping || to == StateTerminated
	case StateStopping:
		return to == StateTerminated
	default:
		return false
	}
}

// Session is one supervised transcoder process.
type Session struct {
	// ID is the runtime handle for this session.
	ID uuid.UUID

	// SourceURL is the upstream URL the process was started for.
	SourceURL string

	// Command is the argv the process was spawned with.
	Command []string

	// StartedAt is when the process was spawned.
	StartedAt time.Time

	killGrace time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stdout   io.ReadCloser
	exitErr  error
	startErr error

	firstOutputOnce sync.Once
	firstOutput     chan struct{}

	done chan struct{}

	monitor *ProcessMonitor
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the process id, or 0 when the process never started.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Done returns a channel closed when the process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// transitionLocked moves the session to a new state. Caller holds s.mu.
func (s *Session) transitionLocked(to State) error {
	if !s.state.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.state = to
	return nil
}

// markOutput records that the process produced its first output, which
// promotes a starting session to running. A session already stopping stays
// stopping.
func (s *Session) markOutput() {
	s.firstOutputOnce.Do(func() {
		close(s.firstOutput)

		s.mu.Lock()
		if s.state == StateStarting {
			s.state = StateRunning
		}
		s.mu.Unlock()

		s.logger.Debug("session produced first output",
			slog.String("session_id", s.ID.String()),
		)
	})
}

// failStart marks the session as having failed to produce output in time.
func (s *Session) failStart() {
	s.mu.Lock()
	if s.startErr == nil {
		s.startErr = ErrNoOutput
	}
	s.mu.Unlock()
}

// WaitReady blocks until the session produces its first output. It returns
// ErrNoOutput when the process exits or is failed before producing any.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.firstOutput:
		return nil
	case <-s.done:
		// Output may have raced the exit; an exited session that produced
		// output still counts as having started.
		select {
		case <-s.firstOutput:
			return nil
		default:
		}
		s.mu.Lock()
		startErr, exitErr := s.startErr, s.exitErr
		s.mu.Unlock()
		if startErr != nil {
			return startErr
		}
		if exitErr != nil {
			return fmt.Errorf("%w: process exited: %v", ErrNoOutput, exitErr)
		}
		return ErrNoOutput
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the recorded failure for this session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	return s.exitErr
}

// waitLoop reaps the process and finalizes the session. Runs in its own
// goroutine for the session's whole life.
func (s *Session) waitLoop() {
	err := s.cmd.Wait()

	if s.monitor != nil {
		s.monitor.Stop()
	}

	s.mu.Lock()
	s.state = StateTerminated
	s.exitErr = err
	s.mu.Unlock()

	close(s.done)
	s.cancel()

	s.logger.Info("session terminated",
		slog.String("session_id", s.ID.String()),
		slog.String("source_url", httpclient.ObfuscateURLString(s.SourceURL)),
		slog.Duration("uptime", time.Since(s.StartedAt)),
		slog.Any("exit_error", err),
	)
}

// Stop tears the session down. It is idempotent and commutes with natural
// exit: stopping an already terminated session is a no-op. SIGTERM is sent
// first; SIGKILL follows after the kill grace period.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return nil
	case StateStopping:
		s.mu.Unlock()
		return s.awaitExit(ctx)
	}
	if err := s.transitionLocked(StateStopping); err != nil {
		s.mu.Unlock()
		return err
	}
	cmd := s.cmd
	s.mu.Unlock()

	s.logger.Debug("stopping session", slog.String("session_id", s.ID.String()))

	if cmd != nil && cmd.Process != nil {
		// Signal errors mean the process is already gone; waitLoop will finish
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(s.killGrace):
		s.logger.Warn("session ignored SIGTERM, killing",
			slog.String("session_id", s.ID.String()),
		)
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	case <-ctx.Done():
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}

	return s.awaitExit(ctx)
}

// awaitExit blocks until the process has exited or the context expires.
func (s *Session) awaitExit(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session exit: %w", ctx.Err())
	}
}

// StreamTo copies process output to w until the process exits or ctx is
// canceled. Cancellation (a client disconnect) terminates the process.
func (s *Session) StreamTo(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()
	if stdout == nil {
		return fmt.Errorf("session %s has no output pipe", s.ID)
	}

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*s.killGrace)
			defer cancel()
			_ = s.Stop(stopCtx)
		case <-s.done:
		case <-watchDone:
		}
	}()

	_, copyErr := io.Copy(&sessionWriter{w: w, session: s}, stdout)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	// The pipe closing under us at process exit is the normal end of stream
	if copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) && !errors.Is(copyErr, fs.ErrClosed) {
		return fmt.Errorf("streaming session output: %w", copyErr)
	}
	return nil
}

// sessionWriter counts output bytes and promotes the session on first output.
type sessionWriter struct {
	w       io.Writer
	session *Session
}

func (sw *sessionWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if n > 0 {
		sw.session.markOutput()
		if sw.session.monitor != nil {
			sw.session.monitor.AddBytesWritten(uint64(n))
		}
	}
	return n, err
}

// Info is a point-in-time snapshot of a session for listings.
type Info struct {
	ID         uuid.UUID     `json:"id"`
	SourceURL  string        `json:"source_url"`
	State      string        `json:"state"`
	PID        int           `json:"pid"`
	StartedAt  time.Time     `json:"started_at"`
	Uptime     time.Duration `json:"uptime"`
	BytesOut   uint64        `json:"bytes_out"`
	CPUPercent float64       `json:"cpu_percent"`
	MemoryRSS  uint64        `json:"memory_rss_bytes"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	info := Info{
		ID:        s.ID,
		SourceURL: s.SourceURL,
		State:     s.State().String(),
		PID:       s.PID(),
		StartedAt: s.StartedAt,
		Uptime:    time.Since(s.StartedAt),
	}
	if s.monitor != nil {
		stats := s.monitor.Stats()
		info.BytesOut = stats.BytesWritten
		info.CPUPercent = stats.CPUPercent
		info.MemoryRSS = stats.MemoryRSSBytes
	}
	return info
}
