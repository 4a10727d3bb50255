// Package playback binds one stream source to one sink. An Adapter owns a
// single engine instance; the registry creates one adapter per slot and no
// other component ever holds the engine directly.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sentinel errors returned by the playback adapter.
var (
	// ErrUnsupportedPlayback indicates no decode engine is available for the
	// requested source.
	ErrUnsupportedPlayback = errors.New("playback not supported for source")

	// ErrPlayback indicates the engine rejected the stream on attach.
	ErrPlayback = errors.New("playback engine rejected stream")

	// ErrUpstream indicates the stream died mid-playback.
	ErrUpstream = errors.New("upstream stream ended abnormally")

	// ErrAlreadyAttached indicates the adapter is already playing.
	ErrAlreadyAttached = errors.New("adapter already attached")
)

// Source describes what an engine should play.
type Source struct {
	// URL is the upstream address, used by pull engines and for logging.
	URL string

	// UserAgent is sent on upstream requests where the engine makes any.
	UserAgent string
}

// Engine produces the byte stream for one source. Open must fail fast when
// the stream cannot be played; the returned reader delivers media bytes
// until the stream ends or ctx is canceled.
type Engine interface {
	Open(ctx context.Context, src Source) (io.ReadCloser, error)
}

// FatalFunc is invoked once when an attached stream dies mid-playback.
type FatalFunc func(err error)

// Adapter couples one engine to one sink with volume and mute state.
type Adapter struct {
	engine  Engine
	logger  *slog.Logger
	onFatal FatalFunc

	mu       sync.Mutex
	attached bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastErr  error
	muted    bool
	volume   float64

	bytesRead atomic.Uint64
}

// New creates an Adapter around engine. onFatal may be nil.
func New(engine Engine, logger *slog.Logger, onFatal FatalFunc) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		engine:  engine,
		logger:  logger.With(slog.String("component", "playback")),
		onFatal: onFatal,
		volume:  1.0,
	}
}

// Attach opens the source and starts pumping its bytes into sink. A failed
// attach leaves the adapter detached and the sink untouched; the caller is
// still responsible for releasing any server-side resource it started.
func (a *Adapter) Attach(ctx context.Context, src Source, sink io.Writer) error {
	if a.engine == nil {
		return fmt.Errorf("%w: no engine configured", ErrUnsupportedPlayback)
	}

	a.mu.Lock()
	if a.attached {
		a.mu.Unlock()
		return ErrAlreadyAttached
	}
	a.mu.Unlock()

	// Playback outlives the attach request but keeps its values.
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stream, err := a.engine.Open(playCtx, src)
	if err != nil {
		cancel()
		if errors.Is(err, ErrUnsupportedPlayback) || errors.Is(err, ErrPlayback) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	done := make(chan struct{})
	a.mu.Lock()
	a.attached = true
	a.cancel = cancel
	a.done = done
	a.lastErr = nil
	a.mu.Unlock()

	go a.pump(playCtx, stream, sink, done)
	return nil
}

// pump copies stream bytes to the sink until the stream ends or playback is
// detached.
func (a *Adapter) pump(ctx context.Context, stream io.ReadCloser, sink io.Writer, done chan struct{}) {
	defer close(done)
	defer stream.Close()

	_, err := io.Copy(&countingWriter{w: sink, n: &a.bytesRead}, stream)

	a.mu.Lock()
	wasDetached := !a.attached
	a.attached = false
	if err != nil && ctx.Err() == nil {
		if errors.Is(err, ErrUpstream) {
			a.lastErr = err
		} else {
			a.lastErr = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	lastErr := a.lastErr
	a.mu.Unlock()

	if lastErr != nil && !wasDetached {
		a.logger.Warn("playback ended abnormally", slog.String("error", lastErr.Error()))
		if a.onFatal != nil {
			a.onFatal(lastErr)
		}
	}
}

// Detach stops playback and waits for the pump to finish. Idempotent.
func (a *Adapter) Detach() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.attached = false
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Attached reports whether playback is live.
func (a *Adapter) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached
}

// Err returns the last fatal playback error, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// SetVolume sets the playback volume, clamped to [0, 1].
func (a *Adapter) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	a.mu.Lock()
	a.volume = v
	a.mu.Unlock()
}

// Volume returns the current volume.
func (a *Adapter) Volume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// SetMuted sets the mute flag.
func (a *Adapter) SetMuted(muted bool) {
	a.mu.Lock()
	a.muted = muted
	a.mu.Unlock()
}

// Muted returns the mute flag.
func (a *Adapter) Muted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.muted
}

// BytesRead returns the number of stream bytes delivered to the sink.
func (a *Adapter) BytesRead() uint64 {
	return a.bytesRead.Load()
}

type countingWriter struct {
	w io.Writer
	n *atomic.Uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.n.Add(uint64(n))
	}
	return n, err
}
