// Package registry is the central authority for multiview slots. It owns the
// slot collection, enforces the capacity bound and the single-active-slot
// invariant, and sequences stream starts and stops per slot.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mosaic/internal/config"
	"mosaic/internal/models"
	"mosaic/internal/playback"
	"mosaic/internal/resolver"
)

// SinkFactory produces the output sink for a slot's playback.
type SinkFactory func(slotID uuid.UUID) io.Writer

// Option configures a Registry.
type Option func(*Registry)

// WithSinkFactory overrides where slot playback bytes are delivered.
func WithSinkFactory(f SinkFactory) Option {
	return func(r *Registry) { r.sinks = f }
}

// Registry holds all multiview slots behind one mutex. Slot state mutations
// are serialized; the network calls they trigger run outside the lock and
// are fenced by per-slot generation counters.
type Registry struct {
	cfg         config.MultiviewConfig
	resolver    Resolver
	supervisor  Supervisor
	passthrough playback.Engine
	sinks       SinkFactory
	logger      *slog.Logger

	mu    sync.Mutex
	slots map[uuid.UUID]*slot
	order []uuid.UUID
}

// New creates a Registry.
func New(cfg config.MultiviewConfig, res Resolver, sup Supervisor, passthrough playback.Engine, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = 9
	}
	if cfg.StopRequestTimeout <= 0 {
		cfg.StopRequestTimeout = 10 * time.Second
	}

	r := &Registry{
		cfg:         cfg,
		resolver:    res,
		supervisor:  sup,
		passthrough: passthrough,
		sinks:       func(uuid.UUID) io.Writer { return io.Discard },
		logger:      logger.With(slog.String("component", "registry")),
		slots:       make(map[uuid.UUID]*slot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSlot admits a new empty slot. The capacity bound is a hard
// invariant: the call fails without touching state once MaxSlots is reached.
func (r *Registry) CreateSlot(geometry models.SlotGeometry) (SlotView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) >= r.cfg.MaxSlots {
		return SlotView{}, fmt.Errorf("%w: %d slots in use", ErrCapacityExceeded, len(r.slots))
	}

	s := &slot{
		id:        uuid.New(),
		geometry:  geometry,
		state:     SlotEmpty,
		volume:    r.cfg.DefaultVolume,
		createdAt: time.Now(),
	}
	r.slots[s.id] = s
	r.order = append(r.order, s.id)

	r.logger.Debug("slot created",
		slog.String("slot_id", s.id.String()),
		slog.Int("slot_count", len(r.slots)),
	)
	return s.view(), nil
}

// AssignChannel binds a channel to a slot. Any previous session on the slot
// is torn down first; the new start is never issued before the old stop has
// been issued. A failed resolution or start leaves the slot in the failed
// state with no resource held.
func (r *Registry) AssignChannel(ctx context.Context, slotID uuid.UUID, ch ChannelRef, opts resolver.Options) error {
	r.mu.Lock()
	s, ok := r.slots[slotID]
	if !ok {
		r.mu.Unlock()
		return ErrSlotNotFound
	}
	if s.state == SlotStopping {
		r.mu.Unlock()
		return ErrSlotStopping
	}
	s.generation++
	gen := s.generation
	oldAdapter, oldSession := s.adapter, s.session
	s.adapter, s.session = nil, nil
	chCopy := ch
	s.channel = &chCopy
	s.state = SlotStarting
	s.failure = nil
	r.mu.Unlock()

	// The old teardown is awaited, retries included, before the new resolve;
	// its failure only risks an orphan the supervisor's reaper will collect.
	if err := r.release(ctx, oldAdapter, oldSession); err != nil {
		r.logger.Warn("previous session teardown failed",
			slog.String("slot_id", slotID.String()),
			slog.String("error", err.Error()),
		)
	}

	res, err := r.resolver.Resolve(ctx, ch.StreamURL, opts)
	if err != nil {
		r.failSlot(slotID, gen, err)
		return err
	}

	var session *StreamSession
	engine := r.passthrough
	if !res.Passthrough {
		session, err = r.supervisor.StartSession(ctx, res.StreamURL, res.Command)
		if err != nil {
			r.failSlot(slotID, gen, err)
			return err
		}
		engine = session.Engine
	}

	adapter := playback.New(engine, r.logger, r.handleFatal(slotID, gen))
	src := playback.Source{URL: res.StreamURL, UserAgent: res.UserAgent}
	if err := adapter.Attach(ctx, src, r.sinks(slotID)); err != nil {
		// A client-side playback failure still releases the server resource.
		_ = r.release(ctx, nil, session)
		r.failSlot(slotID, gen, err)
		return err
	}

	r.mu.Lock()
	s, ok = r.slots[slotID]
	if !ok || s.generation != gen {
		// Superseded by a newer assignment or a stop while we were starting.
		r.mu.Unlock()
		adapter.Detach()
		_ = r.release(ctx, nil, session)
		r.logger.Debug("assignment superseded", slog.String("slot_id", slotID.String()))
		return nil
	}
	s.adapter = adapter
	s.session = session
	s.state = SlotPlaying
	adapter.SetMuted(s.muted)
	adapter.SetVolume(s.volume)
	r.mu.Unlock()

	r.logger.Info("channel assigned",
		slog.String("slot_id", slotID.String()),
		slog.String("channel", ch.Name),
		slog.Bool("passthrough", res.Passthrough),
	)
	return nil
}

// StopSlot tears down a slot's playback and session. Idempotent: stopping an
// empty slot, or stopping twice, is a no-op success. resetUI additionally
// clears a failed slot's error placeholder.
func (r *Registry) StopSlot(ctx context.Context, slotID uuid.UUID, resetUI bool) error {
	r.mu.Lock()
	s, ok := r.slots[slotID]
	if !ok {
		r.mu.Unlock()
		return ErrSlotNotFound
	}
	if s.state == SlotStopping {
		r.mu.Unlock()
		return nil
	}
	s.generation++
	adapter, session := s.adapter, s.session
	s.adapter, s.session = nil, nil
	s.channel = nil
	if resetUI {
		s.failure = nil
	}
	if adapter == nil && session == nil {
		if s.failure != nil {
			s.state = SlotFailed
		} else {
			s.state = SlotEmpty
		}
		r.mu.Unlock()
		return nil
	}
	s.state = SlotStopping
	r.mu.Unlock()

	err := r.release(ctx, adapter, session)

	r.mu.Lock()
	if s, ok := r.slots[slotID]; ok && s.state == SlotStopping {
		if s.failure != nil {
			s.state = SlotFailed
		} else {
			s.state = SlotEmpty
		}
	}
	r.mu.Unlock()
	return err
}

// RemoveSlot stops a slot and deletes it from the registry. The slot is
// removed even when the teardown reports an error.
func (r *Registry) RemoveSlot(ctx context.Context, slotID uuid.UUID) error {
	err := r.StopSlot(ctx, slotID, true)
	if errors.Is(err, ErrSlotNotFound) {
		return err
	}

	r.mu.Lock()
	delete(r.slots, slotID)
	for i, id := range r.order {
		if id == slotID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return err
}

// SetActive makes slotID the single active slot: its audio is unmuted and
// every other slot is muted. This is the only mutator of the active flag.
func (r *Registry) SetActive(slotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[slotID]; !ok {
		return ErrSlotNotFound
	}
	for id, s := range r.slots {
		active := id == slotID
		s.active = active
		s.muted = !active
		if s.adapter != nil {
			s.adapter.SetMuted(!active)
		}
	}
	return nil
}

// SetAudio adjusts a slot's mute flag and volume. Nil fields are unchanged.
func (r *Registry) SetAudio(slotID uuid.UUID, muted *bool, volume *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if muted != nil {
		s.muted = *muted
		if s.adapter != nil {
			s.adapter.SetMuted(*muted)
		}
	}
	if volume != nil {
		v := *volume
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		s.volume = v
		if s.adapter != nil {
			s.adapter.SetVolume(v)
		}
	}
	return nil
}

// CleanupAll stops every slot concurrently, waits for all teardowns, then
// removes the swept slots. Slots created while the sweep is in flight keep
// their sessions and survive it. Per-slot failures are collected, never
// fatal to the sweep.
func (r *Registry) CleanupAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]uuid.UUID, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if err := r.StopSlot(ctx, id, true); err != nil && !errors.Is(err, ErrSlotNotFound) {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("slot %s: %w", id, err))
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	r.mu.Lock()
	swept := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		s, ok := r.slots[id]
		if !ok {
			continue
		}
		// A slot re-assigned after its stop keeps its new session.
		if s.state == SlotStarting || s.state == SlotPlaying {
			continue
		}
		swept[id] = struct{}{}
		delete(r.slots, id)
	}
	keep := r.order[:0]
	for _, id := range r.order {
		if _, ok := swept[id]; !ok {
			keep = append(keep, id)
		}
	}
	r.order = keep
	r.mu.Unlock()

	r.logger.Info("registry cleaned up",
		slog.Int("slots_stopped", len(ids)),
		slog.Int("failures", len(errs)),
	)
	return errors.Join(errs...)
}

// Snapshot captures the current grid topology. Only geometry, channel
// references, and audio state are captured; process and playback handles are
// re-derived on restore.
func (r *Registry) Snapshot() models.LayoutSlotList {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(models.LayoutSlotList, 0, len(r.order))
	for _, id := range r.order {
		s := r.slots[id]
		ls := models.LayoutSlot{
			Geometry: s.geometry,
			Muted:    s.muted,
			Volume:   s.volume,
			Active:   s.active,
		}
		if s.channel != nil {
			ls.ChannelID = s.channel.ID
			ls.ChannelName = s.channel.Name
			ls.StreamURL = s.channel.StreamURL
		}
		snap = append(snap, ls)
	}
	return snap
}

// Restore replays a snapshot: slots are recreated with fresh sessions.
// Every entry is attempted; failures are collected into the returned error.
func (r *Registry) Restore(ctx context.Context, snap models.LayoutSlotList) error {
	var errs []error
	for i, ls := range snap {
		view, err := r.CreateSlot(ls.Geometry)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}

		muted, volume := ls.Muted, ls.Volume
		if err := r.SetAudio(view.ID, &muted, &volume); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
		}

		if ls.StreamURL != "" {
			ch := ChannelRef{ID: ls.ChannelID, Name: ls.ChannelName, StreamURL: ls.StreamURL}
			if err := r.AssignChannel(ctx, view.ID, ch, resolver.Options{}); err != nil {
				errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, ls.ChannelName, err))
			}
		}
		if ls.Active {
			if err := r.SetActive(view.ID); err != nil {
				errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Slots returns all slots in creation order.
func (r *Registry) Slots() []SlotView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]SlotView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, r.slots[id].view())
	}
	return views
}

// Get returns one slot.
func (r *Registry) Get(slotID uuid.UUID) (SlotView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok {
		return SlotView{}, ErrSlotNotFound
	}
	return s.view(), nil
}

// Count returns the number of slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// release detaches playback and issues the session stop, retrying the stop
// once. Detach always precedes the stop so a decoder is never left attached
// to a dead pipe.
func (r *Registry) release(ctx context.Context, adapter *playback.Adapter, session *StreamSession) error {
	if adapter != nil {
		adapter.Detach()
	}
	if session == nil {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.TeardownRetries; attempt++ {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StopRequestTimeout)
		lastErr = r.supervisor.StopSession(stopCtx, session.ID)
		cancel()
		if lastErr == nil {
			return nil
		}
	}

	r.logger.Error("stop request failed, clearing slot locally",
		slog.String("session_id", session.ID.String()),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("%w: %v", ErrTeardown, lastErr)
}

// failSlot records a failure, unless the slot has moved on to a newer
// generation in the meantime.
func (r *Registry) failSlot(slotID uuid.UUID, gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[slotID]
	if !ok || s.generation != gen {
		return
	}
	s.state = SlotFailed
	s.failure = err
}

// handleFatal builds the callback for mid-stream playback death. It stops
// the slot's session and marks the slot failed, scoped to one slot only.
func (r *Registry) handleFatal(slotID uuid.UUID, gen uint64) playback.FatalFunc {
	return func(streamErr error) {
		r.mu.Lock()
		s, ok := r.slots[slotID]
		if !ok || s.generation != gen {
			r.mu.Unlock()
			return
		}
		s.generation++
		session := s.session
		// The adapter's pump has already exited; only the session needs
		// releasing.
		s.adapter, s.session = nil, nil
		s.state = SlotFailed
		s.failure = streamErr
		r.mu.Unlock()

		r.logger.Warn("slot stream died",
			slog.String("slot_id", slotID.String()),
			slog.String("error", streamErr.Error()),
		)
		_ = r.release(context.Background(), nil, session)
	}
}
