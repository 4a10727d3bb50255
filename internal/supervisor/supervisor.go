// Package supervisor owns the lifecycle of child transcoder processes. Each
// transcoding stream session maps to exactly one process; the supervisor
// spawns, tracks, stops, and reaps them.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"mosaic/internal/config"
	"mosaic/internal/httpclient"
)

// Default durations used when the configuration leaves them zero.
const (
	DefaultStartGracePeriod = 15 * time.Second
	DefaultKillGracePeriod  = 5 * time.Second
	DefaultReapSchedule     = "@every 30s"
)

// Config holds supervisor tuning.
type Config struct {
	// StartGracePeriod is how long a spawned process may run without
	// producing output before the start is treated as failed.
	StartGracePeriod time.Duration

	// KillGracePeriod is how long to wait after SIGTERM before SIGKILL.
	KillGracePeriod time.Duration

	// ReapSchedule is the cron schedule for sweeping terminated and dead
	// sessions. Empty disables the background reaper.
	ReapSchedule string
}

// ConfigFrom builds a Config from the application configuration.
func ConfigFrom(cfg config.SupervisorConfig) Config {
	return Config{
		StartGracePeriod: cfg.StartGracePeriod,
		KillGracePeriod:  cfg.KillGracePeriod,
		ReapSchedule:     cfg.ReapSchedule,
	}
}

// Supervisor manages all child transcoder processes.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	bySource map[string]map[uuid.UUID]struct{}
	closed   bool

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Supervisor and starts its background reaper.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartGracePeriod <= 0 {
		cfg.StartGracePeriod = DefaultStartGracePeriod
	}
	if cfg.KillGracePeriod <= 0 {
		cfg.KillGracePeriod = DefaultKillGracePeriod
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "supervisor")),
		sessions: make(map[uuid.UUID]*Session),
		bySource: make(map[string]map[uuid.UUID]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.ReapSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.ReapSchedule, func() { s.Reap() }); err != nil {
			s.logger.Warn("invalid reap schedule, background reaper disabled",
				slog.String("schedule", cfg.ReapSchedule),
				slog.String("error", err.Error()),
			)
			s.cron = nil
		} else {
			s.cron.Start()
		}
	}

	return s
}

// Start spawns a transcoder process for sourceURL with the given argv and
// returns its session in the Starting state. A spawn failure leaves no
// session behind.
func (s *Supervisor) Start(ctx context.Context, sourceURL string, command []string) (*Session, error) {
	if len(command) == 0 {
		return nil, ErrEmptyCommand
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSupervisorClosed
	}
	s.mu.Unlock()

	sessCtx, cancel := context.WithCancel(s.ctx)
	cmd := exec.CommandContext(sessCtx, command[0], command[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailure, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailure, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	sess := &Session{
		ID:          uuid.New(),
		SourceURL:   sourceURL,
		Command:     command,
		StartedAt:   time.Now(),
		killGrace:   s.cfg.KillGracePeriod,
		logger:      s.logger,
		state:       StateStarting,
		cmd:         cmd,
		cancel:      cancel,
		stdout:      stdout,
		firstOutput: make(chan struct{}),
		done:        make(chan struct{}),
	}
	sess.monitor = NewProcessMonitor(cmd.Process.Pid)
	sess.monitor.Start()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	if s.bySource[sourceURL] == nil {
		s.bySource[sourceURL] = make(map[uuid.UUID]struct{})
	}
	s.bySource[sourceURL][sess.ID] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("session started",
		slog.String("session_id", sess.ID.String()),
		slog.String("source_url", httpclient.ObfuscateURLString(sourceURL)),
		slog.String("binary", command[0]),
		slog.Int("pid", cmd.Process.Pid),
	)

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		sess.waitLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.drainStderr(sess, stderr)
	}()
	go func() {
		defer s.wg.Done()
		s.watchStart(sess)
	}()

	return sess, nil
}

// Get returns the session with the given id.
func (s *Supervisor) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Stop stops a session by id. Unknown ids are a no-op so stop stays
// idempotent and commutes with natural process exit.
func (s *Supervisor) Stop(ctx context.Context, id uuid.UUID) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	err := sess.Stop(ctx)
	s.remove(sess)
	return err
}

// StopBySource stops every session pulling from sourceURL. Unknown URLs are
// a no-op.
func (s *Supervisor) StopBySource(ctx context.Context, sourceURL string) error {
	s.mu.RLock()
	var targets []*Session
	for id := range s.bySource[sourceURL] {
		if sess, ok := s.sessions[id]; ok {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	var errs []error
	for _, sess := range targets {
		if err := sess.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		s.remove(sess)
	}
	return errors.Join(errs...)
}

// Sessions returns a snapshot of all tracked sessions.
func (s *Supervisor) Sessions() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// Count returns the number of tracked sessions.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap removes terminated sessions and finalizes sessions whose process has
// died without being noticed. Returns the number of sessions reaped.
func (s *Supervisor) Reap() int {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	reaped := 0
	for _, sess := range all {
		switch sess.State() {
		case StateTerminated:
			s.remove(sess)
			reaped++
		case StateStarting, StateRunning:
			if sess.monitor != nil && !sess.monitor.Alive() {
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.KillGracePeriod)
				_ = sess.Stop(ctx)
				cancel()
				s.remove(sess)
				reaped++
			}
		}
	}

	if reaped > 0 {
		s.logger.Debug("reaped sessions", slog.Int("count", reaped))
	}
	return reaped
}

// Close stops every session concurrently and shuts the supervisor down.
// Idempotent.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*s.cfg.KillGracePeriod)
	defer cancel()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if err := sess.Stop(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			s.remove(sess)
		}(sess)
	}
	wg.Wait()

	s.cancel()
	s.wg.Wait()

	s.logger.Info("supervisor closed", slog.Int("sessions_stopped", len(sessions)))
	return errors.Join(errs...)
}

// remove drops a session from the tracking maps.
func (s *Supervisor) remove(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sess.ID)
	if ids, ok := s.bySource[sess.SourceURL]; ok {
		delete(ids, sess.ID)
		if len(ids) == 0 {
			delete(s.bySource, sess.SourceURL)
		}
	}
}

// watchStart fails the start if the process produces no output within the
// grace period. The session is untracked before the stop is issued so the
// failure is never observable while the session still counts as tracked.
func (s *Supervisor) watchStart(sess *Session) {
	timer := time.NewTimer(s.cfg.StartGracePeriod)
	defer timer.Stop()

	select {
	case <-sess.firstOutput:
	case <-sess.done:
	case <-timer.C:
		s.logger.Warn("session produced no output within grace period, terminating",
			slog.String("session_id", sess.ID.String()),
			slog.Duration("grace_period", s.cfg.StartGracePeriod),
		)
		sess.failStart()
		s.remove(sess)
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.KillGracePeriod)
		defer cancel()
		_ = sess.Stop(ctx)
	}
}

// drainStderr forwards process stderr lines to the log at debug level.
func (s *Supervisor) drainStderr(sess *Session, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Debug("transcoder stderr",
			slog.String("session_id", sess.ID.String()),
			slog.String("line", scanner.Text()),
		)
	}
}
