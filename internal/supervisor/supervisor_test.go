package supervisor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSupervisor(t *testing.T, startGrace, killGrace time.Duration) *Supervisor {
	t.Helper()

	s := New(Config{
		StartGracePeriod: startGrace,
		KillGracePeriod:  killGrace,
	}, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// syncBuffer is a goroutine-safe bytes.Buffer for collecting stream output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func streamInto(t *testing.T, sess *Session) (context.CancelFunc, *syncBuffer) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	buf := &syncBuffer{}
	go func() { _ = sess.StreamTo(ctx, buf) }()
	return cancel, buf
}

func awaitDone(t *testing.T, sess *Session) {
	t.Helper()

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate in time")
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)

	sess, err := s.Start(context.Background(), "http://example.com/live",
		[]string{"sh", "-c", "printf data; sleep 60"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Count())

	_, buf := streamInto(t, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.WaitReady(ctx))
	assert.Equal(t, StateRunning, sess.State())
	assert.Equal(t, "data", buf.String())

	require.NoError(t, s.Stop(ctx, sess.ID))
	awaitDone(t, sess)
	assert.Equal(t, StateTerminated, sess.State())
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_StopIsIdempotent(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)
	ctx := context.Background()

	sess, err := s.Start(ctx, "http://example.com/live",
		[]string{"sh", "-c", "printf data; sleep 60"})
	require.NoError(t, err)
	streamInto(t, sess)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx, sess.ID))
	require.NoError(t, s.Stop(stopCtx, sess.ID))
	require.NoError(t, sess.Stop(stopCtx))

	// Unknown ids are also a no-op.
	require.NoError(t, s.Stop(stopCtx, uuid.New()))
}

func TestSupervisor_StopAfterNaturalExit(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)

	sess, err := s.Start(context.Background(), "http://example.com/short",
		[]string{"sh", "-c", "printf done"})
	require.NoError(t, err)
	streamInto(t, sess)

	awaitDone(t, sess)
	assert.Equal(t, StateTerminated, sess.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx, sess.ID))
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_SpawnFailureLeavesNoSession(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)

	_, err := s.Start(context.Background(), "http://example.com/live",
		[]string{"/nonexistent/transcoder-binary"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawnFailure)
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_EmptyCommand(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)

	_, err := s.Start(context.Background(), "http://example.com/live", nil)
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_NoOutputWithinGraceFailsStart(t *testing.T) {
	s := testSupervisor(t, 200*time.Millisecond, 100*time.Millisecond)

	sess, err := s.Start(context.Background(), "http://example.com/silent",
		[]string{"sleep", "60"})
	require.NoError(t, err)
	streamInto(t, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = sess.WaitReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoOutput)

	awaitDone(t, sess)
	assert.Equal(t, StateTerminated, sess.State())
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_ClientDisconnectTerminatesProcess(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, 500*time.Millisecond)

	sess, err := s.Start(context.Background(), "http://example.com/live",
		[]string{"sh", "-c", "printf data; sleep 60"})
	require.NoError(t, err)
	cancel, _ := streamInto(t, sess)

	ctx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, sess.WaitReady(ctx))

	// Simulated client disconnect.
	cancel()
	awaitDone(t, sess)
	assert.Equal(t, StateTerminated, sess.State())

	s.Reap()
	assert.Equal(t, 0, s.Count())
}

func TestSupervisor_StopBySource(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)
	ctx := context.Background()

	url := "http://example.com/shared"
	first, err := s.Start(ctx, url, []string{"sh", "-c", "printf a; sleep 60"})
	require.NoError(t, err)
	second, err := s.Start(ctx, url, []string{"sh", "-c", "printf b; sleep 60"})
	require.NoError(t, err)
	other, err := s.Start(ctx, "http://example.com/other",
		[]string{"sh", "-c", "printf c; sleep 60"})
	require.NoError(t, err)
	streamInto(t, first)
	streamInto(t, second)
	streamInto(t, other)
	require.Equal(t, 3, s.Count())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.StopBySource(stopCtx, url))
	assert.Equal(t, 1, s.Count())

	// Unknown source is a no-op.
	require.NoError(t, s.StopBySource(stopCtx, "http://example.com/unknown"))
	assert.Equal(t, 1, s.Count())
}

func TestSupervisor_Reap(t *testing.T) {
	s := testSupervisor(t, 5*time.Second, time.Second)

	sess, err := s.Start(context.Background(), "http://example.com/short",
		[]string{"sh", "-c", "printf x"})
	require.NoError(t, err)
	streamInto(t, sess)
	awaitDone(t, sess)

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 1, s.Reap())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0, s.Reap())
}

func TestSupervisor_Close(t *testing.T) {
	s := New(Config{
		StartGracePeriod: 5 * time.Second,
		KillGracePeriod:  500 * time.Millisecond,
	}, testLogger())

	sess, err := s.Start(context.Background(), "http://example.com/live",
		[]string{"sh", "-c", "printf data; sleep 60"})
	require.NoError(t, err)
	streamInto(t, sess)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, StateTerminated, sess.State())

	// Closed supervisors reject new sessions and close again cleanly.
	_, err = s.Start(context.Background(), "http://example.com/live",
		[]string{"sh", "-c", "sleep 1"})
	assert.ErrorIs(t, err, ErrSupervisorClosed)
	require.NoError(t, s.Close())
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateStarting, StateRunning, true},
		{StateStarting, StateStopping, true},
		{StateStarting, StateTerminated, true},
		{StateRunning, StateStopping, true},
		{StateRunning, StateTerminated, true},
		{StateRunning, StateStarting, false},
		{StateStopping, StateTerminated, true},
		{StateStopping, StateRunning, false},
		{StateTerminated, StateStarting, false},
		{StateTerminated, StateStopping, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.canTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(99).String())
}
