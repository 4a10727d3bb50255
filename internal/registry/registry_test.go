package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/config"
	"mosaic/internal/models"
	"mosaic/internal/playback"
	"mosaic/internal/resolver"
	"mosaic/internal/supervisor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingStream delivers no bytes and ends when closed or canceled.
type blockingStream struct {
	ch   chan struct{}
	once sync.Once
}

func (b *blockingStream) Read(p []byte) (int, error) {
	<-b.ch
	return 0, io.EOF
}

func (b *blockingStream) Close() error {
	b.once.Do(func() { close(b.ch) })
	return nil
}

type fakeEngine struct {
	openErr error
}

func (f *fakeEngine) Open(ctx context.Context, _ playback.Source) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	stream := &blockingStream{ch: make(chan struct{})}
	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()
	return stream, nil
}

type fakeResolver struct {
	passthrough bool
	err         error
	command     []string
}

func (f *fakeResolver) Resolve(_ context.Context, streamURL string, _ resolver.Options) (*resolver.Resolution, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := &resolver.Resolution{
		StreamURL:   streamURL,
		UserAgent:   "test-agent",
		Passthrough: f.passthrough,
	}
	if !f.passthrough {
		res.Command = f.command
		if res.Command == nil {
			res.Command = []string{"transcode", streamURL}
		}
	}
	return res, nil
}

// gatedResolver signals when a resolve enters and holds it until released.
type gatedResolver struct {
	inner   Resolver
	entered chan string
	release chan struct{}
}

func (g *gatedResolver) Resolve(ctx context.Context, streamURL string, opts resolver.Options) (*resolver.Resolution, error) {
	g.entered <- streamURL
	<-g.release
	return g.inner.Resolve(ctx, streamURL, opts)
}

type fakeSupervisor struct {
	mu           sync.Mutex
	running      map[uuid.UUID]string
	started      int
	startErr     error
	engineErr    error
	stopFailures int
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{running: make(map[uuid.UUID]string)}
}

func (f *fakeSupervisor) StartSession(_ context.Context, sourceURL string, _ []string) (*StreamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	id := uuid.New()
	f.running[id] = sourceURL
	return &StreamSession{ID: id, Engine: &fakeEngine{openErr: f.engineErr}}, nil
}

func (f *fakeSupervisor) StopSession(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopFailures > 0 {
		f.stopFailures--
		return errors.New("stop request lost")
	}
	delete(f.running, id)
	return nil
}

// gatedStopSupervisor signals the first stop request and holds every stop
// until released.
type gatedStopSupervisor struct {
	*fakeSupervisor
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStopSupervisor) StopSession(ctx context.Context, id uuid.UUID) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.fakeSupervisor.StopSession(ctx, id)
}

func (f *fakeSupervisor) runningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.running)
}

func (f *fakeSupervisor) runningURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.running))
	for _, u := range f.running {
		urls = append(urls, u)
	}
	return urls
}

func testConfig() config.MultiviewConfig {
	return config.MultiviewConfig{
		MaxSlots:           3,
		DefaultVolume:      1.0,
		TeardownRetries:    1,
		StopRequestTimeout: time.Second,
	}
}

func newTestRegistry(t *testing.T, res Resolver, sup Supervisor) *Registry {
	t.Helper()
	return New(testConfig(), res, sup, &fakeEngine{}, testLogger())
}

func channelRef(name, url string) ChannelRef {
	return ChannelRef{ID: models.NewULID(), Name: name, StreamURL: url}
}

func TestRegistry_CapacityInvariant(t *testing.T) {
	r := newTestRegistry(t, &fakeResolver{passthrough: true}, newFakeSupervisor())

	for i := 0; i < 3; i++ {
		_, err := r.CreateSlot(models.SlotGeometry{Row: i})
		require.NoError(t, err)
	}

	_, err := r.CreateSlot(models.SlotGeometry{Row: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 3, r.Count())
}

func TestRegistry_AssignPassthrough(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{passthrough: true}, sup)

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	require.NoError(t, r.AssignChannel(context.Background(), view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "playing", got.State)
	assert.Equal(t, "News", got.Channel.Name)
	assert.Nil(t, got.SessionID)
	assert.Zero(t, sup.started)
}

func TestRegistry_AssignTranscode(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	require.NoError(t, r.AssignChannel(context.Background(), view.ID,
		channelRef("Sports", "http://example.com/sports"), resolver.Options{}))

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "playing", got.State)
	require.NotNil(t, got.SessionID)
	assert.Equal(t, 1, sup.runningCount())

	require.NoError(t, r.StopSlot(context.Background(), view.ID, true))
	assert.Equal(t, 0, sup.runningCount())

	got, err = r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.State)
	assert.Nil(t, got.Channel)
	assert.Nil(t, got.SessionID)
}

func TestRegistry_StopIsIdempotent(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	// Stopping an empty slot is a no-op success.
	require.NoError(t, r.StopSlot(ctx, view.ID, false))

	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))
	require.NoError(t, r.StopSlot(ctx, view.ID, true))
	first, err := r.Get(view.ID)
	require.NoError(t, err)

	require.NoError(t, r.StopSlot(ctx, view.ID, true))
	second, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.ErrorIs(t, r.StopSlot(ctx, uuid.New(), false), ErrSlotNotFound)
}

func TestRegistry_NoProcessLeak(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.AssignChannel(ctx, view.ID,
			channelRef("Channel", "http://example.com/ch"), resolver.Options{}))
		require.NoError(t, r.StopSlot(ctx, view.ID, true))
	}
	assert.Equal(t, 5, sup.started)
	assert.Equal(t, 0, sup.runningCount())
}

func TestRegistry_ReassignStopsPreviousSession(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("A", "http://example.com/a"), resolver.Options{}))
	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("B", "http://example.com/b"), resolver.Options{}))

	assert.Equal(t, 1, sup.runningCount())
	assert.Equal(t, []string{"http://example.com/b"}, sup.runningURLs())
}

func TestRegistry_FastSwitchCancelsStaleStart(t *testing.T) {
	sup := newFakeSupervisor()
	gated := &gatedResolver{
		inner:   &fakeResolver{},
		entered: make(chan string, 2),
		release: make(chan struct{}),
	}
	r := newTestRegistry(t, gated, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	errX := make(chan error, 1)
	go func() {
		errX <- r.AssignChannel(ctx, view.ID,
			channelRef("X", "http://example.com/x"), resolver.Options{})
	}()
	require.Equal(t, "http://example.com/x", <-gated.entered)

	errY := make(chan error, 1)
	go func() {
		errY <- r.AssignChannel(ctx, view.ID,
			channelRef("Y", "http://example.com/y"), resolver.Options{})
	}()
	require.Equal(t, "http://example.com/y", <-gated.entered)

	close(gated.release)
	require.NoError(t, <-errX)
	require.NoError(t, <-errY)

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "playing", got.State)
	assert.Equal(t, "Y", got.Channel.Name)
	require.Eventually(t, func() bool { return sup.runningCount() == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"http://example.com/y"}, sup.runningURLs())
}

func TestRegistry_SingleActiveSlot(t *testing.T) {
	r := newTestRegistry(t, &fakeResolver{passthrough: true}, newFakeSupervisor())

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		view, err := r.CreateSlot(models.SlotGeometry{Row: i})
		require.NoError(t, err)
		ids = append(ids, view.ID)
	}

	activeCount := func() int {
		n := 0
		for _, v := range r.Slots() {
			if v.Active {
				n++
			}
		}
		return n
	}

	require.NoError(t, r.SetActive(ids[0]))
	require.NoError(t, r.SetActive(ids[2]))
	require.NoError(t, r.SetActive(ids[1]))
	assert.Equal(t, 1, activeCount())

	for _, v := range r.Slots() {
		if v.ID == ids[1] {
			assert.True(t, v.Active)
			assert.False(t, v.Muted)
		} else {
			assert.False(t, v.Active)
			assert.True(t, v.Muted)
		}
	}

	// Removing the active slot leaves zero active slots.
	require.NoError(t, r.RemoveSlot(context.Background(), ids[1]))
	assert.Equal(t, 0, activeCount())

	assert.ErrorIs(t, r.SetActive(uuid.New()), ErrSlotNotFound)
}

func TestRegistry_CleanupAll(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	for i, name := range []string{"A", "B", "C"} {
		view, err := r.CreateSlot(models.SlotGeometry{Row: i})
		require.NoError(t, err)
		require.NoError(t, r.AssignChannel(ctx, view.ID,
			channelRef(name, "http://example.com/"+name), resolver.Options{}))
	}
	require.Equal(t, 3, sup.runningCount())

	require.NoError(t, r.CleanupAll(ctx))
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, sup.runningCount())
}

func TestRegistry_CleanupAllKeepsConcurrentSlots(t *testing.T) {
	sup := newFakeSupervisor()
	gated := &gatedStopSupervisor{
		fakeSupervisor: sup,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	r := newTestRegistry(t, &fakeResolver{}, gated)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)
	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("A", "http://example.com/a"), resolver.Options{}))

	cleanupDone := make(chan error, 1)
	go func() { cleanupDone <- r.CleanupAll(ctx) }()
	<-gated.entered

	// A slot assigned while the sweep is in flight must keep its session.
	late, err := r.CreateSlot(models.SlotGeometry{Row: 1})
	require.NoError(t, err)
	require.NoError(t, r.AssignChannel(ctx, late.ID,
		channelRef("B", "http://example.com/b"), resolver.Options{}))

	close(gated.release)
	require.NoError(t, <-cleanupDone)

	assert.Equal(t, 1, r.Count())
	got, err := r.Get(late.ID)
	require.NoError(t, err)
	assert.Equal(t, "playing", got.State)
	assert.Equal(t, []string{"http://example.com/b"}, sup.runningURLs())

	_, err = r.Get(view.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestRegistry_ProcessExitFailsSlot(t *testing.T) {
	procs := supervisor.New(supervisor.Config{
		StartGracePeriod: 5 * time.Second,
		KillGracePeriod:  500 * time.Millisecond,
	}, testLogger())
	t.Cleanup(func() { _ = procs.Close() })

	res := &fakeResolver{command: []string{"sh", "-c", "printf data"}}
	r := New(testConfig(), res, NewSupervisorBridge(procs), &fakeEngine{}, testLogger())

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)
	require.NoError(t, r.AssignChannel(context.Background(), view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))

	// The transcoder dies on its own; the slot must not stay in playing.
	require.Eventually(t, func() bool {
		got, err := r.Get(view.ID)
		return err == nil && got.State == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Error)
	assert.Nil(t, got.SessionID)
}

func TestRegistry_LayoutRoundTrip(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	geoms := []models.SlotGeometry{{Row: 0, Col: 0}, {Row: 0, Col: 1}}
	for i, name := range []string{"A", "B"} {
		view, err := r.CreateSlot(geoms[i])
		require.NoError(t, err)
		require.NoError(t, r.AssignChannel(ctx, view.ID,
			channelRef(name, "http://example.com/"+name), resolver.Options{}))
	}
	require.NoError(t, r.SetActive(r.Slots()[1].ID))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.NoError(t, r.CleanupAll(ctx))

	require.NoError(t, r.Restore(ctx, snap))
	views := r.Slots()
	require.Len(t, views, 2)
	for i, v := range views {
		assert.Equal(t, geoms[i], v.Geometry)
		assert.Equal(t, "playing", v.State)
		require.NotNil(t, v.Channel)
	}
	assert.Equal(t, "A", views[0].Channel.Name)
	assert.Equal(t, "B", views[1].Channel.Name)
	assert.True(t, views[1].Active)
	assert.Equal(t, 2, sup.runningCount())
}

func TestRegistry_ConfigurationMissing(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{err: resolver.ErrConfigurationMissing}, sup)

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	err = r.AssignChannel(context.Background(), view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrConfigurationMissing)
	assert.Zero(t, sup.started)

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.State)
	assert.NotEmpty(t, got.Error)
}

func TestRegistry_SpawnFailure(t *testing.T) {
	sup := newFakeSupervisor()
	sup.startErr = errors.New("binary missing")
	r := newTestRegistry(t, &fakeResolver{}, sup)

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	err = r.AssignChannel(context.Background(), view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{})
	require.Error(t, err)
	assert.Equal(t, 0, sup.runningCount())

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.State)

	// A reset stop clears the error placeholder.
	require.NoError(t, r.StopSlot(context.Background(), view.ID, true))
	got, err = r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.State)
	assert.Empty(t, got.Error)
}

func TestRegistry_AttachFailureStillReleasesSession(t *testing.T) {
	sup := newFakeSupervisor()
	sup.engineErr = errors.New("bad stream format")
	r := newTestRegistry(t, &fakeResolver{}, sup)

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)

	err = r.AssignChannel(context.Background(), view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, playback.ErrPlayback)

	assert.Equal(t, 1, sup.started)
	assert.Equal(t, 0, sup.runningCount())
}

func TestRegistry_TeardownRetry(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)
	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))

	// First stop attempt fails, the retry succeeds.
	sup.stopFailures = 1
	require.NoError(t, r.StopSlot(ctx, view.ID, true))
	assert.Equal(t, 0, sup.runningCount())

	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))

	// Both attempts fail: the error surfaces but the slot is still cleared.
	sup.stopFailures = 2
	err = r.StopSlot(ctx, view.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTeardown)

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.State)
	assert.Nil(t, got.Channel)
}

func TestRegistry_SetAudio(t *testing.T) {
	r := newTestRegistry(t, &fakeResolver{passthrough: true}, newFakeSupervisor())

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, view.Volume)

	muted := true
	volume := 2.5
	require.NoError(t, r.SetAudio(view.ID, &muted, &volume))

	got, err := r.Get(view.ID)
	require.NoError(t, err)
	assert.True(t, got.Muted)
	assert.Equal(t, 1.0, got.Volume)

	volume = 0.25
	require.NoError(t, r.SetAudio(view.ID, nil, &volume))
	got, err = r.Get(view.ID)
	require.NoError(t, err)
	assert.True(t, got.Muted)
	assert.Equal(t, 0.25, got.Volume)

	assert.ErrorIs(t, r.SetAudio(uuid.New(), &muted, nil), ErrSlotNotFound)
}

func TestRegistry_RemoveSlot(t *testing.T) {
	sup := newFakeSupervisor()
	r := newTestRegistry(t, &fakeResolver{}, sup)
	ctx := context.Background()

	view, err := r.CreateSlot(models.SlotGeometry{})
	require.NoError(t, err)
	require.NoError(t, r.AssignChannel(ctx, view.ID,
		channelRef("News", "http://example.com/news"), resolver.Options{}))

	require.NoError(t, r.RemoveSlot(ctx, view.ID))
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, sup.runningCount())

	assert.ErrorIs(t, r.RemoveSlot(ctx, view.ID), ErrSlotNotFound)
}
