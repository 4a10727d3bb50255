package visibility

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/models"
)

type fakeGrid struct {
	mu       sync.Mutex
	slots    models.LayoutSlotList
	cleanups int
	restores []models.LayoutSlotList
}

func (f *fakeGrid) Snapshot() models.LayoutSlotList {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots
}

func (f *fakeGrid) CleanupAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	f.slots = nil
	return nil
}

func (f *fakeGrid) Restore(_ context.Context, snap models.LayoutSlotList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores = append(f.restores, snap)
	f.slots = snap
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoSlotGrid() *fakeGrid {
	return &fakeGrid{slots: models.LayoutSlotList{
		{Geometry: models.SlotGeometry{Row: 0}, ChannelName: "A", StreamURL: "http://example.com/a"},
		{Geometry: models.SlotGeometry{Row: 1}, ChannelName: "B", StreamURL: "http://example.com/b"},
	}}
}

func TestController_HideSnapshotsAndSuspends(t *testing.T) {
	grid := twoSlotGrid()
	c := New(grid, testLogger())
	ctx := context.Background()

	assert.Equal(t, Visible, c.State())
	require.NoError(t, c.Hide(ctx))
	assert.Equal(t, Hidden, c.State())
	assert.True(t, c.HasSnapshot())
	assert.Equal(t, 1, grid.cleanups)

	// Hiding again is a no-op, not a second teardown.
	require.NoError(t, c.Hide(ctx))
	assert.Equal(t, 1, grid.cleanups)
}

func TestController_ShowRestoresSnapshotOnce(t *testing.T) {
	grid := twoSlotGrid()
	c := New(grid, testLogger())
	ctx := context.Background()

	require.NoError(t, c.Hide(ctx))
	require.NoError(t, c.Show(ctx, true))
	assert.Equal(t, Visible, c.State())
	require.Len(t, grid.restores, 1)
	assert.Equal(t, "A", grid.restores[0][0].ChannelName)
	assert.Equal(t, "B", grid.restores[0][1].ChannelName)

	// The snapshot is one-shot.
	assert.False(t, c.HasSnapshot())
	require.NoError(t, c.Hide(ctx))
	require.NoError(t, c.Show(ctx, true))
	require.Len(t, grid.restores, 2)
	assert.Len(t, grid.restores[1], 2)
}

func TestController_ShowDeclinedDiscardsSnapshot(t *testing.T) {
	grid := twoSlotGrid()
	c := New(grid, testLogger())
	ctx := context.Background()

	require.NoError(t, c.Hide(ctx))
	require.NoError(t, c.Show(ctx, false))
	assert.Empty(t, grid.restores)
	assert.False(t, c.HasSnapshot())

	// A later accepting show has nothing left to replay.
	require.NoError(t, c.Hide(ctx))
	require.NoError(t, c.Show(ctx, true))
	assert.Empty(t, grid.restores)
}

func TestController_ShowWhileVisible(t *testing.T) {
	grid := twoSlotGrid()
	c := New(grid, testLogger())

	require.NoError(t, c.Show(context.Background(), true))
	assert.Equal(t, Visible, c.State())
	assert.Empty(t, grid.restores)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "visible", Visible.String())
	assert.Equal(t, "hidden", Hidden.String())
	assert.Equal(t, "unknown", State(9).String())
}
