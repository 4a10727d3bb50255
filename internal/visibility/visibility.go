// Package visibility suspends and restores the multiview grid around page
// hide and show events. It is a thin caller of the registry's snapshot and
// cleanup contract; no teardown logic lives here.
package visibility

import (
	"context"
	"log/slog"
	"sync"

	"mosaic/internal/models"
)

// State is the visibility state of the grid.
type State int

const (
	// Visible means the grid is live.
	Visible State = iota

	// Hidden means the grid has been suspended and a snapshot may be held.
	Hidden
)

func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Grid is the registry surface the controller drives.
type Grid interface {
	Snapshot() models.LayoutSlotList
	CleanupAll(ctx context.Context) error
	Restore(ctx context.Context, snap models.LayoutSlotList) error
}

// Controller tracks Visible and Hidden and holds at most one snapshot,
// consumed on the first show after a hide.
type Controller struct {
	grid   Grid
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	snapshot models.LayoutSlotList
}

// New creates a Controller in the Visible state.
func New(grid Grid, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		grid:   grid,
		logger: logger.With(slog.String("component", "visibility")),
	}
}

// State returns the current visibility state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasSnapshot reports whether a restorable snapshot is held.
func (c *Controller) HasSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshot) > 0
}

// Hide snapshots the grid and suspends every slot. Hiding an already hidden
// grid is a no-op.
func (c *Controller) Hide(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Hidden {
		c.mu.Unlock()
		return nil
	}
	c.state = Hidden
	snap := c.grid.Snapshot()
	c.snapshot = snap
	c.mu.Unlock()

	c.logger.Info("grid hidden", slog.Int("slots_snapshotted", len(snap)))
	return c.grid.CleanupAll(ctx)
}

// Show returns the grid to Visible. When restore is true and a snapshot is
// held, the snapshot is replayed; either way it is discarded after one use.
func (c *Controller) Show(ctx context.Context, restore bool) error {
	c.mu.Lock()
	if c.state == Visible {
		c.mu.Unlock()
		return nil
	}
	c.state = Visible
	snap := c.snapshot
	c.snapshot = nil
	c.mu.Unlock()

	if !restore || len(snap) == 0 {
		c.logger.Info("grid shown", slog.Bool("restored", false))
		return nil
	}

	c.logger.Info("grid shown", slog.Bool("restored", true), slog.Int("slots", len(snap)))
	return c.grid.Restore(ctx, snap)
}
