package registry

import "errors"

// Sentinel errors returned by the session registry.
var (
	// ErrCapacityExceeded is the admission control error: the registry
	// already holds the configured maximum number of slots. State is left
	// unchanged.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")

	// ErrSlotNotFound indicates an operation referenced an unknown slot id.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotStopping indicates an assignment was attempted while the slot
	// is mid-teardown.
	ErrSlotStopping = errors.New("slot is stopping")

	// ErrTeardown indicates a stop request could not be delivered even after
	// a retry. The slot is cleared locally regardless; the supervisor's
	// reaper handles any server-side orphan.
	ErrTeardown = errors.New("stream teardown failed")
)
