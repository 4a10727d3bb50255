package supervisor

import "errors"

// Sentinel errors returned by the supervisor.
var (
	// ErrSpawnFailure indicates the child process could not be started.
	// No session exists after a spawn failure.
	ErrSpawnFailure = errors.New("failed to spawn transcoder process")

	// ErrNoOutput indicates a started process produced no output within the
	// start grace period. The process has been terminated.
	ErrNoOutput = errors.New("transcoder produced no output within grace period")

	// ErrIllegalTransition indicates a session state transition that the
	// lifecycle does not permit.
	ErrIllegalTransition = errors.New("illegal session state transition")

	// ErrSupervisorClosed indicates the supervisor is shutting down and no
	// longer accepts new sessions.
	ErrSupervisorClosed = errors.New("supervisor is closed")

	// ErrEmptyCommand indicates a start was requested with no argv.
	ErrEmptyCommand = errors.New("empty command")
)
