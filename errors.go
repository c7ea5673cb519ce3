package fluid

import "errors"

var (
	// ErrInvalidParams is returned when a parameter snapshot fails validation.
	ErrInvalidParams = errors.New("fluid: invalid parameters")

	// ErrSplatPending is returned by MultiSplat while a batch is still queued.
	ErrSplatPending = errors.New("fluid: multi-splat batch already pending")

	// ErrClosed is returned by operations on a closed Simulation.
	ErrClosed = errors.New("fluid: simulation closed")
)
