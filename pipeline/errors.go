package pipeline

import "errors"

var (
	// ErrNotOpen indicates the pipeline's threads are not running.
	ErrNotOpen = errors.New("pipeline not open")

	// ErrNoComponents indicates an operation on an empty pipeline.
	ErrNoComponents = errors.New("pipeline has no components")

	// ErrDuplicateComponent indicates a component was added twice.
	ErrDuplicateComponent = errors.New("component already added")

	// ErrOpInProgress indicates another pipeline operation is still running.
	ErrOpInProgress = errors.New("pipeline operation in progress")

	// ErrSuperseded indicates a stop or reset took over the operation.
	ErrSuperseded = errors.New("pipeline operation superseded")

	// ErrUnblocked indicates a wait was released by Unblock.
	ErrUnblocked = errors.New("pipeline wait unblocked")

	// ErrTimeout indicates a bounded wait elapsed.
	ErrTimeout = errors.New("pipeline wait timed out")

	// ErrInvalidPosition indicates a negative seek target.
	ErrInvalidPosition = errors.New("invalid seek position")

	// ErrNoSource indicates a seek on a pipeline without a source.
	ErrNoSource = errors.New("pipeline has no source component")
)
