package component

import "errors"

var (
	// ErrInvalidState indicates the operation is not allowed in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrInProgress indicates the same operation is already under way.
	ErrInProgress = errors.New("operation already in progress")

	// ErrNotPrepared indicates the component has not been prepared.
	ErrNotPrepared = errors.New("component not prepared")

	// ErrNoPosition indicates the component can not report a position yet.
	ErrNoPosition = errors.New("position not available")
)
