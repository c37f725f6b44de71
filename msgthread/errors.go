package msgthread

import "errors"

var (
	// ErrNotRunning indicates the Thread is not accepting messages.
	ErrNotRunning = errors.New("message thread is not running")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("message thread is already running")

	// ErrNoResponse indicates the Thread stopped before answering a Send.
	ErrNoResponse = errors.New("message thread exited without a response")

	// ErrUnknownMessage indicates no handler is registered for the tag.
	ErrUnknownMessage = errors.New("no handler registered for message")

	// ErrHandlerPanicked indicates the handler panicked before answering.
	ErrHandlerPanicked = errors.New("message handler panicked")
)
