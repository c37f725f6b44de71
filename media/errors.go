package media

import "errors"

var (
	// ErrReleased indicates the buffer's last reference is already gone.
	ErrReleased = errors.New("buffer already released")

	// ErrKindMismatch indicates a Meta key holds a value of another kind.
	ErrKindMismatch = errors.New("meta value kind mismatch")
)
