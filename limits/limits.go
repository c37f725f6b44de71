package limits

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultLowBar is the pending count at which a blocked producer resumes.
	DefaultLowBar = 2

	// DefaultHighBar is the pending count at which a producer blocks.
	DefaultHighBar = 8

	// MaxWatermark caps both watermarks; queues deeper than this are a
	// configuration mistake rather than a throughput choice.
	MaxWatermark = 4096

	// DefaultWindowSize is the number of samples a statistics window averages.
	DefaultWindowSize = 30

	// MinWindowSize is the smallest window that yields a meaningful average.
	MinWindowSize = 1

	// MaxWindowSize bounds the ring buffer allocation.
	MaxWindowSize = 10000

	// DefaultResetTimeout bounds how long a pipeline reset waits for components.
	DefaultResetTimeout = 3 * time.Second

	// DefaultPreviewTimeout bounds the paused-seek preview wait.
	DefaultPreviewTimeout = 2 * time.Second

	// MinTimeout is the smallest accepted bounded wait.
	MinTimeout = 10 * time.Millisecond

	// MaxTimeout is the largest accepted bounded wait.
	MaxTimeout = 5 * time.Minute
)

var (
	// ErrWatermarkOrder indicates low > high.
	ErrWatermarkOrder = errors.New("low watermark above high watermark")

	// ErrOutOfRange indicates a value outside its accepted bounds.
	ErrOutOfRange = errors.New("value out of range")
)

// ValidateWatermarks checks 0 <= low <= high <= MaxWatermark.
func ValidateWatermarks(low, high uint32) error {
	if high > MaxWatermark {
		return fmt.Errorf("%w: high watermark %d exceeds limit %d", ErrOutOfRange, high, MaxWatermark)
	}
	if low > high {
		return fmt.Errorf("%w: low %d, high %d", ErrWatermarkOrder, low, high)
	}
	return nil
}

// ValidateWindowSize checks the statistics window is within bounds.
func ValidateWindowSize(size int) error {
	if size < MinWindowSize || size > MaxWindowSize {
		return fmt.Errorf("%w: window size %d not in [%d, %d]", ErrOutOfRange, size, MinWindowSize, MaxWindowSize)
	}
	return nil
}

// ValidateTimeout checks a bounded wait is within [MinTimeout, MaxTimeout].
func ValidateTimeout(name string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, name, d, MinTimeout, MaxTimeout)
	}
	return nil
}
