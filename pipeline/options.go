package pipeline

import (
	"time"

	"github.com/opd-ai/cow/limits"
)

// Options tunes a Pipeline.
type Options struct {
	// Name labels logs and the pipeline's threads.
	Name string

	// ResetTimeout bounds how long Reset waits for components.
	ResetTimeout time.Duration

	// PreviewTimeout bounds the wait for the first frame after a seek
	// while paused.
	PreviewTimeout time.Duration

	// FlushSource includes source components in the seek flush.
	FlushSource bool

	// QueueWarnLength is passed to both threads' SetQueueWarnLength.
	QueueWarnLength int
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options {
	return Options{
		Name:           "pipeline",
		ResetTimeout:   limits.DefaultResetTimeout,
		PreviewTimeout: limits.DefaultPreviewTimeout,
	}
}

// Validate checks the timeouts against their limits.
func (o Options) Validate() error {
	if err := limits.ValidateTimeout("reset timeout", o.ResetTimeout); err != nil {
		return err
	}
	return limits.ValidateTimeout("preview timeout", o.PreviewTimeout)
}
