package component

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType tags a component or pipeline event.
type EventType int

const (
	EventPrepareResult EventType = iota + 1
	EventStartResult
	EventStopped
	EventPaused
	EventResumed
	EventSeekComplete
	EventFlushComplete
	EventResetComplete
	EventEOS
	EventError
	EventGotVideoFormat
	EventInfoDuration
	// EventPreviewDone reports that a decoder rendered the first frame after
	// a seek while paused.
	EventPreviewDone
	EventInfo
)

func (e EventType) String() string {
	switch e {
	case EventPrepareResult:
		return "PrepareResult"
	case EventStartResult:
		return "StartResult"
	case EventStopped:
		return "Stopped"
	case EventPaused:
		return "Paused"
	case EventResumed:
		return "Resumed"
	case EventSeekComplete:
		return "SeekComplete"
	case EventFlushComplete:
		return "FlushComplete"
	case EventResetComplete:
		return "ResetComplete"
	case EventEOS:
		return "EOS"
	case EventError:
		return "Error"
	case EventGotVideoFormat:
		return "GotVideoFormat"
	case EventInfoDuration:
		return "InfoDuration"
	case EventPreviewDone:
		return "PreviewDone"
	case EventInfo:
		return "Info"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is what components report to their sink and what a pipeline
// reports to its listener. Err is nil on success.
type Event struct {
	Type    EventType
	Err     error
	Param1  int32
	Param2  int64
	Sender  uuid.UUID
	Payload Payload
}

// EventSink receives component events. Implementations must not block.
type EventSink interface {
	OnComponentEvent(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// OnComponentEvent calls f(ev).
func (f EventSinkFunc) OnComponentEvent(ev Event) { f(ev) }

// PayloadKind selects the concrete type of a Payload.
type PayloadKind int

const (
	PayloadVideoFormat PayloadKind = iota + 1
	PayloadDuration
	PayloadSeekPosition
)

// Payload is the structured part of an Event. The set of implementations
// is closed: VideoFormat, Duration and SeekPosition.
type Payload interface {
	Kind() PayloadKind
	payload()
}

// VideoFormat carries decoded picture dimensions.
type VideoFormat struct {
	Width  int32
	Height int32
}

// Kind returns PayloadVideoFormat.
func (VideoFormat) Kind() PayloadKind { return PayloadVideoFormat }
func (VideoFormat) payload()          {}

// Duration carries a media duration in milliseconds.
type Duration struct {
	Ms int64
}

// Kind returns PayloadDuration.
func (Duration) Kind() PayloadKind { return PayloadDuration }
func (Duration) payload()          {}

// SeekPosition carries the position a seek landed on.
type SeekPosition struct {
	Ms  int64
	Seq uint32
}

// Kind returns PayloadSeekPosition.
func (SeekPosition) Kind() PayloadKind { return PayloadSeekPosition }
func (SeekPosition) payload()          {}
