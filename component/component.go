package component

import "github.com/google/uuid"

// Mode tells the caller whether an accepted operation has finished.
type Mode int

const (
	// Sync means the transition finished and its event already fired.
	Sync Mode = iota
	// Async means the completion event will arrive later.
	Async
)

func (m Mode) String() string {
	if m == Async {
		return "Async"
	}
	return "Sync"
}

// Role is a component's position in the graph.
type Role int

const (
	RoleSource Role = iota
	RoleFilter
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "Source"
	case RoleFilter:
		return "Filter"
	case RoleSink:
		return "Sink"
	default:
		return "Unknown"
	}
}

// MediaType is the kind of stream a component handles.
type MediaType int

const (
	MediaNone MediaType = iota
	MediaAudio
	MediaVideo
)

func (m MediaType) String() string {
	switch m {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	default:
		return "none"
	}
}

// Component is one stage of a pipeline: demuxer, decoder, encoder, sink.
// Implementations must be safe for concurrent use.
type Component interface {
	ID() uuid.UUID
	Name() string
	State() State
	SetEventSink(sink EventSink)

	Prepare() (Mode, error)
	Start() (Mode, error)
	Pause() (Mode, error)
	Resume() (Mode, error)
	Stop() (Mode, error)
	Flush() (Mode, error)
	Seek(ms int64, seq uint32) (Mode, error)
	Reset() (Mode, error)
}

// PositionReporter is implemented by sinks that own a playback clock.
type PositionReporter interface {
	Position() (ms int64, err error)
}
