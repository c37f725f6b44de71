package component

// State is a component's lifecycle state.
type State int

const (
	// StateNull is the initial and final state.
	StateNull State = iota
	// StatePreparing means Prepare is in progress.
	StatePreparing
	// StatePrepared means resources are allocated and the component can start.
	StatePrepared
	// StateStarting means Start or Resume is in progress.
	StateStarting
	// StatePlaying means data is flowing.
	StatePlaying
	// StatePausing means Pause is in progress.
	StatePausing
	// StatePaused means data flow is suspended.
	StatePaused
	// StateStopping means Stop is in progress.
	StateStopping
	// StateStopped means data flow has ended; Reset returns to Null.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "Null"
	case StatePreparing:
		return "Preparing"
	case StatePrepared:
		return "Prepared"
	case StateStarting:
		return "Starting"
	case StatePlaying:
		return "Playing"
	case StatePausing:
		return "Pausing"
	case StatePaused:
		return "Paused"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// IsPrepared reports whether the component holds its resources and has not
// been stopped.
func (s State) IsPrepared() bool {
	switch s {
	case StatePrepared, StateStarting, StatePlaying, StatePausing, StatePaused:
		return true
	}
	return false
}

// IsActive reports whether the component is playing or moving between
// playing and paused.
func (s State) IsActive() bool {
	switch s {
	case StateStarting, StatePlaying, StatePausing, StatePaused:
		return true
	}
	return false
}

// Transient tracks seek, flush and reset progress independently from the
// lifecycle State.
type Transient int

const (
	// TransientNone means no transient operation has run.
	TransientNone Transient = iota
	TransientSeeking
	TransientSeekComplete
	TransientFlushing
	TransientFlushComplete
	TransientResetting
	TransientResetComplete
	TransientEOSComplete
)

func (t Transient) String() string {
	switch t {
	case TransientNone:
		return "None"
	case TransientSeeking:
		return "Seeking"
	case TransientSeekComplete:
		return "SeekComplete"
	case TransientFlushing:
		return "Flushing"
	case TransientFlushComplete:
		return "FlushComplete"
	case TransientResetting:
		return "Resetting"
	case TransientResetComplete:
		return "ResetComplete"
	case TransientEOSComplete:
		return "EOSComplete"
	default:
		return "Unknown"
	}
}
