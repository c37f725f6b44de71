package pipeline

import (
	"github.com/opd-ai/cow/component"
)

// record is the pipeline's view of one component.
type record struct {
	comp      component.Component
	role      component.Role
	media     component.MediaType
	state     component.State
	transient component.Transient
}

func (r *record) isAudioSink() bool {
	return r.role == component.RoleSink && r.media == component.MediaAudio
}

// round is one barrier: an operation dispatched to a set of records that
// finishes when every participant reported the operation's event, or on
// the first failure for operations that do not absorb failures.
type round struct {
	gen     uint64
	op      component.Op
	event   component.EventType
	parts   []*record
	reached map[*record]bool

	// public rounds report completion to the listener.
	public bool

	finished bool
	err      error
}

func newRound(op component.Op, parts []*record, public bool) *round {
	return &round{
		op:      op,
		event:   op.Event(),
		parts:   parts,
		reached: make(map[*record]bool, len(parts)),
		public:  public,
	}
}

// absorbsFailures reports whether a participant failure still counts as
// reaching the barrier. Teardown proceeds across all components.
func (r *round) absorbsFailures() bool {
	return r.op == component.OpStop || r.op == component.OpReset
}

func (r *round) includes(rec *record) bool {
	for _, p := range r.parts {
		if p == rec {
			return true
		}
	}
	return false
}

// complete rescans every participant.
func (r *round) complete() bool {
	for _, p := range r.parts {
		if !r.reached[p] {
			return false
		}
	}
	return true
}

func (r *round) waitingOn() []string {
	var names []string
	for _, p := range r.parts {
		if !r.reached[p] {
			names = append(names, p.comp.Name())
		}
	}
	return names
}

// lifecycleTarget maps a lifecycle operation to the state it reaches.
func lifecycleTarget(op component.Op) (component.State, bool) {
	switch op {
	case component.OpPrepare:
		return component.StatePrepared, true
	case component.OpStart, component.OpResume:
		return component.StatePlaying, true
	case component.OpPause:
		return component.StatePaused, true
	case component.OpStop:
		return component.StateStopped, true
	case component.OpReset:
		return component.StateNull, true
	}
	return component.StateNull, false
}

// applyReached records on rec what op's success means for it.
func applyReached(rec *record, op component.Op) {
	switch op {
	case component.OpFlush:
		rec.transient = component.TransientFlushComplete
	case component.OpSeek:
		rec.transient = component.TransientSeekComplete
	case component.OpReset:
		rec.state = component.StateNull
		rec.transient = component.TransientResetComplete
	default:
		if st, ok := lifecycleTarget(op); ok {
			rec.state = st
		}
	}
}

// opForEvent maps a completion event back to its operation.
func opForEvent(t component.EventType) (component.Op, bool) {
	switch t {
	case component.EventPrepareResult:
		return component.OpPrepare, true
	case component.EventStartResult:
		return component.OpStart, true
	case component.EventPaused:
		return component.OpPause, true
	case component.EventResumed:
		return component.OpResume, true
	case component.EventStopped:
		return component.OpStop, true
	case component.EventFlushComplete:
		return component.OpFlush, true
	case component.EventSeekComplete:
		return component.OpSeek, true
	case component.EventResetComplete:
		return component.OpReset, true
	}
	return 0, false
}

func invoke(c component.Component, op component.Op, ms int64, seq uint32) (component.Mode, error) {
	switch op {
	case component.OpPrepare:
		return c.Prepare()
	case component.OpStart:
		return c.Start()
	case component.OpPause:
		return c.Pause()
	case component.OpResume:
		return c.Resume()
	case component.OpStop:
		return c.Stop()
	case component.OpFlush:
		return c.Flush()
	case component.OpSeek:
		return c.Seek(ms, seq)
	default:
		return c.Reset()
	}
}
