package component

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// Op names a component operation.
type Op int

const (
	OpPrepare Op = iota
	OpStart
	OpPause
	OpResume
	OpStop
	OpFlush
	OpSeek
	OpReset
)

func (o Op) String() string {
	switch o {
	case OpPrepare:
		return "prepare"
	case OpStart:
		return "start"
	case OpPause:
		return "pause"
	case OpResume:
		return "resume"
	case OpStop:
		return "stop"
	case OpFlush:
		return "flush"
	case OpSeek:
		return "seek"
	case OpReset:
		return "reset"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event returns the event type that reports completion of o.
func (o Op) Event() EventType {
	return rules[o].event
}

type opRule struct {
	event   EventType
	allowed func(State) bool
	already func(State) bool

	// lifecycle ops move State; the others move Transient.
	lifecycle bool
	progress  State
	done      State
	running   Transient
	finished  Transient
}

var rules = map[Op]opRule{
	OpPrepare: {
		event:     EventPrepareResult,
		allowed:   func(s State) bool { return s == StateNull },
		already:   State.IsPrepared,
		lifecycle: true,
		progress:  StatePreparing,
		done:      StatePrepared,
	},
	OpStart: {
		event:     EventStartResult,
		allowed:   func(s State) bool { return s == StatePrepared || s == StatePaused },
		already:   func(s State) bool { return s == StatePlaying },
		lifecycle: true,
		progress:  StateStarting,
		done:      StatePlaying,
	},
	OpPause: {
		event:     EventPaused,
		allowed:   func(s State) bool { return s == StatePlaying },
		already:   func(s State) bool { return s == StatePaused },
		lifecycle: true,
		progress:  StatePausing,
		done:      StatePaused,
	},
	OpResume: {
		event:     EventResumed,
		allowed:   func(s State) bool { return s == StatePaused },
		already:   func(s State) bool { return s == StatePlaying },
		lifecycle: true,
		progress:  StateStarting,
		done:      StatePlaying,
	},
	OpStop: {
		event:     EventStopped,
		allowed:   func(s State) bool { return s.IsPrepared() || s == StatePreparing },
		already:   func(s State) bool { return s == StateStopped || s == StateNull },
		lifecycle: true,
		progress:  StateStopping,
		done:      StateStopped,
	},
	OpFlush: {
		event:    EventFlushComplete,
		allowed:  State.IsPrepared,
		running:  TransientFlushing,
		finished: TransientFlushComplete,
	},
	OpSeek: {
		event:    EventSeekComplete,
		allowed:  State.IsPrepared,
		running:  TransientSeeking,
		finished: TransientSeekComplete,
	},
	OpReset: {
		event:    EventResetComplete,
		allowed:  func(State) bool { return true },
		already:  func(s State) bool { return s == StateNull },
		running:  TransientResetting,
		finished: TransientResetComplete,
	},
}

type snapshot struct {
	state     State
	transient Transient
}

// Base is the state machine concrete components embed. It enforces the
// transition rules, the idempotent short-circuit and exactly one event
// per accepted operation.
//
//	type Decoder struct {
//	    *component.Base
//	}
//
//	func (d *Decoder) Prepare() (component.Mode, error) {
//	    return d.Run(component.OpPrepare, d.openCodec)
//	}
type Base struct {
	id   uuid.UUID
	name string
	log  *logrus.Entry

	mu        sync.Mutex
	state     State
	transient Transient
	inFlight  map[Op]snapshot
	seekPos   SeekPosition
	sink      EventSink
}

// NewBase creates a Base in StateNull with a fresh identity.
func NewBase(name string, log *logrus.Entry) *Base {
	id := uuid.New()
	return &Base{
		id:       id,
		name:     name,
		log:      logging.OrDiscard(log).WithFields(logrus.Fields{"component": name, "component_id": id.String()}),
		inFlight: make(map[Op]snapshot),
	}
}

// ID returns the component identity used as Event.Sender.
func (b *Base) ID() uuid.UUID { return b.id }

// Name returns the component name.
func (b *Base) Name() string { return b.name }

// Log returns the component's log entry.
func (b *Base) Log() *logrus.Entry { return b.log }

// State returns the lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Transient returns the transient operation marker.
func (b *Base) Transient() Transient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transient
}

// SetEventSink sets where events go.
func (b *Base) SetEventSink(sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// Run drives op through the state machine. work performs the actual
// transition and reports Sync, or Async followed by a later Complete(op,
// err). A nil work completes synchronously.
func (b *Base) Run(op Op, work func() (Mode, error)) (Mode, error) {
	rule := rules[op]

	b.mu.Lock()
	st := b.state
	if rule.already != nil && rule.already(st) {
		payload := b.payloadLocked(op)
		b.mu.Unlock()
		b.log.WithFields(logrus.Fields{
			"function": "Run",
			"op":       op.String(),
			"state":    st.String(),
		}).Debug("Already at target, re-firing completion")
		b.emit(Event{Type: rule.event, Payload: payload})
		return Sync, nil
	}
	if _, busy := b.inFlight[op]; busy {
		b.mu.Unlock()
		return Sync, fmt.Errorf("%s %s: %w", b.name, op, ErrInProgress)
	}
	if !rule.allowed(st) {
		b.mu.Unlock()
		return Sync, fmt.Errorf("%s %s from %s: %w", b.name, op, st, ErrInvalidState)
	}

	prev := snapshot{state: b.state, transient: b.transient}
	if rule.lifecycle {
		// A new lifecycle operation supersedes any unfinished one.
		for o := range b.inFlight {
			if rules[o].lifecycle {
				delete(b.inFlight, o)
			}
		}
		b.state = rule.progress
	} else {
		b.transient = rule.running
	}
	b.inFlight[op] = prev
	b.mu.Unlock()

	mode := Sync
	var err error
	if work != nil {
		mode, err = work()
	}
	if err != nil {
		b.mu.Lock()
		if saved, ok := b.inFlight[op]; ok {
			b.state, b.transient = saved.state, saved.transient
			delete(b.inFlight, op)
		}
		b.mu.Unlock()
		b.log.WithFields(logrus.Fields{
			"function": "Run",
			"op":       op.String(),
			"error":    err.Error(),
		}).Warn("Operation rejected")
		return Sync, err
	}
	if mode == Sync {
		b.Complete(op, nil)
		return Sync, nil
	}
	return Async, nil
}

// RunSeek is Run for OpSeek; the position is echoed in the SeekComplete
// payload.
func (b *Base) RunSeek(ms int64, seq uint32, work func() (Mode, error)) (Mode, error) {
	b.mu.Lock()
	b.seekPos = SeekPosition{Ms: ms, Seq: seq}
	b.mu.Unlock()
	return b.Run(OpSeek, work)
}

// Complete finishes an Async operation. A nil err moves to the target
// state; an error restores the state from before the operation. Either way
// exactly one completion event fires. Completing an operation that is not
// in flight, or was superseded, is logged and ignored.
func (b *Base) Complete(op Op, err error) {
	rule := rules[op]

	b.mu.Lock()
	saved, ok := b.inFlight[op]
	if !ok {
		b.mu.Unlock()
		b.log.WithFields(logrus.Fields{
			"function": "Complete",
			"op":       op.String(),
		}).Debug("Ignoring completion of operation not in flight")
		return
	}
	delete(b.inFlight, op)

	switch {
	case err != nil:
		b.state, b.transient = saved.state, saved.transient
	case rule.lifecycle:
		b.state = rule.done
	default:
		b.transient = rule.finished
		if op == OpReset {
			b.state = StateNull
			for o := range b.inFlight {
				delete(b.inFlight, o)
			}
		}
	}
	payload := b.payloadLocked(op)
	st := b.state
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"function": "Complete",
		"op":       op.String(),
		"state":    st.String(),
		"success":  err == nil,
	}).Debug("Operation complete")
	b.emit(Event{Type: rule.event, Err: err, Payload: payload})
}

// Notify fires an event that is not tied to an operation: EOS, errors,
// format and duration information, preview completion.
func (b *Base) Notify(ev Event) {
	b.emit(ev)
}

func (b *Base) payloadLocked(op Op) Payload {
	if op == OpSeek {
		return b.seekPos
	}
	return nil
}

func (b *Base) emit(ev Event) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()

	ev.Sender = b.id
	if sink == nil {
		return
	}
	sink.OnComponentEvent(ev)
}
