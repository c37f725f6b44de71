package pipeline

import (
	"fmt"

	"github.com/opd-ai/cow/component"
	"github.com/sirupsen/logrus"
)

// Prepare prepares every component.
func (p *Pipeline) Prepare() (component.Mode, error) {
	return p.lifecycle(component.OpPrepare)
}

// Start starts every component.
func (p *Pipeline) Start() (component.Mode, error) {
	return p.lifecycle(component.OpStart)
}

// Pause pauses every component.
func (p *Pipeline) Pause() (component.Mode, error) {
	return p.lifecycle(component.OpPause)
}

// Resume resumes every component.
func (p *Pipeline) Resume() (component.Mode, error) {
	return p.lifecycle(component.OpResume)
}

// Stop stops every component. It supersedes any operation in flight and a
// component failure does not keep the pipeline from reaching Stopped.
func (p *Pipeline) Stop() (component.Mode, error) {
	return p.lifecycle(component.OpStop)
}

// Flush flushes every component. Flush progress is tracked in the
// transient marker and leaves the lifecycle state alone.
func (p *Pipeline) Flush() (component.Mode, error) {
	return p.lifecycle(component.OpFlush)
}

// lifecycle runs op as a public barrier over every record. Sync means the
// pipeline already reached the target and the listener has been notified;
// Async means the event thread finishes the barrier.
func (p *Pipeline) lifecycle(op component.Op) (component.Mode, error) {
	p.mu.Lock()
	if err := p.checkUsableLocked(); err != nil {
		p.mu.Unlock()
		return component.Sync, err
	}

	var superseded *component.Event
	if op == component.OpStop {
		superseded = p.supersedeLocked()
		if p.compounds > 0 {
			p.cancelCompound = true
		}
	} else if p.round != nil || p.compounds > 0 {
		p.mu.Unlock()
		return component.Sync, fmt.Errorf("%s: %w", op, ErrOpInProgress)
	}

	switch op {
	case component.OpPrepare:
		p.escape = false
		p.resetPlaybackLocked()
	case component.OpStart:
		p.eosCount = 0
	case component.OpFlush:
		p.transient = component.TransientFlushing
	}
	r := p.beginRoundLocked(op, p.records, true)
	p.mu.Unlock()

	p.post(superseded)
	return p.dispatch(r, 0, 0)
}

func (p *Pipeline) checkUsableLocked() error {
	if !p.open {
		return ErrNotOpen
	}
	if len(p.records) == 0 {
		return ErrNoComponents
	}
	return nil
}

// beginRoundLocked installs a new barrier. The caller has made sure no
// other round is in flight.
func (p *Pipeline) beginRoundLocked(op component.Op, parts []*record, public bool) *round {
	r := newRound(op, append([]*record(nil), parts...), public)
	r.gen = p.gen.Add(1)
	p.round = r
	p.lastErr = nil

	p.log.WithFields(logrus.Fields{
		"function":     "beginRound",
		"op":           op.String(),
		"gen":          r.gen,
		"participants": len(r.parts),
		"public":       public,
	}).Debug("Barrier round started")
	return r
}

// supersedeLocked fails the round in flight with ErrSuperseded.
func (p *Pipeline) supersedeLocked() *component.Event {
	if p.round == nil {
		return nil
	}
	p.log.WithFields(logrus.Fields{
		"function": "supersede",
		"op":       p.round.op.String(),
	}).Info("Operation superseded")
	return p.finishLocked(p.round, fmt.Errorf("%s: %w", p.round.op, ErrSuperseded))
}

// dispatch invokes r's operation on every participant on the calling
// goroutine. It never holds the pipeline lock while a component runs.
func (p *Pipeline) dispatch(r *round, ms int64, seq uint32) (component.Mode, error) {
	anyAsync := false
	for _, rec := range r.parts {
		mode, err := invoke(rec.comp, r.op, ms, seq)
		entry := p.log.WithFields(logrus.Fields{
			"function":  "dispatch",
			"op":        r.op.String(),
			"component": rec.comp.Name(),
		})

		if err != nil {
			if r.absorbsFailures() {
				entry.WithField("error", err.Error()).Warn("Component failed during teardown, continuing")
				p.mu.Lock()
				r.reached[rec] = true
				applyReached(rec, r.op)
				p.mu.Unlock()
				continue
			}
			entry.WithField("error", err.Error()).Error("Component rejected operation")
			failure := fmt.Errorf("%s %s: %w", rec.comp.Name(), r.op, err)
			p.mu.Lock()
			if !r.finished {
				// The caller gets the error directly; no completion event.
				r.public = false
				p.finishLocked(r, failure)
			}
			p.mu.Unlock()
			return component.Sync, failure
		}

		if mode == component.Async {
			anyAsync = true
			entry.Debug("Component completes asynchronously")
			continue
		}
		p.mu.Lock()
		r.reached[rec] = true
		applyReached(rec, r.op)
		p.mu.Unlock()
	}

	p.mu.Lock()
	var done *component.Event
	if !r.finished && r.complete() {
		done = p.finishLocked(r, nil)
	}
	err := r.err
	finished := r.finished
	p.cond.Broadcast()
	p.mu.Unlock()

	p.post(done)
	if finished && err != nil {
		return component.Sync, err
	}
	if anyAsync {
		return component.Async, nil
	}
	return component.Sync, nil
}

// finishLocked ends r exactly once and applies its outcome. It returns the
// completion event for public rounds.
func (p *Pipeline) finishLocked(r *round, err error) *component.Event {
	if r.finished {
		return nil
	}
	r.finished = true
	r.err = err
	if p.round == r {
		p.round = nil
	}
	p.lastErr = err

	if err == nil {
		switch r.op {
		case component.OpFlush:
			p.transient = component.TransientFlushComplete
		case component.OpSeek:
			// The seek compound owns the transient marker.
		default:
			if st, ok := lifecycleTarget(r.op); ok {
				p.state = st
			}
		}
	} else if r.op == component.OpFlush {
		p.transient = component.TransientNone
	}
	p.cond.Broadcast()

	p.log.WithFields(logrus.Fields{
		"function": "finishRound",
		"op":       r.op.String(),
		"state":    p.state.String(),
		"success":  err == nil,
	}).Info("Barrier round finished")

	if !r.public {
		return nil
	}
	return &component.Event{Type: r.event, Err: err}
}

// resetPlaybackLocked clears the per-playback counters.
func (p *Pipeline) resetPlaybackLocked() {
	p.eosCount = 0
	p.durationMs = 0
	p.width = 0
	p.height = 0
}
