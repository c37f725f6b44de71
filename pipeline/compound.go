package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/msgthread"
	"github.com/sirupsen/logrus"
)

// Seek records ms as the pending seek target and queues the seek on the
// command thread. Requests that arrive before the thread picks one up
// collapse into the latest. Completion is reported as EventSeekComplete
// with a SeekPosition payload.
func (p *Pipeline) Seek(ms int64) (component.Mode, error) {
	if ms < 0 {
		return component.Sync, fmt.Errorf("%d ms: %w", ms, ErrInvalidPosition)
	}

	p.mu.Lock()
	if err := p.checkUsableLocked(); err != nil {
		p.mu.Unlock()
		return component.Sync, err
	}
	if !p.state.IsPrepared() {
		st := p.state
		p.mu.Unlock()
		return component.Sync, fmt.Errorf("seek from %s: %w", st, component.ErrInvalidState)
	}
	p.seek.UpdatePendingTime(ms)
	p.transient = component.TransientSeeking
	p.compounds++
	p.mu.Unlock()

	return p.queueCompound(msgSeek, ms)
}

// Reset returns every component to Null. It supersedes the operation in
// flight, waits at most Options.ResetTimeout for the components and always
// ends in Null with EventResetComplete.
func (p *Pipeline) Reset() (component.Mode, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return component.Sync, ErrNotOpen
	}
	if p.compounds > 0 {
		p.cancelCompound = true
	}
	p.transient = component.TransientResetting
	p.compounds++
	p.cond.Broadcast()
	p.mu.Unlock()

	return p.queueCompound(msgReset, 0)
}

// queueCompound posts a command the caller already counted in compounds.
func (p *Pipeline) queueCompound(what int, ms int64) (component.Mode, error) {
	if err := p.commands.Post(what, 0, ms, nil); err != nil {
		p.mu.Lock()
		p.compounds--
		p.cond.Broadcast()
		p.mu.Unlock()
		return component.Sync, err
	}
	return component.Async, nil
}

func (p *Pipeline) endCompoundLocked() {
	p.compounds--
	if p.compounds == 0 {
		p.cancelCompound = false
	}
	p.cond.Broadcast()
}

func (p *Pipeline) handleSeek(msg *msgthread.Message) {
	ms, ok := p.seek.ConsumePendingTime()
	if !ok {
		p.log.WithFields(logrus.Fields{
			"function":  "handleSeek",
			"requested": msg.Param2,
		}).Debug("Seek already coalesced into an earlier run")
		p.mu.Lock()
		p.endCompoundLocked()
		p.mu.Unlock()
		return
	}

	// A public operation may still be finishing its barrier.
	idleErr := p.waitFor(func() bool { return p.round == nil }, 0, true)

	p.mu.Lock()
	p.seekSeq++
	seq := p.seekSeq
	wasPlaying := p.state == component.StatePlaying
	p.eosCount = 0
	p.previewDone = false
	p.mu.Unlock()

	entry := p.log.WithFields(logrus.Fields{
		"function":    "handleSeek",
		"position_ms": ms,
		"seq":         seq,
		"was_playing": wasPlaying,
	})
	entry.Info("Seek started")

	err := idleErr
	if err == nil {
		err = p.runSeek(ms, seq, wasPlaying)
	}
	if wasPlaying && !errors.Is(err, ErrSuperseded) && !errors.Is(err, ErrUnblocked) {
		if rerr := p.step(component.OpResume, p.snapshot(nil), 0, 0, 0); rerr != nil {
			entry.WithField("error", rerr.Error()).Error("Could not resume after seek")
			if err == nil {
				err = rerr
			}
		}
	}

	p.mu.Lock()
	more := p.seek.HasPendingSeek()
	if err != nil {
		p.lastErr = err
		if !more {
			p.transient = component.TransientNone
		}
	} else if !more {
		p.transient = component.TransientSeekComplete
	}
	if !more {
		p.seek.ClearTargetTime()
	}
	p.endCompoundLocked()
	p.mu.Unlock()

	if err != nil {
		entry.WithField("error", err.Error()).Warn("Seek failed")
	} else {
		entry.Info("Seek complete")
	}
	p.post(&component.Event{
		Type:    component.EventSeekComplete,
		Err:     err,
		Payload: component.SeekPosition{Ms: ms, Seq: seq},
	})
}

// runSeek pauses, flushes, seeks the sources and, when paused with video,
// renders a preview frame. Resuming is left to the caller.
func (p *Pipeline) runSeek(ms int64, seq uint32, wasPlaying bool) error {
	if wasPlaying {
		if err := p.step(component.OpPause, p.snapshot(nil), 0, 0, 0); err != nil {
			return err
		}
	}

	flushSource := p.opts.FlushSource
	flushed := p.snapshot(func(r *record) bool { return flushSource || r.role != component.RoleSource })
	if len(flushed) > 0 {
		if err := p.step(component.OpFlush, flushed, 0, 0, 0); err != nil {
			return err
		}
	}

	sources := p.snapshot(func(r *record) bool { return r.role == component.RoleSource })
	if len(sources) == 0 {
		return ErrNoSource
	}
	if err := p.step(component.OpSeek, sources, ms, seq, 0); err != nil {
		return err
	}

	if !wasPlaying && p.hasVideo() {
		return p.preview()
	}
	return nil
}

// preview starts everything except the audio sinks so one frame renders at
// the new position, waits for EventPreviewDone and pauses again.
func (p *Pipeline) preview() error {
	parts := p.snapshot(func(r *record) bool { return !r.isAudioSink() })

	p.mu.Lock()
	p.previewDone = false
	// The start round below takes the next generation.
	p.previewGen = p.gen.Load() + 1
	p.mu.Unlock()

	if err := p.step(component.OpStart, parts, 0, 0, 0); err != nil {
		return err
	}

	waitErr := p.waitFor(func() bool { return p.previewDone }, p.opts.PreviewTimeout, true)
	if waitErr != nil {
		p.log.WithFields(logrus.Fields{
			"function": "preview",
			"timeout":  p.opts.PreviewTimeout.String(),
			"error":    waitErr.Error(),
		}).Warn("Preview frame not rendered")
		if errors.Is(waitErr, ErrUnblocked) || errors.Is(waitErr, ErrSuperseded) {
			return waitErr
		}
	}

	if err := p.step(component.OpPause, parts, 0, 0, 0); err != nil {
		return err
	}
	return waitErr
}

func (p *Pipeline) hasVideo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.width > 0 && p.height > 0 {
		return true
	}
	for _, rec := range p.records {
		if rec.media == component.MediaVideo {
			return true
		}
	}
	return false
}

// snapshot returns the records keep accepts, all of them for a nil keep.
func (p *Pipeline) snapshot(keep func(*record) bool) []*record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*record, 0, len(p.records))
	for _, rec := range p.records {
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// step runs one internal barrier round and waits for it. A zero timeout
// waits without bound.
func (p *Pipeline) step(op component.Op, parts []*record, ms int64, seq uint32, timeout time.Duration) error {
	p.mu.Lock()
	if p.cancelCompound && op != component.OpReset {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	if p.round != nil {
		busy := p.round.op
		p.mu.Unlock()
		return fmt.Errorf("%s while %s: %w", op, busy, ErrOpInProgress)
	}
	r := p.beginRoundLocked(op, parts, false)
	p.mu.Unlock()

	if _, err := p.dispatch(r, ms, seq); err != nil {
		return err
	}

	honorEscape := op != component.OpReset
	err := p.waitFor(func() bool { return r.finished }, timeout, honorEscape)
	if err != nil {
		return err
	}
	return r.err
}

// waitFor blocks until cond holds. It gives up after timeout when positive,
// on Unblock when honorEscape is set, and when the running compound is
// cancelled.
func (p *Pipeline) waitFor(cond func() bool, timeout time.Duration, honorEscape bool) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if cond() {
			return nil
		}
		if honorEscape && p.escape {
			return ErrUnblocked
		}
		if honorEscape && p.cancelCompound {
			return ErrSuperseded
		}
		if deadline.IsZero() {
			p.cond.Wait()
			continue
		}
		left := time.Until(deadline)
		if left <= 0 {
			return ErrTimeout
		}
		p.cond.WaitTimeout(left)
	}
}

func (p *Pipeline) handleReset(*msgthread.Message) {
	p.mu.Lock()
	// Reset itself is never cancelled; the flag was meant for what ran
	// before it.
	p.cancelCompound = false
	superseded := p.supersedeLocked()
	r := p.beginRoundLocked(component.OpReset, p.records, false)
	p.mu.Unlock()
	p.post(superseded)

	entry := p.log.WithFields(logrus.Fields{
		"function":   "handleReset",
		"components": len(r.parts),
	})
	entry.Info("Reset started")

	if _, err := p.dispatch(r, 0, 0); err != nil {
		entry.WithField("error", err.Error()).Warn("Reset dispatch reported an error")
	}
	if err := p.waitFor(func() bool { return r.finished }, p.opts.ResetTimeout, false); err != nil {
		p.mu.Lock()
		waiting := r.waitingOn()
		p.mu.Unlock()
		entry.WithFields(logrus.Fields{
			"error":      err.Error(),
			"waiting_on": waiting,
		}).Warn("Reset did not finish in time, forcing Null")
	}

	p.mu.Lock()
	p.finishLocked(r, nil)
	for _, rec := range p.records {
		rec.state = component.StateNull
		rec.transient = component.TransientResetComplete
	}
	p.state = component.StateNull
	p.transient = component.TransientResetComplete
	p.lastErr = nil
	if p.open {
		p.escape = false
	}
	p.resetPlaybackLocked()
	p.seek.reset()
	p.endCompoundLocked()
	p.mu.Unlock()

	entry.Info("Reset complete")
	p.post(&component.Event{Type: component.EventResetComplete})
}
