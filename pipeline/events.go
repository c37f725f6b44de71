package pipeline

import (
	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/msgthread"
	"github.com/sirupsen/logrus"
)

// handleComponentEvent runs on the event thread. Every path ends with a
// broadcast so no waiter misses the update.
func (p *Pipeline) handleComponentEvent(msg *msgthread.Message) {
	ev := msg.Obj.(component.Event)
	gen := uint64(msg.Param2)
	var out []component.Event

	p.mu.Lock()
	rec, ok := p.byID[ev.Sender]
	if !ok {
		p.log.WithFields(logrus.Fields{
			"function": "handleComponentEvent",
			"event":    ev.Type.String(),
			"sender":   ev.Sender.String(),
		}).Error("Event from unknown component")
		p.cond.Broadcast()
		p.mu.Unlock()
		return
	}

	if op, isCompletion := opForEvent(ev.Type); isCompletion {
		if done := p.onCompletionLocked(rec, op, ev, gen); done != nil {
			out = append(out, *done)
		}
	} else {
		out = p.onNotificationLocked(rec, ev, gen)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, e := range out {
		p.deliver(e)
	}
}

// onCompletionLocked folds one component's completion into the barrier.
// Completions emitted under an earlier round are dropped: a Sync
// participant's own event can trail behind the round that counted it.
func (p *Pipeline) onCompletionLocked(rec *record, op component.Op, ev component.Event, gen uint64) *component.Event {
	entry := p.log.WithFields(logrus.Fields{
		"function":  "onCompletion",
		"event":     ev.Type.String(),
		"component": rec.comp.Name(),
		"gen":       gen,
	})

	if gen != p.gen.Load() {
		entry.Debug("Completion from an earlier round, ignoring")
		return nil
	}
	if ev.Err == nil {
		applyReached(rec, op)
	}

	r := p.round
	if r == nil || r.finished || r.event != ev.Type || !r.includes(rec) {
		entry.Debug("Completion outside any barrier, ignoring")
		return nil
	}

	if ev.Err != nil {
		if !r.absorbsFailures() {
			entry.WithField("error", ev.Err.Error()).Error("Component operation failed")
			return p.finishLocked(r, ev.Err)
		}
		entry.WithField("error", ev.Err.Error()).Warn("Component failed during teardown, continuing")
		applyReached(rec, op)
	}
	r.reached[rec] = true

	if !r.complete() {
		entry.WithField("waiting_on", r.waitingOn()).Debug("Barrier not yet satisfied")
		return nil
	}
	return p.finishLocked(r, nil)
}

// onNotificationLocked handles events that are not operation completions
// and returns what the listener should see.
func (p *Pipeline) onNotificationLocked(rec *record, ev component.Event, gen uint64) []component.Event {
	switch ev.Type {
	case component.EventEOS:
		p.eosCount++
		want := p.connectedStreamsLocked()
		p.log.WithFields(logrus.Fields{
			"function":  "onNotification",
			"component": rec.comp.Name(),
			"eos_count": p.eosCount,
			"streams":   want,
		}).Info("Stream reached end")
		if p.eosCount < want {
			return nil
		}
		p.resetPlaybackLocked()
		p.transient = component.TransientEOSComplete
		return []component.Event{{Type: component.EventEOS}}

	case component.EventGotVideoFormat:
		if vf, ok := ev.Payload.(component.VideoFormat); ok {
			p.width, p.height = vf.Width, vf.Height
		}

	case component.EventInfoDuration:
		p.durationMs = ev.Param2
		if d, ok := ev.Payload.(component.Duration); ok {
			p.durationMs = d.Ms
		}

	case component.EventPreviewDone:
		if p.previewGen == 0 || gen < p.previewGen {
			p.log.WithFields(logrus.Fields{
				"function":  "onNotification",
				"component": rec.comp.Name(),
				"gen":       gen,
			}).Debug("Preview frame from before the preview round, ignoring")
			return nil
		}
		p.previewDone = true
		return nil

	case component.EventError:
		p.log.WithFields(logrus.Fields{
			"function":  "onNotification",
			"component": rec.comp.Name(),
			"error":     errString(ev.Err),
		}).Error("Component reported an error")
	}

	ev.Sender = rec.comp.ID()
	return []component.Event{ev}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
