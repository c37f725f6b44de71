package testing

import (
	"errors"
	"sync"
	"time"

	"github.com/opd-ai/cow/component"
	"github.com/sirupsen/logrus"
)

// ErrScriptedFailure is returned by BehaviorFail scripts without an Err.
var ErrScriptedFailure = errors.New("scripted failure")

// Behavior selects how a simulated operation answers.
type Behavior int

const (
	// BehaviorSync completes the operation before returning.
	BehaviorSync Behavior = iota
	// BehaviorAsync returns component.Async and completes later.
	BehaviorAsync
	// BehaviorFail rejects the operation.
	BehaviorFail
)

// Script describes the answer to one operation.
type Script struct {
	Behavior Behavior

	// Err is returned by BehaviorFail, or reported by the delayed
	// completion of BehaviorAsync.
	Err error

	// Delay, when positive, completes a BehaviorAsync operation on its
	// own. A zero Delay waits for Complete.
	Delay time.Duration
}

// CallRecord represents one operation call for test verification.
type CallRecord struct {
	Op        component.Op
	Mode      component.Mode
	Err       error
	SeekMs    int64
	SeekSeq   uint32
	Timestamp int64
}

// Stats summarizes the call log.
type Stats struct {
	Calls    int
	Failures int
	Async    int
	ByOp     map[component.Op]int
}

// SimulatedComponent implements component.Component and
// component.PositionReporter in memory.
type SimulatedComponent struct {
	*component.Base

	mu             sync.RWMutex
	scripts        map[component.Op]Script
	callLog        []CallRecord
	position       int64
	hasPosition    bool
	reportPosition bool
	previewOnStart bool
	timers         []*time.Timer
}

// NewSimulatedComponent creates a component that answers every operation
// synchronously.
func NewSimulatedComponent(name string, log *logrus.Entry) *SimulatedComponent {
	s := &SimulatedComponent{
		Base:    component.NewBase(name, log),
		scripts: make(map[component.Op]Script),
		callLog: make([]CallRecord, 0),
	}
	s.Log().WithField("function", "NewSimulatedComponent").Debug("Simulated component created")
	return s
}

// SetScript replaces the script for op.
func (s *SimulatedComponent) SetScript(op component.Op, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[op] = script
}

// SetAllScripts applies script to every operation.
func (s *SimulatedComponent) SetAllScripts(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for op := component.OpPrepare; op <= component.OpReset; op++ {
		s.scripts[op] = script
	}
}

// EnablePosition makes Position report the clock set by SetPosition and
// seeks.
func (s *SimulatedComponent) EnablePosition(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportPosition = enabled
}

// SetPosition sets the reported playback clock.
func (s *SimulatedComponent) SetPosition(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = ms
	s.hasPosition = true
}

// Position implements component.PositionReporter.
func (s *SimulatedComponent) Position() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.reportPosition || !s.hasPosition {
		return 0, component.ErrNoPosition
	}
	return s.position, nil
}

// PreviewOnStart makes every successful start fire EventPreviewDone, the
// way a video decoder reports its first rendered frame.
func (s *SimulatedComponent) PreviewOnStart(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewOnStart = enabled
}

func (s *SimulatedComponent) Prepare() (component.Mode, error) {
	return s.run(component.OpPrepare, 0, 0)
}

func (s *SimulatedComponent) Start() (component.Mode, error) {
	return s.run(component.OpStart, 0, 0)
}

func (s *SimulatedComponent) Pause() (component.Mode, error) {
	return s.run(component.OpPause, 0, 0)
}

func (s *SimulatedComponent) Resume() (component.Mode, error) {
	return s.run(component.OpResume, 0, 0)
}

func (s *SimulatedComponent) Stop() (component.Mode, error) {
	return s.run(component.OpStop, 0, 0)
}

func (s *SimulatedComponent) Flush() (component.Mode, error) {
	return s.run(component.OpFlush, 0, 0)
}

func (s *SimulatedComponent) Seek(ms int64, seq uint32) (component.Mode, error) {
	return s.run(component.OpSeek, ms, seq)
}

func (s *SimulatedComponent) Reset() (component.Mode, error) {
	return s.run(component.OpReset, 0, 0)
}

// Complete finishes a pending Async operation.
func (s *SimulatedComponent) Complete(op component.Op, err error) {
	s.Base.Complete(op, err)
	s.afterSuccess(op, err)
}

// EmitEOS reports end of stream.
func (s *SimulatedComponent) EmitEOS() {
	s.Notify(component.Event{Type: component.EventEOS})
}

// EmitVideoFormat reports decoded picture dimensions.
func (s *SimulatedComponent) EmitVideoFormat(width, height int32) {
	s.Notify(component.Event{
		Type:    component.EventGotVideoFormat,
		Payload: component.VideoFormat{Width: width, Height: height},
	})
}

// EmitDuration reports the media duration.
func (s *SimulatedComponent) EmitDuration(ms int64) {
	s.Notify(component.Event{
		Type:    component.EventInfoDuration,
		Param2:  ms,
		Payload: component.Duration{Ms: ms},
	})
}

// EmitError reports an asynchronous failure.
func (s *SimulatedComponent) EmitError(err error) {
	s.Notify(component.Event{Type: component.EventError, Err: err})
}

// EmitPreviewDone reports that the first frame after a seek was rendered.
func (s *SimulatedComponent) EmitPreviewDone() {
	s.Notify(component.Event{Type: component.EventPreviewDone})
}

// GetCallLog returns a copy of the call log.
func (s *SimulatedComponent) GetCallLog() []CallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := make([]CallRecord, len(s.callLog))
	copy(log, s.callLog)
	return log
}

// ClearCallLog empties the call log.
func (s *SimulatedComponent) ClearCallLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callLog = make([]CallRecord, 0)
}

// Calls returns how many times op was invoked.
func (s *SimulatedComponent) Calls(op component.Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.callLog {
		if rec.Op == op {
			n++
		}
	}
	return n
}

// GetStats returns statistics about the call log.
func (s *SimulatedComponent) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{ByOp: make(map[component.Op]int)}
	for _, rec := range s.callLog {
		st.Calls++
		st.ByOp[rec.Op]++
		if rec.Err != nil {
			st.Failures++
		}
		if rec.Mode == component.Async {
			st.Async++
		}
	}
	return st
}

// Close cancels delayed completions that have not fired yet.
func (s *SimulatedComponent) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *SimulatedComponent) run(op component.Op, ms int64, seq uint32) (component.Mode, error) {
	s.mu.RLock()
	script := s.scripts[op]
	s.mu.RUnlock()

	work := func() (component.Mode, error) {
		switch script.Behavior {
		case BehaviorFail:
			if script.Err != nil {
				return component.Sync, script.Err
			}
			return component.Sync, ErrScriptedFailure
		case BehaviorAsync:
			if script.Delay > 0 {
				s.schedule(op, script)
			}
			return component.Async, nil
		default:
			return component.Sync, nil
		}
	}

	var mode component.Mode
	var err error
	if op == component.OpSeek {
		mode, err = s.RunSeek(ms, seq, work)
	} else {
		mode, err = s.Run(op, work)
	}

	s.mu.Lock()
	s.callLog = append(s.callLog, CallRecord{
		Op:        op,
		Mode:      mode,
		Err:       err,
		SeekMs:    ms,
		SeekSeq:   seq,
		Timestamp: time.Now().UnixNano(),
	})
	s.mu.Unlock()

	s.Log().WithFields(logrus.Fields{
		"function": "SimulatedComponent.run",
		"op":       op.String(),
		"mode":     mode.String(),
		"success":  err == nil,
	}).Debug("Simulated operation")

	if err == nil && mode == component.Sync {
		s.afterSuccess(op, nil)
	}
	return mode, err
}

func (s *SimulatedComponent) schedule(op component.Op, script Script) {
	t := time.AfterFunc(script.Delay, func() {
		s.Complete(op, script.Err)
	})
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
}

func (s *SimulatedComponent) afterSuccess(op component.Op, err error) {
	if err != nil {
		return
	}
	s.mu.Lock()
	preview := false
	switch op {
	case component.OpSeek:
		if pos := s.lastSeekLocked(); pos >= 0 {
			s.position = pos
			s.hasPosition = true
		}
	case component.OpStart:
		preview = s.previewOnStart
	}
	s.mu.Unlock()

	if preview {
		s.EmitPreviewDone()
	}
}

func (s *SimulatedComponent) lastSeekLocked() int64 {
	for i := len(s.callLog) - 1; i >= 0; i-- {
		if s.callLog[i].Op == component.OpSeek {
			return s.callLog[i].SeekMs
		}
	}
	return -1
}
