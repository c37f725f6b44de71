package component

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnComponentEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func newTestBase(t *testing.T) (*Base, *eventLog) {
	t.Helper()
	b := NewBase(t.Name(), nil)
	log := &eventLog{}
	b.SetEventSink(log)
	return b, log
}

func syncWork() (Mode, error)  { return Sync, nil }
func asyncWork() (Mode, error) { return Async, nil }

func TestBaseSyncLifecycle(t *testing.T) {
	b, log := newTestBase(t)
	assert.Equal(t, StateNull, b.State())

	steps := []struct {
		op    Op
		state State
	}{
		{OpPrepare, StatePrepared},
		{OpStart, StatePlaying},
		{OpPause, StatePaused},
		{OpResume, StatePlaying},
		{OpStop, StateStopped},
		{OpReset, StateNull},
	}
	for _, step := range steps {
		mode, err := b.Run(step.op, syncWork)
		require.NoError(t, err, step.op.String())
		assert.Equal(t, Sync, mode)
		assert.Equal(t, step.state, b.State(), step.op.String())
	}

	assert.Equal(t, []EventType{
		EventPrepareResult, EventStartResult, EventPaused,
		EventResumed, EventStopped, EventResetComplete,
	}, log.types())
	assert.Equal(t, TransientResetComplete, b.Transient())
}

func TestBaseAlreadyAtTargetRefiresEvent(t *testing.T) {
	b, log := newTestBase(t)
	_, err := b.Run(OpPrepare, syncWork)
	require.NoError(t, err)
	_, err = b.Run(OpStart, syncWork)
	require.NoError(t, err)

	called := false
	mode, err := b.Run(OpStart, func() (Mode, error) {
		called = true
		return Sync, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Sync, mode)
	assert.False(t, called, "work must not run again")

	// Prepare while playing is "already past".
	_, err = b.Run(OpPrepare, syncWork)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventPrepareResult, EventStartResult, EventStartResult, EventPrepareResult,
	}, log.types())
	assert.Nil(t, log.last().Err)
	assert.Equal(t, b.ID(), log.last().Sender)
}

func TestBaseRejectsInvalidTransition(t *testing.T) {
	b, log := newTestBase(t)

	_, err := b.Run(OpStart, syncWork)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = b.Run(OpFlush, syncWork)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = b.Run(OpSeek, syncWork)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, StateNull, b.State())
	assert.Empty(t, log.types())
}

func TestBaseAsyncCompletion(t *testing.T) {
	b, log := newTestBase(t)

	mode, err := b.Run(OpPrepare, asyncWork)
	require.NoError(t, err)
	assert.Equal(t, Async, mode)
	assert.Equal(t, StatePreparing, b.State())
	assert.Empty(t, log.types())

	_, err = b.Run(OpPrepare, asyncWork)
	assert.ErrorIs(t, err, ErrInProgress)

	b.Complete(OpPrepare, nil)
	assert.Equal(t, StatePrepared, b.State())
	assert.Equal(t, []EventType{EventPrepareResult}, log.types())

	// A second completion is stale and must not fire again.
	b.Complete(OpPrepare, nil)
	assert.Len(t, log.types(), 1)
}

func TestBaseAsyncFailureRestoresState(t *testing.T) {
	b, log := newTestBase(t)
	_, err := b.Run(OpPrepare, syncWork)
	require.NoError(t, err)

	_, err = b.Run(OpStart, asyncWork)
	require.NoError(t, err)
	assert.Equal(t, StateStarting, b.State())

	failure := errors.New("codec refused")
	b.Complete(OpStart, failure)

	assert.Equal(t, StatePrepared, b.State())
	ev := log.last()
	assert.Equal(t, EventStartResult, ev.Type)
	assert.ErrorIs(t, ev.Err, failure)
}

func TestBaseWorkErrorLeavesStateUnchanged(t *testing.T) {
	b, log := newTestBase(t)
	failure := errors.New("no device")

	_, err := b.Run(OpPrepare, func() (Mode, error) { return Sync, failure })
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, StateNull, b.State())
	assert.Empty(t, log.types())

	// The failed attempt must not count as in flight.
	_, err = b.Run(OpPrepare, syncWork)
	assert.NoError(t, err)
}

func TestBaseStopSupersedesPendingStart(t *testing.T) {
	b, log := newTestBase(t)
	_, err := b.Run(OpPrepare, syncWork)
	require.NoError(t, err)
	_, err = b.Run(OpStart, asyncWork)
	require.NoError(t, err)

	_, err = b.Run(OpStop, syncWork)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, b.State())

	b.Complete(OpStart, nil)
	assert.Equal(t, StateStopped, b.State(), "late start completion must be ignored")
	assert.Equal(t, []EventType{EventPrepareResult, EventStopped}, log.types())
}

func TestBaseTransientOpsKeepLifecycle(t *testing.T) {
	b, log := newTestBase(t)
	_, err := b.Run(OpPrepare, syncWork)
	require.NoError(t, err)
	_, err = b.Run(OpStart, syncWork)
	require.NoError(t, err)

	_, err = b.Run(OpFlush, asyncWork)
	require.NoError(t, err)
	assert.Equal(t, TransientFlushing, b.Transient())
	assert.Equal(t, StatePlaying, b.State())
	b.Complete(OpFlush, nil)
	assert.Equal(t, TransientFlushComplete, b.Transient())

	mode, err := b.RunSeek(4200, 3, syncWork)
	require.NoError(t, err)
	assert.Equal(t, Sync, mode)
	assert.Equal(t, TransientSeekComplete, b.Transient())
	assert.Equal(t, StatePlaying, b.State())

	ev := log.last()
	assert.Equal(t, EventSeekComplete, ev.Type)
	require.NotNil(t, ev.Payload)
	require.Equal(t, PayloadSeekPosition, ev.Payload.Kind())
	assert.Equal(t, SeekPosition{Ms: 4200, Seq: 3}, ev.Payload)
}

func TestBaseResetFromAnyState(t *testing.T) {
	b, _ := newTestBase(t)
	_, err := b.Run(OpPrepare, asyncWork)
	require.NoError(t, err)
	assert.Equal(t, StatePreparing, b.State())

	_, err = b.Run(OpReset, syncWork)
	require.NoError(t, err)
	assert.Equal(t, StateNull, b.State())

	// The abandoned prepare completion is now stale.
	b.Complete(OpPrepare, nil)
	assert.Equal(t, StateNull, b.State())
}

func TestBaseNotify(t *testing.T) {
	b, log := newTestBase(t)
	b.Notify(Event{Type: EventGotVideoFormat, Payload: VideoFormat{Width: 1280, Height: 720}})

	ev := log.last()
	assert.Equal(t, EventGotVideoFormat, ev.Type)
	assert.Equal(t, b.ID(), ev.Sender)
	assert.Equal(t, PayloadVideoFormat, ev.Payload.Kind())
}

func TestStatePredicates(t *testing.T) {
	assert.False(t, StateNull.IsPrepared())
	assert.False(t, StatePreparing.IsPrepared())
	assert.True(t, StatePaused.IsPrepared())
	assert.False(t, StateStopped.IsPrepared())
	assert.True(t, StateStarting.IsActive())
	assert.False(t, StatePrepared.IsActive())
	assert.Equal(t, "Playing", StatePlaying.String())
	assert.Equal(t, "FlushComplete", TransientFlushComplete.String())
	assert.Equal(t, "StartResult", EventStartResult.String())
	assert.Equal(t, EventPaused, OpPause.Event())
}
