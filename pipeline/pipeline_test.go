package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/msgthread"
	simtest "github.com/opd-ai/cow/testing"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	msgTestSync = 1000 + iota
	msgTestBlock
)

type listenerLog struct {
	mu     sync.Mutex
	events []component.Event
}

func (l *listenerLog) OnMessage(ev component.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *listenerLog) of(typ component.EventType) []component.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []component.Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (l *listenerLog) count(typ component.EventType) int {
	return len(l.of(typ))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ResetTimeout = 100 * time.Millisecond
	opts.PreviewTimeout = 100 * time.Millisecond
	return opts
}

func newTestPipeline(t *testing.T, opts Options, log *logrus.Entry) (*Pipeline, *listenerLog) {
	t.Helper()
	opts.Name = t.Name()
	p, err := New(opts, log)
	require.NoError(t, err)
	l := &listenerLog{}
	p.SetListener(l)
	require.NoError(t, p.Open())
	t.Cleanup(p.Close)
	return p, l
}

func addSim(t *testing.T, p *Pipeline, name string, role component.Role, media component.MediaType) *simtest.SimulatedComponent {
	t.Helper()
	sim := simtest.NewSimulatedComponent(name, nil)
	t.Cleanup(sim.Close)
	require.NoError(t, p.AddComponent(sim, role, media))
	return sim
}

// drainEvents returns once the event thread handled everything posted
// before the call.
func drainEvents(t *testing.T, p *Pipeline) {
	t.Helper()
	p.events.RegisterHandler(msgTestSync, func(msg *msgthread.Message) {
		p.events.PostResponse(msg.ResponseID, msgthread.Response{})
	})
	_, err := p.events.Send(msgTestSync, 0, 0, nil)
	require.NoError(t, err)
}

// blockEvents parks the event thread until the returned func runs.
func blockEvents(t *testing.T, p *Pipeline) func() {
	t.Helper()
	gate := make(chan struct{})
	started := make(chan struct{})
	p.events.RegisterHandler(msgTestBlock, func(*msgthread.Message) {
		close(started)
		<-gate
	})
	require.NoError(t, p.events.Post(msgTestBlock, 0, 0, nil))
	<-started

	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func prepareAndStart(t *testing.T, p *Pipeline) {
	t.Helper()
	_, err := p.Prepare()
	require.NoError(t, err)
	require.NoError(t, p.Await(ctxT(t), component.StatePrepared))
	_, err = p.Start()
	require.NoError(t, err)
	require.NoError(t, p.Await(ctxT(t), component.StatePlaying))
}

func TestEndToEndSingleComponentStart(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "decoder", component.RoleSink, component.MediaVideo)
	sim.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})

	mode, err := p.Prepare()
	require.NoError(t, err)
	assert.Equal(t, component.Sync, mode)
	assert.Equal(t, component.StatePrepared, p.State())

	mode, err = p.Start()
	require.NoError(t, err)
	assert.Equal(t, component.Async, mode)
	assert.Equal(t, component.StatePrepared, p.State())

	sim.Complete(component.OpStart, nil)
	require.NoError(t, p.Await(ctxT(t), component.StatePlaying))
	assert.Equal(t, component.StatePlaying, p.State())

	drainEvents(t, p)
	started := l.of(component.EventStartResult)
	require.Len(t, started, 1)
	assert.NoError(t, started[0].Err)
	assert.Equal(t, 1, l.count(component.EventPrepareResult))
}

func TestBarrierAllOrNothing(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "demuxer", component.RoleSource, component.MediaNone)
	addSim(t, p, "decoder", component.RoleFilter, component.MediaVideo)
	slow := addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	slow.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)

	mode, err := p.Start()
	require.NoError(t, err)
	assert.Equal(t, component.Async, mode)

	// The two synchronous components' events do not finish the barrier.
	drainEvents(t, p)
	assert.Equal(t, component.StatePrepared, p.State())
	assert.Zero(t, l.count(component.EventStartResult))

	slow.Complete(component.OpStart, nil)
	drainEvents(t, p)
	assert.Equal(t, component.StatePlaying, p.State())
	assert.Equal(t, 1, l.count(component.EventStartResult))

	// Late duplicates change nothing.
	slow.Complete(component.OpStart, nil)
	drainEvents(t, p)
	assert.Equal(t, 1, l.count(component.EventStartResult))
}

// A Sync participant still emits its completion event. When that event is
// handled late, it must not count toward a later round of the same kind.
func TestLateCompletionFromEarlierRoundIgnored(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	demuxer := addSim(t, p, "demuxer", component.RoleSource, component.MediaNone)
	addSim(t, p, "sink", component.RoleSink, component.MediaAudio)
	prepareAndStart(t, p)

	release := blockEvents(t, p)

	mode, err := p.Pause()
	require.NoError(t, err)
	require.Equal(t, component.Sync, mode)
	mode, err = p.Resume()
	require.NoError(t, err)
	require.Equal(t, component.Sync, mode)

	demuxer.SetScript(component.OpPause, simtest.Script{Behavior: simtest.BehaviorAsync})
	mode, err = p.Pause()
	require.NoError(t, err)
	require.Equal(t, component.Async, mode)

	release()
	drainEvents(t, p)

	assert.Equal(t, component.StatePausing, demuxer.State())
	assert.Equal(t, component.StatePlaying, p.State())
	assert.Equal(t, 1, l.count(component.EventPaused))

	demuxer.Complete(component.OpPause, nil)
	require.NoError(t, p.Await(ctxT(t), component.StatePaused))
	drainEvents(t, p)
	assert.Equal(t, 2, l.count(component.EventPaused))
}

func TestAllSyncReachesTargetBeforeReturn(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "a", component.RoleSource, component.MediaNone)
	addSim(t, p, "b", component.RoleSink, component.MediaAudio)

	_, err := p.Prepare()
	require.NoError(t, err)
	mode, err := p.Start()
	require.NoError(t, err)
	assert.Equal(t, component.Sync, mode)
	assert.Equal(t, component.StatePlaying, p.State())

	drainEvents(t, p)
	assert.Equal(t, 1, l.count(component.EventStartResult))
}

func TestSyncFailurePropagatesImmediately(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "ok", component.RoleSource, component.MediaNone)
	bad := addSim(t, p, "bad", component.RoleSink, component.MediaVideo)
	codecErr := errors.New("codec refused")
	bad.SetScript(component.OpPrepare, simtest.Script{Behavior: simtest.BehaviorFail, Err: codecErr})

	_, err := p.Prepare()
	assert.ErrorIs(t, err, codecErr)
	assert.Equal(t, component.StateNull, p.State())
	assert.ErrorIs(t, p.Await(ctxT(t), component.StatePrepared), codecErr)

	drainEvents(t, p)
	assert.Zero(t, l.count(component.EventPrepareResult), "the caller already has the error")
}

func TestAsyncFailurePropagatesImmediately(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	first := addSim(t, p, "first", component.RoleSource, component.MediaNone)
	second := addSim(t, p, "second", component.RoleSink, component.MediaVideo)
	first.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})
	second.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)
	_, err = p.Start()
	require.NoError(t, err)

	failure := errors.New("no surface")
	first.Complete(component.OpStart, failure)

	assert.ErrorIs(t, p.Await(ctxT(t), component.StatePlaying), failure)
	assert.Equal(t, component.StatePrepared, p.State())

	drainEvents(t, p)
	results := l.of(component.EventStartResult)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, failure)

	// The other component finishing later does not revive the round.
	second.Complete(component.OpStart, nil)
	drainEvents(t, p)
	assert.Len(t, l.of(component.EventStartResult), 1)
	assert.Equal(t, component.StatePrepared, p.State())
}

func TestStopAbsorbsComponentFailure(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	slow := addSim(t, p, "slow", component.RoleSource, component.MediaNone)
	broken := addSim(t, p, "broken", component.RoleSink, component.MediaAudio)
	prepareAndStart(t, p)

	broken.SetScript(component.OpStop, simtest.Script{Behavior: simtest.BehaviorFail})
	slow.SetScript(component.OpStop, simtest.Script{Behavior: simtest.BehaviorAsync})

	mode, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, component.Async, mode)

	slow.Complete(component.OpStop, errors.New("device busy"))
	require.NoError(t, p.Await(ctxT(t), component.StateStopped))

	drainEvents(t, p)
	stopped := l.of(component.EventStopped)
	require.Len(t, stopped, 1)
	assert.NoError(t, stopped[0].Err)
}

func TestStopSupersedesPendingStart(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	sim.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)
	_, err = p.Start()
	require.NoError(t, err)

	_, err = p.Pause()
	assert.ErrorIs(t, err, ErrOpInProgress)

	mode, err := p.Stop()
	require.NoError(t, err)
	assert.Equal(t, component.Sync, mode)
	assert.Equal(t, component.StateStopped, p.State())

	drainEvents(t, p)
	started := l.of(component.EventStartResult)
	require.Len(t, started, 1)
	assert.ErrorIs(t, started[0].Err, ErrSuperseded)
	assert.Equal(t, 1, l.count(component.EventStopped))
}

func TestFlushTracksTransientOnly(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "decoder", component.RoleFilter, component.MediaAudio)
	prepareAndStart(t, p)
	sim.SetScript(component.OpFlush, simtest.Script{Behavior: simtest.BehaviorAsync})

	mode, err := p.Flush()
	require.NoError(t, err)
	assert.Equal(t, component.Async, mode)
	assert.Equal(t, component.TransientFlushing, p.Transient())
	assert.Equal(t, component.StatePlaying, p.State())

	sim.Complete(component.OpFlush, nil)
	require.NoError(t, p.AwaitTransient(ctxT(t), component.TransientFlushComplete))
	assert.Equal(t, component.StatePlaying, p.State())

	drainEvents(t, p)
	assert.Equal(t, 1, l.count(component.EventFlushComplete))
}

func TestEOSAggregation(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "demuxer", component.RoleSource, component.MediaNone)
	audio := addSim(t, p, "audio-sink", component.RoleSink, component.MediaAudio)
	video := addSim(t, p, "video-sink", component.RoleSink, component.MediaVideo)
	prepareAndStart(t, p)
	assert.Equal(t, 2, p.ConnectedStreamCount())

	video.EmitDuration(60000)
	video.EmitVideoFormat(1280, 720)
	drainEvents(t, p)
	assert.Equal(t, int64(60000), p.Duration())

	audio.EmitEOS()
	drainEvents(t, p)
	assert.Zero(t, l.count(component.EventEOS))
	assert.Equal(t, int64(60000), p.Duration(), "counters survive a partial EOS")

	video.EmitEOS()
	drainEvents(t, p)
	assert.Equal(t, 1, l.count(component.EventEOS))
	assert.Zero(t, p.Duration())
	w, h := p.VideoSize()
	assert.Zero(t, w)
	assert.Zero(t, h)
	assert.Equal(t, component.TransientEOSComplete, p.Transient())
}

func TestConnectedStreamCountOverride(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "demuxer", component.RoleSource, component.MediaNone)
	audio := addSim(t, p, "audio-sink", component.RoleSink, component.MediaAudio)
	addSim(t, p, "video-sink", component.RoleSink, component.MediaVideo)
	prepareAndStart(t, p)

	p.SetConnectedStreamCount(1)
	audio.EmitEOS()
	drainEvents(t, p)
	assert.Equal(t, 1, l.count(component.EventEOS))

	p.SetConnectedStreamCount(0)
	assert.Equal(t, 2, p.ConnectedStreamCount())
}

func TestNotificationsForwarded(t *testing.T) {
	p, l := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "decoder", component.RoleSink, component.MediaVideo)

	sim.EmitVideoFormat(640, 480)
	sim.EmitError(errors.New("underrun"))
	drainEvents(t, p)

	formats := l.of(component.EventGotVideoFormat)
	require.Len(t, formats, 1)
	assert.Equal(t, sim.ID(), formats[0].Sender)
	assert.Equal(t, component.VideoFormat{Width: 640, Height: 480}, formats[0].Payload)
	assert.Equal(t, 1, l.count(component.EventError))
}

func TestUnknownSenderIsLoggedAndIgnored(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	p, l := newTestPipeline(t, testOptions(), logrus.NewEntry(logger))
	sim := addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	sim.SetScript(component.OpStart, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)
	_, err = p.Start()
	require.NoError(t, err)

	p.OnComponentEvent(component.Event{Type: component.EventStartResult, Sender: uuid.New()})
	drainEvents(t, p)

	assert.Equal(t, component.StatePrepared, p.State())
	assert.Zero(t, l.count(component.EventStartResult))

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Event from unknown component" {
			found = true
			assert.Equal(t, logrus.ErrorLevel, entry.Level)
		}
	}
	assert.True(t, found, "unknown sender must be logged")

	sim.Complete(component.OpStart, nil)
	require.NoError(t, p.Await(ctxT(t), component.StatePlaying))
}

func TestUnblockReleasesAwait(t *testing.T) {
	p, _ := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	sim.SetScript(component.OpPrepare, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Await(context.Background(), component.StatePrepared) }()

	time.Sleep(10 * time.Millisecond)
	p.Unblock()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrUnblocked)
	case <-time.After(time.Second):
		t.Fatal("Await still blocked after Unblock")
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	p, _ := newTestPipeline(t, testOptions(), nil)
	sim := addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	sim.SetScript(component.OpPrepare, simtest.Script{Behavior: simtest.BehaviorAsync})

	_, err := p.Prepare()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Await(ctx, component.StatePrepared), context.DeadlineExceeded)
}

func TestPrepareClearsEscape(t *testing.T) {
	p, _ := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "sink", component.RoleSink, component.MediaVideo)

	p.Unblock()
	_, err := p.Prepare()
	require.NoError(t, err)
	assert.NoError(t, p.Await(ctxT(t), component.StatePrepared))
}

func TestResetClearsEscape(t *testing.T) {
	p, _ := newTestPipeline(t, testOptions(), nil)
	addSim(t, p, "sink", component.RoleSink, component.MediaVideo)
	prepareAndStart(t, p)

	p.Unblock()
	_, err := p.Reset()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return p.Transient() == component.TransientResetComplete
	}, time.Second, 5*time.Millisecond)

	p.mu.Lock()
	escaped := p.escape
	p.mu.Unlock()
	assert.False(t, escaped)
	assert.NoError(t, p.AwaitTransient(ctxT(t), component.TransientResetComplete))
}

func TestOperationPreconditions(t *testing.T) {
	p, err := New(testOptions(), nil)
	require.NoError(t, err)

	_, err = p.Start()
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, p.Open())
	defer p.Close()

	_, err = p.Prepare()
	assert.ErrorIs(t, err, ErrNoComponents)

	sim := simtest.NewSimulatedComponent("dup", nil)
	require.NoError(t, p.AddComponent(sim, component.RoleSink, component.MediaAudio))
	assert.ErrorIs(t, p.AddComponent(sim, component.RoleSink, component.MediaAudio), ErrDuplicateComponent)

	_, err = p.Start()
	assert.ErrorIs(t, err, component.ErrInvalidState)
}

func TestNewRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.ResetTimeout = time.Nanosecond
	_, err := New(opts, nil)
	assert.Error(t, err)
}
