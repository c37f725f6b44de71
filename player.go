package cow

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/config"
	"github.com/opd-ai/cow/factory"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/pipeline"
	"github.com/sirupsen/logrus"
)

// Player wraps a pipeline with calls that return once the requested state
// is reached.
type Player struct {
	pipe *pipeline.Pipeline
	log  *logrus.Entry

	mu       sync.Mutex
	listener pipeline.Listener
	eos      chan struct{}
}

// NewPlayer creates and opens a pipeline named name. A nil cfg uses
// config.Default.
func NewPlayer(cfg *config.Config, name string, log *logrus.Entry) (*Player, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log = logging.OrDiscard(log).WithField("player", name)

	pipe, err := pipeline.New(cfg.PipelineOptions(name), log)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	if err := pipe.Open(); err != nil {
		return nil, fmt.Errorf("open pipeline: %w", err)
	}

	pl := &Player{
		pipe: pipe,
		log:  log,
		eos:  make(chan struct{}, 1),
	}
	pipe.SetListener(pl)

	log.WithFields(logrus.Fields{
		"function":      "NewPlayer",
		"reset_timeout": cfg.Pipeline.ResetTimeout.String(),
		"flush_source":  cfg.Pipeline.FlushSource,
	}).Info("Player created")
	return pl, nil
}

// Pipeline returns the underlying pipeline.
func (pl *Player) Pipeline() *pipeline.Pipeline { return pl.pipe }

// Build creates the graph with f and adds it to the pipeline.
func (pl *Player) Build(f *factory.ComponentFactory, nodes []factory.Node) ([]component.Component, error) {
	return f.Build(pl.pipe, nodes)
}

// SetListener receives every pipeline event after the Player has seen it.
func (pl *Player) SetListener(l pipeline.Listener) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.listener = l
}

// OnMessage implements pipeline.Listener.
func (pl *Player) OnMessage(ev component.Event) {
	if ev.Type == component.EventEOS {
		select {
		case pl.eos <- struct{}{}:
		default:
		}
	}

	pl.mu.Lock()
	l := pl.listener
	pl.mu.Unlock()
	if l != nil {
		l.OnMessage(ev)
	}
}

// Prepare prepares every component.
func (pl *Player) Prepare(ctx context.Context) error {
	pl.drainEOS()
	return pl.lifecycle(ctx, "Prepare", pl.pipe.Prepare, component.StatePrepared)
}

// Play starts playback.
func (pl *Player) Play(ctx context.Context) error {
	return pl.lifecycle(ctx, "Play", pl.pipe.Start, component.StatePlaying)
}

// Pause pauses playback.
func (pl *Player) Pause(ctx context.Context) error {
	return pl.lifecycle(ctx, "Pause", pl.pipe.Pause, component.StatePaused)
}

// Resume resumes paused playback.
func (pl *Player) Resume(ctx context.Context) error {
	return pl.lifecycle(ctx, "Resume", pl.pipe.Resume, component.StatePlaying)
}

// Stop stops every component.
func (pl *Player) Stop(ctx context.Context) error {
	return pl.lifecycle(ctx, "Stop", pl.pipe.Stop, component.StateStopped)
}

// Flush drops buffered data in every component.
func (pl *Player) Flush(ctx context.Context) error {
	return pl.transient(ctx, "Flush", pl.pipe.Flush, component.TransientFlushComplete)
}

// Seek moves playback to ms. Seeks issued while one is running are
// coalesced; Seek returns when the last of them has finished.
func (pl *Player) Seek(ctx context.Context, ms int64) error {
	pl.drainEOS()
	return pl.transient(ctx, "Seek", func() (component.Mode, error) {
		return pl.pipe.Seek(ms)
	}, component.TransientSeekComplete)
}

// Reset returns every component to Null. It does not fail once accepted.
func (pl *Player) Reset(ctx context.Context) error {
	return pl.transient(ctx, "Reset", pl.pipe.Reset, component.TransientResetComplete)
}

// WaitEOS blocks until every connected stream has ended.
func (pl *Player) WaitEOS(ctx context.Context) error {
	select {
	case <-pl.eos:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the pipeline state.
func (pl *Player) State() component.State { return pl.pipe.State() }

// Position returns the playback position in milliseconds.
func (pl *Player) Position() (int64, error) { return pl.pipe.Position() }

// Duration returns the reported media duration in milliseconds.
func (pl *Player) Duration() int64 { return pl.pipe.Duration() }

// VideoSize returns the reported video dimensions.
func (pl *Player) VideoSize() (width, height int32) { return pl.pipe.VideoSize() }

// Close releases blocked callers and stops the pipeline threads.
func (pl *Player) Close() {
	pl.pipe.Close()
}

func (pl *Player) lifecycle(ctx context.Context, name string, op func() (component.Mode, error), target component.State) error {
	mode, err := op()
	if err != nil {
		return pl.fail(name, err)
	}
	if err := pl.pipe.Await(ctx, target); err != nil {
		return pl.fail(name, err)
	}
	pl.done(name, mode)
	return nil
}

func (pl *Player) transient(ctx context.Context, name string, op func() (component.Mode, error), target component.Transient) error {
	mode, err := op()
	if err != nil {
		return pl.fail(name, err)
	}
	if err := pl.pipe.AwaitTransient(ctx, target); err != nil {
		return pl.fail(name, err)
	}
	pl.done(name, mode)
	return nil
}

func (pl *Player) fail(name string, err error) error {
	pl.log.WithFields(logrus.Fields{
		"function": name,
		"error":    err.Error(),
	}).Warn("Player operation failed")
	return fmt.Errorf("%s: %w", name, err)
}

func (pl *Player) done(name string, mode component.Mode) {
	pl.log.WithFields(logrus.Fields{
		"function": name,
		"mode":     mode.String(),
		"state":    pl.pipe.State().String(),
	}).Debug("Player operation complete")
}

func (pl *Player) drainEOS() {
	select {
	case <-pl.eos:
	default:
	}
}
