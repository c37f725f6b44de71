package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/cow"
	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/config"
	"github.com/opd-ai/cow/factory"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/media"
	simtest "github.com/opd-ai/cow/testing"
	"github.com/sirupsen/logrus"
)

// ErrInvalidConfig is returned by NewRunner for unusable settings.
var ErrInvalidConfig = errors.New("invalid scenario configuration")

// Config holds the session parameters.
type Config struct {
	Name        string
	StepTimeout time.Duration

	// SeekPlaying and SeekPaused are the targets, in milliseconds, of the
	// seek issued while playing and while paused.
	SeekPlaying int64
	SeekPaused  int64

	Flow simtest.FlowConfig
}

// DefaultConfig returns a session that completes in well under a second.
func DefaultConfig() *Config {
	flow := simtest.DefaultFlowConfig()
	flow.ProduceInterval = time.Millisecond
	return &Config{
		Name:        "cowplay",
		StepTimeout: 5 * time.Second,
		SeekPlaying: 2000,
		SeekPaused:  1000,
		Flow:        flow,
	}
}

// Validate checks the session parameters.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidConfig)
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("%w: step timeout must be positive", ErrInvalidConfig)
	}
	if c.SeekPlaying < 0 || c.SeekPaused < 0 {
		return fmt.Errorf("%w: seek targets cannot be negative", ErrInvalidConfig)
	}
	if c.Flow.Buffers <= 0 {
		return fmt.Errorf("%w: flow needs at least one buffer", ErrInvalidConfig)
	}
	return nil
}

// StepStatus is the outcome of one step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepPassed
	StepFailed
	StepSkipped
)

// String returns a string representation of the step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "PENDING"
	case StepPassed:
		return "PASSED"
	case StepFailed:
		return "FAILED"
	case StepSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// StepResult records one step.
type StepResult struct {
	Name     string
	Status   StepStatus
	Duration time.Duration
	Err      string
	Metrics  map[string]any
}

// Results summarizes a session.
type Results struct {
	Steps   []StepResult
	Passed  int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// OK reports whether every step passed.
func (r *Results) OK() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Passed == len(r.Steps)
}

type step struct {
	name string
	run  func(ctx context.Context) (map[string]any, error)
}

// Runner executes one session.
type Runner struct {
	cfg    *Config
	appCfg *config.Config
	log    *logrus.Entry

	player *cow.Player
	demux  *simtest.SimulatedComponent
	audio  *simtest.SimulatedComponent
	video  *simtest.SimulatedComponent
}

// NewRunner validates cfg. A nil appCfg uses config.Default.
func NewRunner(cfg *Config, appCfg *config.Config, log *logrus.Entry) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if appCfg == nil {
		appCfg = config.Default()
	}
	return &Runner{
		cfg:    cfg,
		appCfg: appCfg,
		log:    logging.OrDiscard(log).WithField("scenario", cfg.Name),
	}, nil
}

// Run executes every step in order. The returned error is the first step
// failure.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	start := time.Now()
	steps := r.steps()
	res := &Results{Steps: make([]StepResult, 0, len(steps))}

	var firstErr error
	for _, s := range steps {
		sr := StepResult{Name: s.name, Status: StepSkipped}
		if firstErr == nil {
			sr = r.runStep(ctx, s)
			if sr.Status == StepFailed {
				firstErr = fmt.Errorf("step %s: %s", s.name, sr.Err)
			}
		}
		switch sr.Status {
		case StepPassed:
			res.Passed++
		case StepFailed:
			res.Failed++
		default:
			res.Skipped++
		}
		res.Steps = append(res.Steps, sr)
	}
	r.cleanup()
	res.Elapsed = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"function": "Run",
		"passed":   res.Passed,
		"failed":   res.Failed,
		"skipped":  res.Skipped,
		"elapsed":  res.Elapsed.String(),
	}).Info("Scenario finished")
	return res, firstErr
}

func (r *Runner) runStep(ctx context.Context, s step) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, r.cfg.StepTimeout)
	defer cancel()

	begin := time.Now()
	metrics, err := s.run(stepCtx)
	sr := StepResult{
		Name:     s.name,
		Status:   StepPassed,
		Duration: time.Since(begin),
		Metrics:  metrics,
	}
	entry := r.log.WithFields(logrus.Fields{
		"function": "runStep",
		"step":     s.name,
		"duration": sr.Duration.String(),
	})
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err.Error()
		entry.WithField("error", err.Error()).Error("Step failed")
		return sr
	}
	entry.Info("Step passed")
	return sr
}

func (r *Runner) steps() []step {
	return []step{
		{"build", r.build},
		{"prepare", r.simple(func(ctx context.Context) error { return r.player.Prepare(ctx) })},
		{"play", r.simple(func(ctx context.Context) error { return r.player.Play(ctx) })},
		{"seek-playing", r.seekTo(r.cfg.SeekPlaying)},
		{"pause", r.simple(func(ctx context.Context) error { return r.player.Pause(ctx) })},
		{"seek-paused", r.seekTo(r.cfg.SeekPaused)},
		{"resume", r.simple(func(ctx context.Context) error { return r.player.Resume(ctx) })},
		{"stream", r.stream},
		{"stop", r.simple(func(ctx context.Context) error { return r.player.Stop(ctx) })},
		{"reset", r.simple(func(ctx context.Context) error { return r.player.Reset(ctx) })},
	}
}

func (r *Runner) simple(fn func(ctx context.Context) error) func(ctx context.Context) (map[string]any, error) {
	return func(ctx context.Context) (map[string]any, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"state": r.player.State().String()}, nil
	}
}

func (r *Runner) build(context.Context) (map[string]any, error) {
	player, err := cow.NewPlayer(r.appCfg, r.cfg.Name, r.log)
	if err != nil {
		return nil, err
	}
	r.player = player

	comps, err := player.Build(factory.NewSimulationFactory(r.log), factory.PlaybackGraph())
	if err != nil {
		return nil, err
	}
	sims := make(map[string]*simtest.SimulatedComponent, len(comps))
	for _, c := range comps {
		if s, ok := c.(*simtest.SimulatedComponent); ok {
			sims[c.Name()] = s
		}
	}
	r.demux, r.audio, r.video = sims["demuxer"], sims["audio-sink"], sims["video-sink"]
	if r.demux == nil || r.audio == nil || r.video == nil {
		return nil, fmt.Errorf("playback graph is missing a simulated component")
	}

	total := time.Duration(r.cfg.Flow.Buffers) * r.cfg.Flow.FrameDuration
	r.demux.EmitDuration(total.Milliseconds())
	r.video.EmitVideoFormat(1280, 720)
	return map[string]any{"components": len(comps)}, nil
}

func (r *Runner) seekTo(ms int64) func(ctx context.Context) (map[string]any, error) {
	return func(ctx context.Context) (map[string]any, error) {
		if err := r.player.Seek(ctx, ms); err != nil {
			return nil, err
		}
		r.audio.SetPosition(ms)
		pos, err := r.player.Position()
		if err != nil {
			return nil, err
		}
		if pos != ms {
			return nil, fmt.Errorf("position %d ms after seek to %d ms", pos, ms)
		}
		return map[string]any{"position_ms": pos, "state": r.player.State().String()}, nil
	}
}

// stream pushes the flow through to its EOS buffer, which both sinks
// report, and waits for the aggregated end of stream.
func (r *Runner) stream(ctx context.Context) (map[string]any, error) {
	flow, err := simtest.NewFlow(r.cfg.Name, r.cfg.Flow, r.log)
	if err != nil {
		return nil, err
	}
	base := r.cfg.SeekPaused
	flow.OnBuffer(func(b *media.Buffer) {
		if b.EOS {
			r.audio.EmitEOS()
			r.video.EmitEOS()
			return
		}
		r.audio.SetPosition(base + b.PTS.Milliseconds())
	})

	res, err := flow.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.player.WaitEOS(ctx); err != nil {
		return nil, err
	}

	metrics := map[string]any{
		"produced":    res.Produced,
		"consumed":    res.Consumed,
		"released":    res.Released,
		"max_pending": res.MaxPending,
	}
	if avg, full := flow.Statics().Average(); full {
		metrics["avg_interval_us"] = avg
	}
	return metrics, nil
}

func (r *Runner) cleanup() {
	if r.player == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StepTimeout)
	defer cancel()
	if r.player.State() != component.StateNull {
		if err := r.player.Reset(ctx); err != nil {
			r.log.WithFields(logrus.Fields{
				"function": "cleanup",
				"error":    err.Error(),
			}).Warn("Reset during cleanup failed")
		}
	}
	for _, s := range []*simtest.SimulatedComponent{r.demux, r.audio, r.video} {
		if s != nil {
			s.Close()
		}
	}
	r.player.Close()
}
