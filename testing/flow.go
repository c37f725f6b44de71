package testing

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/cow/limits"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/media"
	"github.com/opd-ai/cow/monitor"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrFlowStopped indicates the flow was released before EOS.
var ErrFlowStopped = errors.New("flow stopped before end of stream")

// FlowConfig configures a simulated source to sink data plane.
type FlowConfig struct {
	Buffers       int
	FrameSize     int
	FrameDuration time.Duration
	LowBar        uint32
	HighBar       uint32
	Window        int

	// ProduceInterval and ConsumeInterval pace the two sides.
	ProduceInterval time.Duration
	ConsumeInterval time.Duration
}

// DefaultFlowConfig returns a small flow using the default watermarks.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		Buffers:       100,
		FrameSize:     188,
		FrameDuration: 40 * time.Millisecond,
		LowBar:        limits.DefaultLowBar,
		HighBar:       limits.DefaultHighBar,
		Window:        limits.DefaultWindowSize,
	}
}

// FlowResult describes a finished run.
type FlowResult struct {
	Produced   uint32
	Consumed   uint32
	Released   int64
	MaxPending uint32
	EOS        bool
	LastPTS    time.Duration
}

// Flow moves media buffers from a producer goroutine to a consumer
// goroutine through a TrafficControl gate.
type Flow struct {
	cfg  FlowConfig
	log  *logrus.Entry
	tc   *monitor.TrafficControl
	freq *monitor.CallFrequencyStatics

	mu    sync.Mutex
	queue []*media.Buffer

	released   atomic.Int64
	maxPending atomic.Uint32
	onBuffer   func(*media.Buffer)
}

// NewFlow validates cfg and builds the gate and statistics.
func NewFlow(name string, cfg FlowConfig, log *logrus.Entry) (*Flow, error) {
	tc, err := monitor.NewTrafficControl(name, cfg.LowBar, cfg.HighBar, log)
	if err != nil {
		return nil, err
	}
	freq, err := monitor.NewCallFrequencyStatics(name+"-consume", cfg.Window, 0, log)
	if err != nil {
		return nil, err
	}
	return &Flow{
		cfg:  cfg,
		log:  logging.OrDiscard(log).WithField("flow", name),
		tc:   tc,
		freq: freq,
	}, nil
}

// TrafficControl exposes the gate, mainly for assertions.
func (f *Flow) TrafficControl() *monitor.TrafficControl { return f.tc }

// Statics exposes the consumer cadence statistics.
func (f *Flow) Statics() *monitor.CallFrequencyStatics { return f.freq }

// OnBuffer registers a callback the consumer runs for every buffer before
// releasing it.
func (f *Flow) OnBuffer(fn func(*media.Buffer)) {
	f.onBuffer = fn
}

// Stop releases both sides.
func (f *Flow) Stop() {
	f.tc.UnblockWait(true)
}

// Run produces cfg.Buffers buffers followed by an EOS buffer and consumes
// them until EOS or until the flow is released. A Flow runs once.
func (f *Flow) Run(ctx context.Context) (FlowResult, error) {
	stop := context.AfterFunc(ctx, f.Stop)
	defer stop()

	var res FlowResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.produce(gctx) })
	g.Go(func() error {
		eos, last, err := f.consume()
		res.EOS = eos
		res.LastPTS = last
		return err
	})
	err := g.Wait()

	res.Produced = f.tc.Produced()
	res.Consumed = f.tc.Consumed()
	res.Released = f.released.Load()
	res.MaxPending = f.maxPending.Load()

	f.log.WithFields(logrus.Fields{
		"function": "Flow.Run",
		"produced": res.Produced,
		"consumed": res.Consumed,
		"eos":      res.EOS,
	}).Info("Simulated flow finished")
	return res, err
}

func (f *Flow) produce(ctx context.Context) error {
	for i := 0; i <= f.cfg.Buffers; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.tc.WaitOnFull() {
			return ErrFlowStopped
		}

		var buf *media.Buffer
		if i == f.cfg.Buffers {
			buf = media.NewEOSBuffer()
		} else {
			buf = media.NewBuffer(f.frame(i))
			buf.Meta().SetInt64(media.KeyStreamID, 0)
		}
		buf.PTS = time.Duration(i) * f.cfg.FrameDuration
		buf.DTS = buf.PTS
		buf.Duration = f.cfg.FrameDuration
		if err := buf.AddReleaseFunc(func() { f.released.Add(1) }); err != nil {
			return err
		}

		f.mu.Lock()
		f.queue = append(f.queue, buf)
		f.mu.Unlock()
		f.tc.ProduceOne()

		if p := f.tc.PendingCount(); p > f.maxPending.Load() {
			f.maxPending.Store(p)
		}
		if f.cfg.ProduceInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.cfg.ProduceInterval):
			}
		}
	}
	// Nothing more is coming; let the consumer drain below the high bar.
	f.tc.UnblockWait(true)
	return nil
}

func (f *Flow) consume() (bool, time.Duration, error) {
	var last time.Duration
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.mu.Unlock()
			if f.tc.WaitOnEmpty() {
				f.mu.Lock()
				empty := len(f.queue) == 0
				f.mu.Unlock()
				if empty {
					return false, last, ErrFlowStopped
				}
			}
			continue
		}
		buf := f.queue[0]
		f.queue[0] = nil
		f.queue = f.queue[1:]
		f.mu.Unlock()

		f.tc.ConsumeOne()
		f.freq.Tick()
		if f.onBuffer != nil {
			f.onBuffer(buf)
		}
		eos := buf.EOS
		last = buf.PTS
		if err := buf.Release(); err != nil {
			return false, last, err
		}
		if eos {
			return true, last, nil
		}
		if f.cfg.ConsumeInterval > 0 {
			time.Sleep(f.cfg.ConsumeInterval)
		}
	}
}

func (f *Flow) frame(i int) []byte {
	size := f.cfg.FrameSize
	if size < 4 {
		size = 4
	}
	data := make([]byte, size)
	binary.BigEndian.PutUint32(data, uint32(i))
	return data
}
