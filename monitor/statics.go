package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/cow/limits"
	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// Anomaly describes a sample that strayed from the rolling average.
type Anomaly struct {
	Name    string
	Sample  int64
	Average int64
	Count   uint64
}

// PerformanceStatics keeps a rolling window of samples.
//
// Once the window has filled, every sample is compared with the window
// average; a sample above 150% or below 50% of it is an anomaly, provided
// the absolute deviation also exceeds the threshold when one is set.
// Every window-th sample reports the average.
type PerformanceStatics struct {
	name      string
	log       *logrus.Entry
	window    int
	threshold int64

	mu        sync.Mutex
	ring      []int64
	next      int
	sum       int64
	total     int64
	count     uint64
	avg       int64
	anomalies uint64

	onAnomaly func(Anomaly)
	onAverage func(avg int64, count uint64)
}

// NewPerformanceStatics creates a window of the given size. A threshold of
// zero disables the absolute-deviation check.
func NewPerformanceStatics(name string, window int, threshold int64, log *logrus.Entry) (*PerformanceStatics, error) {
	if err := limits.ValidateWindowSize(window); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	return &PerformanceStatics{
		name:      name,
		log:       logging.OrDiscard(log).WithField("statics", name),
		window:    window,
		threshold: threshold,
		ring:      make([]int64, 0, window),
	}, nil
}

// OnAnomaly registers a callback invoked after an anomalous sample.
func (ps *PerformanceStatics) OnAnomaly(fn func(Anomaly)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.onAnomaly = fn
}

// OnAverage registers a callback invoked every window-th sample.
func (ps *PerformanceStatics) OnAverage(fn func(avg int64, count uint64)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.onAverage = fn
}

// UpdateSample pushes one sample into the window.
func (ps *PerformanceStatics) UpdateSample(sample int64) {
	ps.mu.Lock()

	if len(ps.ring) < ps.window {
		ps.ring = append(ps.ring, sample)
	} else {
		ps.sum -= ps.ring[ps.next]
		ps.ring[ps.next] = sample
		ps.next = (ps.next + 1) % ps.window
	}
	ps.sum += sample
	ps.total += sample
	ps.count++

	var (
		anomaly    *Anomaly
		reportAvg  bool
		avg        = ps.avg
		count      = ps.count
		onAnomaly  = ps.onAnomaly
		onAverage  = ps.onAverage
		windowFull = ps.count >= uint64(ps.window)
	)

	if windowFull {
		ps.avg = ps.sum / int64(ps.window)
		avg = ps.avg
		if ps.isAnomalyLocked(sample) {
			ps.anomalies++
			anomaly = &Anomaly{Name: ps.name, Sample: sample, Average: avg, Count: count}
		}
	}
	reportAvg = count%uint64(ps.window) == 0
	ps.mu.Unlock()

	if anomaly != nil {
		ps.log.WithFields(logrus.Fields{
			"function": "UpdateSample",
			"sample":   sample,
			"average":  avg,
			"count":    count,
		}).Warn("Sample deviates from rolling average")
		if onAnomaly != nil {
			onAnomaly(*anomaly)
		}
	}
	if reportAvg {
		ps.log.WithFields(logrus.Fields{
			"function": "UpdateSample",
			"average":  avg,
			"count":    count,
		}).Info("Rolling average")
		if onAverage != nil {
			onAverage(avg, count)
		}
	}
}

func (ps *PerformanceStatics) isAnomalyLocked(sample int64) bool {
	s, a := float64(sample), float64(ps.avg)
	if s <= a*1.5 && s >= a*0.5 {
		return false
	}
	if ps.threshold <= 0 {
		return true
	}
	dev := sample - ps.avg
	if dev < 0 {
		dev = -dev
	}
	return dev > ps.threshold
}

// Average returns the current window average and whether the window has
// filled yet.
func (ps *PerformanceStatics) Average() (int64, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.avg, ps.count >= uint64(ps.window)
}

// WindowSum returns the sum of the samples currently in the window.
func (ps *PerformanceStatics) WindowSum() int64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.sum
}

// TotalSum returns the sum of every sample ever pushed.
func (ps *PerformanceStatics) TotalSum() int64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.total
}

// Count returns the number of samples pushed.
func (ps *PerformanceStatics) Count() uint64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.count
}

// Anomalies returns the number of anomalous samples seen.
func (ps *PerformanceStatics) Anomalies() uint64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.anomalies
}

// CallFrequencyStatics samples the interval, in microseconds, between
// consecutive Tick calls.
type CallFrequencyStatics struct {
	*PerformanceStatics

	mu   sync.Mutex
	last time.Time

	// Time provider for deterministic testing.
	timeProvider TimeProvider
}

// NewCallFrequencyStatics creates call-interval statistics.
func NewCallFrequencyStatics(name string, window int, thresholdUs int64, log *logrus.Entry) (*CallFrequencyStatics, error) {
	ps, err := NewPerformanceStatics(name, window, thresholdUs, log)
	if err != nil {
		return nil, err
	}
	return &CallFrequencyStatics{PerformanceStatics: ps, timeProvider: DefaultTimeProvider{}}, nil
}

// SetTimeProvider sets the clock. If tp is nil, DefaultTimeProvider is used.
func (cf *CallFrequencyStatics) SetTimeProvider(tp TimeProvider) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	cf.timeProvider = tp
}

// Tick records the time since the previous Tick. The first Tick only
// starts the clock.
func (cf *CallFrequencyStatics) Tick() {
	cf.mu.Lock()
	now := cf.timeProvider.Now()
	last := cf.last
	cf.last = now
	cf.mu.Unlock()

	if last.IsZero() {
		return
	}
	cf.UpdateSample(now.Sub(last).Microseconds())
}

// TimeCostStatics samples, in microseconds, the time between Begin and End.
type TimeCostStatics struct {
	*PerformanceStatics

	mu    sync.Mutex
	begin time.Time

	// Time provider for deterministic testing.
	timeProvider TimeProvider
}

// NewTimeCostStatics creates begin/end cost statistics.
func NewTimeCostStatics(name string, window int, thresholdUs int64, log *logrus.Entry) (*TimeCostStatics, error) {
	ps, err := NewPerformanceStatics(name, window, thresholdUs, log)
	if err != nil {
		return nil, err
	}
	return &TimeCostStatics{PerformanceStatics: ps, timeProvider: DefaultTimeProvider{}}, nil
}

// SetTimeProvider sets the clock. If tp is nil, DefaultTimeProvider is used.
func (tc *TimeCostStatics) SetTimeProvider(tp TimeProvider) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	tc.timeProvider = tp
}

// Begin marks the start of a measured section.
func (tc *TimeCostStatics) Begin() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.begin = tc.timeProvider.Now()
}

// End records the time since Begin. End without Begin is logged and
// records nothing.
func (tc *TimeCostStatics) End() {
	tc.mu.Lock()
	begin := tc.begin
	tc.begin = time.Time{}
	var cost time.Duration
	if !begin.IsZero() {
		cost = tc.timeProvider.Since(begin)
	}
	tc.mu.Unlock()

	if begin.IsZero() {
		tc.log.WithField("function", "End").Warn("End called without Begin")
		return
	}
	tc.UpdateSample(cost.Microseconds())
}
