package monitor

import (
	"sync"

	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// Hooks observe counter changes. Both methods run with the Monitor's lock
// held and receive the pending count after the change; they must not call
// back into the Monitor.
type Hooks interface {
	OnProducedOne(pending uint32) bool
	OnConsumedOne(pending uint32) bool
}

// Monitor counts produced and consumed units of one buffer flow.
type Monitor struct {
	name string
	log  *logrus.Entry

	mu       sync.Mutex
	produced uint32
	consumed uint32
	hooks    Hooks
}

// NewMonitor creates a Monitor. hooks and log may be nil.
func NewMonitor(name string, hooks Hooks, log *logrus.Entry) *Monitor {
	return &Monitor{
		name:  name,
		log:   logging.OrDiscard(log).WithField("monitor", name),
		hooks: hooks,
	}
}

// Name returns the monitor name.
func (m *Monitor) Name() string {
	return m.name
}

// ProduceOne records one produced unit and returns the hook's verdict.
func (m *Monitor) ProduceOne() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.produced++
	if m.hooks == nil {
		return true
	}
	return m.hooks.OnProducedOne(m.pendingLocked())
}

// ConsumeOne records one consumed unit and returns the hook's verdict.
// Consuming more than was produced is a caller bug; it is logged and the
// counters are left unchanged.
func (m *Monitor) ConsumeOne() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumed == m.produced {
		m.log.WithFields(logrus.Fields{
			"function": "ConsumeOne",
			"error":    ErrConsumeUnderflow.Error(),
			"produced": m.produced,
		}).Error("Consume without matching produce")
		return false
	}
	m.consumed++
	if m.hooks == nil {
		return true
	}
	return m.hooks.OnConsumedOne(m.pendingLocked())
}

// PendingCount returns produced minus consumed.
func (m *Monitor) PendingCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLocked()
}

// Produced returns the number of produced units.
func (m *Monitor) Produced() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.produced
}

// Consumed returns the number of consumed units.
func (m *Monitor) Consumed() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumed
}

// pendingLocked uses unsigned subtraction so wraparound of both counters
// still yields the right difference.
func (m *Monitor) pendingLocked() uint32 {
	return m.produced - m.consumed
}
