package monitor

import (
	"github.com/opd-ai/cow/condition"
	"github.com/opd-ai/cow/limits"
	"github.com/sirupsen/logrus"
)

// TrafficControl is a Monitor with a low/high watermark gate.
type TrafficControl struct {
	*Monitor

	lowBar  uint32
	highBar uint32

	// escape and cond are guarded by the embedded Monitor's lock.
	escape bool
	cond   *condition.Cond
}

type trafficHooks struct {
	tc *TrafficControl
}

// OnProducedOne wakes the consumer once the flow reaches the high bar.
func (h trafficHooks) OnProducedOne(pending uint32) bool {
	if pending >= h.tc.highBar {
		h.tc.cond.Signal()
	}
	return true
}

// OnConsumedOne wakes the producer once the flow drains to the low bar.
func (h trafficHooks) OnConsumedOne(pending uint32) bool {
	if pending <= h.tc.lowBar {
		h.tc.cond.Signal()
	}
	return true
}

// NewTrafficControl creates a gate. lowBar must not exceed highBar.
func NewTrafficControl(name string, lowBar, highBar uint32, log *logrus.Entry) (*TrafficControl, error) {
	if err := limits.ValidateWatermarks(lowBar, highBar); err != nil {
		return nil, err
	}

	tc := &TrafficControl{
		lowBar:  lowBar,
		highBar: highBar,
	}
	tc.Monitor = NewMonitor(name, trafficHooks{tc: tc}, log)
	tc.cond = condition.New(&tc.Monitor.mu)

	tc.log.WithFields(logrus.Fields{
		"function": "NewTrafficControl",
		"low_bar":  lowBar,
		"high_bar": highBar,
	}).Debug("Traffic control created")
	return tc, nil
}

// LowBar returns the low watermark.
func (tc *TrafficControl) LowBar() uint32 { return tc.lowBar }

// HighBar returns the high watermark.
func (tc *TrafficControl) HighBar() uint32 { return tc.highBar }

// WaitOnFull blocks the producer while the flow is full: if pending >=
// highBar it waits until pending <= lowBar or the escape flag is set. It
// reports whether it returned through the escape flag.
func (tc *TrafficControl) WaitOnFull() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.pendingLocked() < tc.highBar {
		return false
	}
	for {
		if tc.pendingLocked() <= tc.lowBar {
			return false
		}
		if tc.escape {
			return true
		}
		tc.cond.Wait()
	}
}

// WaitOnEmpty is the consumer side. When pending <= lowBar it wakes a
// producer that may be parked in WaitOnFull; when nothing at all is pending
// it waits until pending >= highBar or the escape flag is set. It reports
// whether it returned through the escape flag.
func (tc *TrafficControl) WaitOnEmpty() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	pending := tc.pendingLocked()
	if pending > tc.lowBar {
		return false
	}
	tc.cond.Signal()
	if pending != 0 {
		return false
	}
	for {
		if tc.pendingLocked() >= tc.highBar {
			return false
		}
		if tc.escape {
			return true
		}
		tc.cond.Wait()
	}
}

// UnblockWait sets the escape flag and wakes every waiter on either side.
// UnblockWait(false) re-arms the gate.
func (tc *TrafficControl) UnblockWait(escape bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.escape = escape
	tc.cond.Broadcast()

	tc.log.WithFields(logrus.Fields{
		"function": "UnblockWait",
		"escape":   escape,
	}).Debug("Traffic control waiters released")
}

// Escaped reports whether the escape flag is set.
func (tc *TrafficControl) Escaped() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.escape
}
