package pipeline

import "sync"

const invalidTime int64 = -1

// SeekParam coalesces seek requests. The control side overwrites the
// pending slot; the command thread consumes it once per executed seek and
// keeps the consumed value as the target for position queries.
type SeekParam struct {
	mu      sync.Mutex
	pending int64
	target  int64
}

// NewSeekParam returns a SeekParam with no pending or target time.
func NewSeekParam() *SeekParam {
	return &SeekParam{pending: invalidTime, target: invalidTime}
}

// UpdatePendingTime overwrites the pending time. The last writer wins.
func (s *SeekParam) UpdatePendingTime(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ms
}

// HasPendingSeek reports whether a pending time is set.
func (s *SeekParam) HasPendingSeek() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != invalidTime
}

// ConsumePendingTime clears the pending slot, copies it into the target
// slot and returns it.
func (s *SeekParam) ConsumePendingTime() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == invalidTime {
		return 0, false
	}
	ms := s.pending
	s.pending = invalidTime
	s.target = ms
	return ms, true
}

// TargetTime returns the position a query should report during a seek. A
// pending time is promoted to target first.
func (s *SeekParam) TargetTime() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != invalidTime {
		s.target = s.pending
	}
	if s.target == invalidTime {
		return 0, false
	}
	return s.target, true
}

// ClearTargetTime invalidates the target slot.
func (s *SeekParam) ClearTargetTime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = invalidTime
}

// reset drops both slots.
func (s *SeekParam) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = invalidTime
	s.target = invalidTime
}
