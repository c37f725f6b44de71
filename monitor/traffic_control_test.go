package monitor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/opd-ai/cow/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTC(t *testing.T, low, high uint32) *TrafficControl {
	t.Helper()
	tc, err := NewTrafficControl(t.Name(), low, high, nil)
	require.NoError(t, err)
	return tc
}

func TestNewTrafficControlRejectsInvertedBars(t *testing.T) {
	_, err := NewTrafficControl("inverted", 5, 3, nil)
	assert.ErrorIs(t, err, limits.ErrWatermarkOrder)
}

func TestWaitOnFullBelowHighBarDoesNotBlock(t *testing.T) {
	tc := newTC(t, 1, 3)
	tc.ProduceOne()
	tc.ProduceOne()

	done := make(chan bool, 1)
	go func() { done <- tc.WaitOnFull() }()

	select {
	case escaped := <-done:
		assert.False(t, escaped)
	case <-time.After(time.Second):
		t.Fatal("WaitOnFull blocked below the high bar")
	}
}

func TestWaitOnFullBlocksAtHighBarUntilLowBar(t *testing.T) {
	tc := newTC(t, 1, 3)
	for i := 0; i < 3; i++ {
		tc.ProduceOne()
	}

	done := make(chan bool, 1)
	go func() { done <- tc.WaitOnFull() }()

	// pending 3 -> 2: still above the low bar, must keep waiting.
	time.Sleep(20 * time.Millisecond)
	tc.ConsumeOne()
	select {
	case <-done:
		t.Fatal("WaitOnFull returned above the low bar")
	case <-time.After(30 * time.Millisecond):
	}

	// pending 2 -> 1: at the low bar (inclusive), must return naturally.
	tc.ConsumeOne()
	select {
	case escaped := <-done:
		assert.False(t, escaped)
		assert.LessOrEqual(t, tc.PendingCount(), tc.LowBar())
	case <-time.After(time.Second):
		t.Fatal("WaitOnFull not released at the low bar")
	}
}

func TestWaitOnEmptyBlocksOnlyWhenNothingPending(t *testing.T) {
	tc := newTC(t, 2, 4)

	// One pending, at or below the low bar: returns without blocking.
	tc.ProduceOne()
	assert.False(t, tc.WaitOnEmpty())
	tc.ConsumeOne()

	done := make(chan bool, 1)
	go func() { done <- tc.WaitOnEmpty() }()

	// Producing below the high bar must not release the consumer.
	for i := 0; i < 3; i++ {
		tc.ProduceOne()
	}
	select {
	case <-done:
		t.Fatal("WaitOnEmpty returned below the high bar")
	case <-time.After(30 * time.Millisecond):
	}

	tc.ProduceOne()
	select {
	case escaped := <-done:
		assert.False(t, escaped)
		assert.GreaterOrEqual(t, tc.PendingCount(), tc.HighBar())
	case <-time.After(time.Second):
		t.Fatal("WaitOnEmpty not released at the high bar")
	}
}

func TestUnblockWaitReleasesBothSides(t *testing.T) {
	producer := newTC(t, 0, 1)
	producer.ProduceOne()
	consumer := newTC(t, 0, 1)

	results := make(chan bool, 2)
	go func() { results <- producer.WaitOnFull() }()
	go func() { results <- consumer.WaitOnEmpty() }()

	time.Sleep(20 * time.Millisecond)
	producer.UnblockWait(true)
	consumer.UnblockWait(true)

	for i := 0; i < 2; i++ {
		select {
		case escaped := <-results:
			assert.True(t, escaped)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by UnblockWait")
		}
	}
	assert.True(t, producer.Escaped())

	// Re-arming restores normal blocking.
	producer.UnblockWait(false)
	assert.False(t, producer.Escaped())
}

func TestUnblockWaitWithNoWaiters(t *testing.T) {
	tc := newTC(t, 1, 2)
	tc.UnblockWait(true)

	for i := 0; i < 2; i++ {
		tc.ProduceOne()
	}
	// Full and escaped: returns immediately through the escape path.
	assert.True(t, tc.WaitOnFull())
}

// TestRandomFlowKeepsWatermarkInvariants drives a producer and a consumer
// through random bursts and checks the documented invariants on every
// natural wake-up.
func TestRandomFlowKeepsWatermarkInvariants(t *testing.T) {
	tc := newTC(t, 2, 6)
	const total = 500
	rng := rand.New(rand.NewSource(7))
	delays := make([]time.Duration, total)
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(50)) * time.Microsecond
	}

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := 0; i < total; i++ {
			tc.ProduceOne()
			if tc.PendingCount() >= tc.HighBar() {
				if !tc.WaitOnFull() {
					// Only the consumer runs meanwhile, and it only drains.
					assert.LessOrEqual(t, tc.PendingCount(), tc.LowBar())
				}
			}
		}
	}()

	consumed := 0
	for consumed < total {
		if tc.PendingCount() == 0 {
			select {
			case <-producerDone:
			default:
				time.Sleep(delays[consumed])
				continue
			}
		}
		if tc.PendingCount() > 0 {
			tc.ConsumeOne()
			consumed++
		}
	}
	<-producerDone

	assert.Equal(t, uint32(total), tc.Produced())
	assert.Equal(t, uint32(total), tc.Consumed())
	assert.Equal(t, uint32(0), tc.PendingCount())
}
