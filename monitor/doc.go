// Package monitor tracks buffer flow between pipeline stages and turns it
// into backpressure and diagnostics.
//
// # Monitor
//
// A Monitor counts produced and consumed units under one lock. Producers
// call ProduceOne, consumers call ConsumeOne, and PendingCount is the
// difference. Specializations observe every change through Hooks, which
// run while the lock is still held.
//
// # TrafficControl
//
// TrafficControl gates a producer/consumer pair with two inclusive
// watermarks:
//
//	tc, err := monitor.NewTrafficControl("video-decoder", 2, 8, log)
//
//	// producer goroutine
//	for buf := range frames {
//	    out <- buf
//	    tc.ProduceOne()
//	    if tc.WaitOnFull() {
//	        return // released by UnblockWait during teardown
//	    }
//	}
//
//	// consumer goroutine
//	for {
//	    if tc.WaitOnEmpty() {
//	        return
//	    }
//	    render(<-out)
//	    tc.ConsumeOne()
//	}
//
// A producer blocks in WaitOnFull once pending >= high and resumes when
// pending <= low. A consumer blocks in WaitOnEmpty only when nothing is
// pending and resumes once pending >= high. UnblockWait(true) releases both
// sides without knowing which one, if any, is waiting.
//
// # Statistics
//
// PerformanceStatics keeps a rolling window of samples and logs samples
// that stray more than 50% from the window average. CallFrequencyStatics
// samples the interval between calls; TimeCostStatics samples the time
// between Begin and End.
package monitor
