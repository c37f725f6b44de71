// Package testing provides simulated pipeline components and a simulated
// data plane for deterministic testing of cow.
//
// # Overview
//
// Real components wrap codecs, demuxers and render targets. The types here
// implement the same component.Component contract entirely in memory, with
// per-operation scripts and a call log, so pipeline behaviour can be
// verified without any media backend.
//
// # Simulated Components
//
// A SimulatedComponent answers every operation synchronously unless told
// otherwise:
//
//	sink := testing.NewSimulatedComponent("audio-sink", nil)
//	sink.SetScript(component.OpStart, testing.Script{Behavior: testing.BehaviorAsync})
//
//	mode, _ := sink.Start() // component.Async, nothing fired yet
//	sink.Complete(component.OpStart, nil)
//
// Async scripts with a Delay complete on their own after that delay.
// BehaviorFail makes the operation return the scripted error.
//
// Non-operation events are raised with EmitEOS, EmitVideoFormat,
// EmitDuration, EmitError and EmitPreviewDone.
//
// # Call Logs
//
// Every operation is appended to the call log. Each CallRecord contains:
//
//   - Op: The operation invoked
//   - Mode: Sync or Async as returned to the caller
//   - Err: The error returned to the caller, if any
//   - Timestamp: Unix nanoseconds when the call was made
//
// Use GetCallLog to retrieve the log, and ClearCallLog to reset between test
// cases.
//
// # Simulated Flow
//
// Flow runs a producer and a consumer goroutine over a
// monitor.TrafficControl, carrying media.Buffer values and measuring the
// consumer's cadence with monitor.CallFrequencyStatics. It is used to check
// watermark behaviour end to end and to drive EOS in demos.
//
// # Thread Safety
//
// All methods on SimulatedComponent and Flow are safe for concurrent use
// from multiple goroutines. Internal synchronization uses sync.RWMutex.
package testing
