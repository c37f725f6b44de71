// Package limits provides centralized bounds for the tuning values the cow
// runtime accepts: traffic-control watermarks, statistics windows and the
// pipeline's bounded waits. Keeping them in one place ensures config
// loading and constructors reject the same inputs.
//
// # Watermarks
//
// A TrafficControl gate is described by a low and a high bar. Both are
// pending-buffer counts and must satisfy 0 <= low <= high <= MaxWatermark:
//
//	if err := limits.ValidateWatermarks(low, high); err != nil {
//	    // ErrWatermarkOrder or ErrOutOfRange
//	}
//
// # Statistics Windows
//
// PerformanceStatics averages over a fixed window of samples. The window
// must be in [MinWindowSize, MaxWindowSize]; see ValidateWindowSize.
//
// # Bounded Waits
//
// Reset and seek-preview waits are bounded. ValidateTimeout keeps them in
// [MinTimeout, MaxTimeout] so a misconfigured value can neither spin nor
// hang a teardown.
package limits
