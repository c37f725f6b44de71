// Package scenario drives a simulated playback graph through a complete
// session and reports each step, the way an integration suite would.
//
// The session prepares and starts the graph, seeks while playing, pauses,
// seeks while paused so a preview frame is rendered, resumes, streams
// buffers through a watermark-gated flow until end of stream, then stops
// and resets. Every step has its own timeout; the first failure skips the
// rest and the graph is always reset before Run returns.
package scenario
