// Package main provides cowplay, a command that runs a complete playback
// session against a simulated component graph.
//
// The session exercises prepare, play, seek while playing, pause, seek
// while paused, resume, streaming to end of stream, stop and reset, and
// prints one line per step. Tuning values come from a dotenv file and
// COW_* environment variables; with -watch the log level follows edits
// to that file while the session runs.
package main
