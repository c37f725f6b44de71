// Package pipeline drives a graph of components as a single asynchronous
// state machine.
//
// # Barrier Rounds
//
// Every pipeline operation is dispatched to each participating component on
// the caller's goroutine. Components answer Sync, Async or an error:
//
//   - all Sync: the pipeline reaches the target state before the call
//     returns and the completion event is queued for the listener
//   - any Async: the call returns component.Async and the pipeline's event
//     thread finishes the round when the last participant reports in
//   - an error: the operation fails immediately, except for Stop and Reset,
//     which carry on across the remaining components
//
// The pipeline's lifecycle state only changes when a round finishes, so a
// caller never observes a partially applied transition:
//
//	p, _ := pipeline.New(pipeline.DefaultOptions(), log)
//	p.AddComponent(demuxer, component.RoleSource, component.MediaNone)
//	p.AddComponent(decoder, component.RoleFilter, component.MediaVideo)
//	p.AddComponent(sink, component.RoleSink, component.MediaVideo)
//	p.Open()
//	defer p.Close()
//
//	if mode, err := p.Start(); err == nil && mode == component.Async {
//	    err = p.Await(ctx, component.StatePlaying)
//	}
//
// Await must not be called from a Listener: the listener runs on the event
// thread that finishes the round.
//
// # Events
//
// Components report completions and notifications through
// component.EventSink. The pipeline forwards them to its event thread, an
// msgthread.Thread, so all aggregation runs serially. Events from unknown
// senders are logged and dropped. End of stream is aggregated: the
// listener sees one EventEOS once every connected stream ended.
//
// # Seek and Reset
//
// Seek and Reset run on a separate command thread. Seek requests coalesce
// through SeekParam; only the latest pending position is executed. A seek
// pauses a playing pipeline, flushes, seeks the sources, renders a preview
// frame when paused with video and resumes if it was playing. Reset is
// best effort, bounded by Options.ResetTimeout, and always ends in
// component.StateNull.
package pipeline
