// Package msgthread implements the actor runtime every cow pipeline and
// component runs on.
//
// A Thread owns one goroutine and one message queue. Messages are ordered
// by due time (ties run in post order) and are handled strictly one at a
// time, so handler code never races with other handlers of the same
// Thread.
//
// # Posting
//
//	t := msgthread.New("pipeline", log)
//	t.RegisterHandler(kWhatStart, p.onStart)
//	if err := t.Start(); err != nil {
//	    return err
//	}
//	defer t.Stop()
//
//	t.Post(kWhatStart, 0, 0, nil)                          // run as soon as possible
//	t.PostDelayed(kWhatPoll, 0, 0, nil, 20*time.Millisecond) // run in 20ms
//
// Posting to a Thread that is not running returns ErrNotRunning and the
// message is dropped.
//
// # Request / Response
//
// Send posts a message tagged with a fresh response id and blocks until
// the handler answers through PostResponse:
//
//	func (p *Pipeline) onGetState(msg *msgthread.Message) {
//	    p.thread.PostResponse(msg.ResponseID, msgthread.Response{Param1: int32(p.state)})
//	}
//
//	resp, err := t.Send(kWhatGetState, 0, 0, nil)
//
// Send returns ErrNoResponse if the Thread stops while the caller waits.
// Send must never be called from the Thread's own handlers: the handler
// that would answer can not run until the caller returns.
//
// # Shutdown
//
// Stop wakes every waiter, joins the goroutine and logs any message still
// queued. Leftover messages point at a shutdown-ordering bug in the owner;
// they are discarded, never run.
package msgthread
