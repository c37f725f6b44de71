// Package condition provides the lock/condition-variable pair the cow
// runtime synchronizes on.
//
// sync.Cond cannot wait with a deadline or a context, and both are needed:
// the message thread sleeps until the next message is due, and pipeline
// barrier waits are bounded or cancellable. Cond keeps sync.Cond's calling
// convention (the caller holds L around Wait and re-checks its predicate in
// a loop) and adds WaitTimeout and WaitContext.
//
//	mu.Lock()
//	for !ready {
//	    if cond.WaitTimeout(time.Second) {
//	        break
//	    }
//	}
//	mu.Unlock()
//
// Signal wakes at least one waiter and may wake all of them. Every waiter
// in this module loops on its own predicate, so the extra wake-ups are
// harmless.
package condition
