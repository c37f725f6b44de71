package msgthread

import "time"

// Message is one entry in a Thread's queue.
//
// A handler may copy fields out of the Message but must not keep the
// Message itself after it returns. When Obj carries a pointer, ownership
// passes to the handler.
type Message struct {
	What       int
	Param1     int32
	Param2     int64
	Obj        any
	ResponseID uint32
	Due        time.Time
}

// Response is the answer a handler posts for a Send.
type Response struct {
	Param1 int32
	Param2 int64
	Obj    any
}

// Handler processes one message on the Thread's goroutine.
type Handler func(msg *Message)

type reply struct {
	resp Response
	err  error
}
