package msgthread

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/cow/condition"
	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// Thread is a single-goroutine actor with a deadline-ordered message queue.
type Thread struct {
	name string
	log  *logrus.Entry

	hmu      sync.RWMutex
	handlers map[int]Handler

	mu             sync.Mutex
	cond           *condition.Cond
	running        bool
	queue          []*Message
	responses      map[uint32]reply
	// waiting holds the ids of Sends still blocked on an answer.
	waiting        map[uint32]struct{}
	nextResponseID uint32
	done           chan struct{}
	warnLength     int

	// Time provider for deterministic testing.
	// If nil, DefaultTimeProvider is used.
	timeProvider TimeProvider
}

// New creates a stopped Thread. A nil log discards output.
func New(name string, log *logrus.Entry) *Thread {
	t := &Thread{
		name:         name,
		log:          logging.OrDiscard(log).WithField("thread", name),
		handlers:     make(map[int]Handler),
		responses:    make(map[uint32]reply),
		waiting:      make(map[uint32]struct{}),
		timeProvider: DefaultTimeProvider{},
	}
	t.cond = condition.New(&t.mu)
	return t
}

// Name returns the name given to New.
func (t *Thread) Name() string {
	return t.name
}

// SetTimeProvider sets the clock used for due times.
// If tp is nil, DefaultTimeProvider is used.
func (t *Thread) SetTimeProvider(tp TimeProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	t.timeProvider = tp
}

// SetQueueWarnLength makes the Thread log a warning each time its queue
// grows to n messages. Zero disables the warning.
func (t *Thread) SetQueueWarnLength(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 {
		n = 0
	}
	t.warnLength = n
}

// RegisterHandler binds h to the what tag, replacing any earlier handler.
func (t *Thread) RegisterHandler(what int, h Handler) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.handlers[what] = h
}

// Start spawns the processing goroutine.
func (t *Thread) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyRunning
	}
	t.running = true
	t.done = make(chan struct{})
	go t.loop(t.done)

	t.log.WithField("function", "Start").Debug("Message thread started")
	return nil
}

// IsRunning reports whether the Thread accepts messages.
func (t *Thread) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// QueueLength returns the number of queued, not yet dispatched messages.
func (t *Thread) QueueLength() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Post queues a message to run as soon as possible.
func (t *Thread) Post(what int, param1 int32, param2 int64, obj any) error {
	return t.PostDelayed(what, param1, param2, obj, 0)
}

// PostDelayed queues a message to run no earlier than delay from now.
// Negative delays count as zero.
func (t *Thread) PostDelayed(what int, param1 int32, param2 int64, obj any, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		t.log.WithFields(logrus.Fields{
			"function": "PostDelayed",
			"what":     what,
		}).Debug("Dropping message posted to stopped thread")
		return ErrNotRunning
	}

	t.insertLocked(&Message{
		What:   what,
		Param1: param1,
		Param2: param2,
		Obj:    obj,
		Due:    t.dueLocked(delay),
	})
	return nil
}

// Send posts a message and blocks until its handler answers through
// PostResponse or the Thread stops.
func (t *Thread) Send(what int, param1 int32, param2 int64, obj any) (Response, error) {
	return t.SendContext(context.Background(), what, param1, param2, obj)
}

// SendContext is Send that also gives up when ctx ends. A response that
// arrives after the caller gave up is discarded.
func (t *Thread) SendContext(ctx context.Context, what int, param1 int32, param2 int64, obj any) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return Response{}, ErrNotRunning
	}

	id := t.allocResponseIDLocked()
	t.waiting[id] = struct{}{}
	defer delete(t.waiting, id)
	t.insertLocked(&Message{
		What:       what,
		Param1:     param1,
		Param2:     param2,
		Obj:        obj,
		ResponseID: id,
		Due:        t.dueLocked(0),
	})

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		})
		defer stop()
	}

	for {
		if r, ok := t.responses[id]; ok {
			delete(t.responses, id)
			return r.resp, r.err
		}
		if !t.running {
			return Response{}, ErrNoResponse
		}
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		t.cond.Wait()
	}
}

// PostResponse answers the Send waiting on id. An id of 0 has no waiter
// and is ignored.
func (t *Thread) PostResponse(id uint32, resp Response) {
	t.deliver(id, reply{resp: resp})
}

func (t *Thread) deliver(id uint32, r reply) {
	if id == 0 {
		t.log.WithField("function", "PostResponse").Error("Response posted without a response id")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.waiting[id]; !ok || !t.running {
		return
	}
	t.responses[id] = r
	t.cond.Broadcast()
}

// Stop marks the Thread not running, releases every blocked Send, joins
// the goroutine and discards leftover messages. It must not be called
// from one of the Thread's own handlers.
func (t *Thread) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	done := t.done
	t.cond.Broadcast()
	t.mu.Unlock()

	<-done

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) > 0 {
		tags := make([]int, 0, len(t.queue))
		for _, msg := range t.queue {
			tags = append(tags, msg.What)
		}
		t.log.WithFields(logrus.Fields{
			"function": "Stop",
			"count":    len(t.queue),
			"what":     fmt.Sprint(tags),
		}).Warn("Discarding messages still queued at stop")
		t.queue = nil
	}
	t.responses = make(map[uint32]reply)

	t.log.WithField("function", "Stop").Debug("Message thread stopped")
}

func (t *Thread) dueLocked(delay time.Duration) time.Time {
	if delay < 0 {
		delay = 0
	}
	return t.timeProvider.Now().Add(delay)
}

func (t *Thread) allocResponseIDLocked() uint32 {
	t.nextResponseID++
	if t.nextResponseID == 0 {
		t.nextResponseID = 1
	}
	return t.nextResponseID
}

// insertLocked places msg after every message due no later than it, so
// equal due times keep post order. A new head wakes the goroutine, which
// may be sleeping on a later deadline.
func (t *Thread) insertLocked(msg *Message) {
	pos := 0
	for pos < len(t.queue) && !t.queue[pos].Due.After(msg.Due) {
		pos++
	}
	t.queue = append(t.queue, nil)
	copy(t.queue[pos+1:], t.queue[pos:])
	t.queue[pos] = msg

	if pos == 0 {
		t.cond.Signal()
	}
	if t.warnLength > 0 && len(t.queue) == t.warnLength {
		t.log.WithFields(logrus.Fields{
			"function": "insertLocked",
			"length":   len(t.queue),
		}).Warn("Message queue backing up")
	}
}

func (t *Thread) loop(done chan struct{}) {
	defer close(done)

	t.mu.Lock()
	for {
		if !t.running {
			t.mu.Unlock()
			return
		}
		if len(t.queue) == 0 {
			t.cond.Wait()
			continue
		}
		head := t.queue[0]
		if wait := head.Due.Sub(t.timeProvider.Now()); wait > 0 {
			t.cond.WaitTimeout(wait)
			continue
		}
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()

		t.dispatch(head)

		t.mu.Lock()
	}
}

func (t *Thread) dispatch(msg *Message) {
	t.hmu.RLock()
	h, ok := t.handlers[msg.What]
	t.hmu.RUnlock()

	if !ok {
		t.log.WithFields(logrus.Fields{
			"function": "dispatch",
			"what":     msg.What,
		}).Error("No handler registered for message")
		if msg.ResponseID != 0 {
			t.deliver(msg.ResponseID, reply{err: ErrUnknownMessage})
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.WithFields(logrus.Fields{
				"function": "dispatch",
				"what":     msg.What,
				"panic":    fmt.Sprint(r),
			}).Error("Message handler panicked")
			if msg.ResponseID != 0 {
				t.deliver(msg.ResponseID, reply{err: ErrHandlerPanicked})
			}
		}
	}()
	h(msg)
}
