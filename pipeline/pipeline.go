package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opd-ai/cow/component"
	"github.com/opd-ai/cow/condition"
	"github.com/opd-ai/cow/logging"
	"github.com/opd-ai/cow/msgthread"
	"github.com/sirupsen/logrus"
)

// Event thread messages.
const (
	msgComponentEvent = iota + 1
	msgNotify
)

// Command thread messages.
const (
	msgSeek = iota + 1
	msgReset
)

// Listener receives pipeline events. OnMessage always runs on the
// pipeline's event thread and must not block.
type Listener interface {
	OnMessage(ev component.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev component.Event)

// OnMessage implements Listener.
func (f ListenerFunc) OnMessage(ev component.Event) { f(ev) }

// Pipeline drives a set of components as one state machine.
type Pipeline struct {
	opts Options
	log  *logrus.Entry

	events   *msgthread.Thread
	commands *msgthread.Thread
	seek     *SeekParam

	mu        sync.Mutex
	cond      *condition.Cond
	open      bool
	records   []*record
	byID      map[uuid.UUID]*record
	listener  Listener
	state     component.State
	transient component.Transient

	// round is the barrier in flight, nil between operations.
	round *round
	// gen numbers barrier rounds. Component events are stamped with the
	// generation current when they were emitted.
	gen atomic.Uint64
	// compounds counts seeks and resets queued or running on the command
	// thread.
	compounds int
	// cancelCompound asks the running compound operation to stop early.
	cancelCompound bool
	escape         bool
	lastErr        error

	connectedStreams int
	eosCount         int
	durationMs       int64
	width            int32
	height           int32
	previewDone      bool
	previewGen       uint64
	seekSeq          uint32
}

// New creates a closed pipeline. A nil log discards output.
func New(opts Options, log *logrus.Entry) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = DefaultOptions().Name
	}

	entry := logging.OrDiscard(log).WithField("pipeline", opts.Name)
	p := &Pipeline{
		opts:     opts,
		log:      entry,
		events:   msgthread.New(opts.Name+"-events", entry),
		commands: msgthread.New(opts.Name+"-commands", entry),
		seek:     NewSeekParam(),
		byID:     make(map[uuid.UUID]*record),
	}
	p.cond = condition.New(&p.mu)
	p.events.SetQueueWarnLength(opts.QueueWarnLength)
	p.commands.SetQueueWarnLength(opts.QueueWarnLength)

	p.events.RegisterHandler(msgComponentEvent, p.handleComponentEvent)
	p.events.RegisterHandler(msgNotify, p.handleNotify)
	p.commands.RegisterHandler(msgSeek, p.handleSeek)
	p.commands.RegisterHandler(msgReset, p.handleReset)
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.opts.Name }

// Open starts the event and command threads.
func (p *Pipeline) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return nil
	}
	if err := p.events.Start(); err != nil {
		return err
	}
	if err := p.commands.Start(); err != nil {
		p.events.Stop()
		return err
	}
	p.open = true

	p.log.WithFields(logrus.Fields{
		"function":   "Open",
		"components": len(p.records),
	}).Info("Pipeline opened")
	return nil
}

// Close releases every waiter and stops both threads. Components are not
// stopped; call Stop or Reset first.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return
	}
	p.open = false
	p.escape = true
	p.cancelCompound = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.commands.Stop()
	p.events.Stop()

	p.log.WithField("function", "Close").Info("Pipeline closed")
}

// AddComponent registers c under role. The pipeline becomes c's event sink.
func (p *Pipeline) AddComponent(c component.Component, role component.Role, media component.MediaType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.byID[c.ID()]; dup {
		return fmt.Errorf("%s: %w", c.Name(), ErrDuplicateComponent)
	}
	rec := &record{comp: c, role: role, media: media, state: c.State()}
	p.records = append(p.records, rec)
	p.byID[c.ID()] = rec
	c.SetEventSink(p)

	p.log.WithFields(logrus.Fields{
		"function":  "AddComponent",
		"component": c.Name(),
		"role":      role.String(),
		"media":     media.String(),
	}).Debug("Component added")
	return nil
}

// Components returns the registered components in insertion order.
func (p *Pipeline) Components() []component.Component {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]component.Component, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec.comp)
	}
	return out
}

// SetListener sets the receiver of pipeline events.
func (p *Pipeline) SetListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
}

// State returns the pipeline's lifecycle state.
func (p *Pipeline) State() component.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transient returns the pipeline's transient marker.
func (p *Pipeline) Transient() component.Transient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transient
}

// Duration returns the last reported media duration in milliseconds.
func (p *Pipeline) Duration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationMs
}

// VideoSize returns the last reported picture dimensions.
func (p *Pipeline) VideoSize() (width, height int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// SetConnectedStreamCount sets how many EOS events make up the pipeline's
// EOS. A value of zero or less restores the default, the number of sinks.
func (p *Pipeline) SetConnectedStreamCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 {
		n = 0
	}
	p.connectedStreams = n
}

// ConnectedStreamCount returns the effective stream count.
func (p *Pipeline) ConnectedStreamCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectedStreamsLocked()
}

func (p *Pipeline) connectedStreamsLocked() int {
	if p.connectedStreams > 0 {
		return p.connectedStreams
	}
	n := 0
	for _, rec := range p.records {
		if rec.role == component.RoleSink {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// Position returns the seek target while a seek is outstanding, otherwise
// the clock of the first component that reports one.
func (p *Pipeline) Position() (int64, error) {
	if ms, ok := p.seek.TargetTime(); ok {
		return ms, nil
	}

	p.mu.Lock()
	recs := append([]*record(nil), p.records...)
	p.mu.Unlock()

	for _, rec := range recs {
		if pr, ok := rec.comp.(component.PositionReporter); ok {
			if ms, err := pr.Position(); err == nil {
				return ms, nil
			}
		}
	}
	return 0, component.ErrNoPosition
}

// Unblock releases every Await and every wait inside a running seek. The
// flag stays set until the next Prepare or Reset.
func (p *Pipeline) Unblock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escape = true
	p.cond.Broadcast()

	p.log.WithField("function", "Unblock").Debug("Pipeline waiters released")
}

// Await blocks until the pipeline reaches target. It fails with the
// operation's error when the operation in flight fails, ErrUnblocked after
// Unblock, or ctx.Err(). It must not be called from a Listener.
func (p *Pipeline) Await(ctx context.Context, target component.State) error {
	return p.await(ctx, func() bool { return p.state == target && p.round == nil }, target.String())
}

// AwaitTransient is Await for the transient marker.
func (p *Pipeline) AwaitTransient(ctx context.Context, target component.Transient) error {
	return p.await(ctx, func() bool {
		return p.transient == target && p.round == nil && p.compounds == 0
	}, target.String())
}

func (p *Pipeline) await(ctx context.Context, reached func() bool, want string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}

	for {
		if reached() {
			return nil
		}
		if p.escape {
			return ErrUnblocked
		}
		if p.round == nil && p.compounds == 0 {
			if p.lastErr != nil {
				return p.lastErr
			}
			return fmt.Errorf("pipeline is %s/%s, want %s: %w",
				p.state, p.transient, want, component.ErrInvalidState)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.cond.Wait()
	}
}

// OnComponentEvent implements component.EventSink. Events are handled on
// the event thread, tagged with the round generation at emit time.
func (p *Pipeline) OnComponentEvent(ev component.Event) {
	if err := p.events.Post(msgComponentEvent, 0, int64(p.gen.Load()), ev); err != nil {
		p.log.WithFields(logrus.Fields{
			"function": "OnComponentEvent",
			"event":    ev.Type.String(),
			"error":    err.Error(),
		}).Warn("Dropping component event")
	}
}

// post queues ev for the listener on the event thread.
func (p *Pipeline) post(ev *component.Event) {
	if ev == nil {
		return
	}
	if err := p.events.Post(msgNotify, 0, 0, *ev); err != nil {
		p.log.WithFields(logrus.Fields{
			"function": "post",
			"event":    ev.Type.String(),
			"error":    err.Error(),
		}).Warn("Dropping pipeline event")
	}
}

func (p *Pipeline) handleNotify(msg *msgthread.Message) {
	p.deliver(msg.Obj.(component.Event))
}

// deliver calls the listener. Only the event thread calls it.
func (p *Pipeline) deliver(ev component.Event) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"function": "deliver",
		"event":    ev.Type.String(),
		"success":  ev.Err == nil,
	}).Debug("Notifying listener")
	if l != nil {
		l.OnMessage(ev)
	}
}
