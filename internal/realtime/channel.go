package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voicemap/voicemap/internal/eventlog"
)

// pendingWarnThreshold is the queue depth past which the coordinator starts
// warning. The queue itself stays unbounded.
const pendingWarnThreshold = 64

// Coordinator owns the logical event channel for one session. Events sent
// before the channel reports open are queued and flushed FIFO exactly once
// on the open transition; afterwards sends go straight to the transport.
//
// The transport calls Attach once its send path exists, HandleOpen on the
// open transition, HandleRaw for each inbound frame, and HandleClose on
// teardown. All methods are safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	open     bool
	flushing bool
	closed   bool
	pending  []OutboundEvent
	sendFn   func(string) error

	handler func(InboundEvent)
	onOpen  func()
	onError func(error)

	log *eventlog.Log
}

// NewCoordinator creates a Coordinator that mirrors every sent and received
// event into log.
func NewCoordinator(log *eventlog.Log) *Coordinator {
	return &Coordinator{log: log}
}

// OnMessage registers the inbound event handler. Must be set before the
// transport connects.
func (c *Coordinator) OnMessage(h func(InboundEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// OnOpen registers a callback for the channel-open transition.
func (c *Coordinator) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

// OnError registers the observability callback for non-fatal errors
// (parse failures, dropped sends, queue warnings).
func (c *Coordinator) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Attach installs the transport's send function. The channel is not yet
// open; queued events are held until HandleOpen.
func (c *Coordinator) Attach(send func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendFn = send
	c.closed = false
}

// Send serializes and transmits ev, or queues it if the channel has not
// opened yet. The event ID and timestamp are assigned here, at send time.
// Queued events are flushed in the exact order Send was called.
func (c *Coordinator) Send(ev OutboundEvent) error {
	ev.EventID = uuid.NewString()
	ev.SentAt = time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		err := &ChannelStateError{EventType: ev.Type}
		c.reportError(err)
		return err
	}
	if !c.open {
		c.pending = append(c.pending, ev)
		n := len(c.pending)
		c.mu.Unlock()
		if n > pendingWarnThreshold {
			c.reportError(fmt.Errorf("pending event queue at %d entries, channel still not open", n))
		}
		return nil
	}
	sendFn := c.sendFn
	c.mu.Unlock()

	return c.transmit(sendFn, ev)
}

// HandleOpen drains the pending queue FIFO and switches to direct-send
// mode. Safe to call more than once; only the first open flushes.
//
// Sends racing the open transition keep queueing until the drain is done,
// so nothing can land between two queued events. The drain loops because
// those racing sends may grow the queue mid-flush.
func (c *Coordinator) HandleOpen() {
	c.mu.Lock()
	if c.open || c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		queued := c.pending
		c.pending = nil
		sendFn := c.sendFn
		c.mu.Unlock()

		for _, ev := range queued {
			c.transmit(sendFn, ev)
		}
		c.mu.Lock()
	}
	c.flushing = false
	c.open = true
	onOpen := c.onOpen
	c.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}
}

// HandleClose marks the channel closed. Later sends are dropped with a
// ChannelStateError rather than queued, since no open will ever flush them.
func (c *Coordinator) HandleClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closed = true
	c.sendFn = nil
}

// HandleRaw parses one inbound frame and dispatches it. Malformed frames
// are logged and dropped; they never take down the session.
func (c *Coordinator) HandleRaw(data []byte) {
	var ev InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.reportError(&ParseError{Raw: data, Err: err})
		return
	}
	if ev.Type == "" {
		c.reportError(&ParseError{Raw: data, Err: fmt.Errorf("missing type discriminator")})
		return
	}

	c.log.Append(eventlog.DirRecv, ev.Type, data)

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (c *Coordinator) transmit(sendFn func(string) error, ev OutboundEvent) error {
	if sendFn == nil {
		err := &ChannelStateError{EventType: ev.Type}
		c.reportError(err)
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		err = fmt.Errorf("marshal %s: %w", ev.Type, err)
		c.reportError(err)
		return err
	}
	if err := sendFn(string(payload)); err != nil {
		err = fmt.Errorf("send %s: %w", ev.Type, err)
		c.reportError(err)
		return err
	}
	c.log.Append(eventlog.DirSend, ev.Type, payload)
	return nil
}

func (c *Coordinator) reportError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Pending returns the current depth of the unflushed queue.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
