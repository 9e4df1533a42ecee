package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Strategy selects when recurring captures fire.
type Strategy string

const (
	// StrategyInterval captures on a fixed timer.
	StrategyInterval Strategy = "interval"
	// StrategyIdle captures after the viewport has been still for the
	// debounce window following a pan or zoom.
	StrategyIdle Strategy = "idle"
)

const (
	DefaultInterval = 15 * time.Second
	DefaultDebounce = 350 * time.Millisecond
)

// ErrUnchanged is returned by CaptureOnce when the rendered payload is
// byte-identical to the previous capture. Not a failure; nothing is
// emitted.
var ErrUnchanged = errors.New("viewport unchanged since last capture")

// CaptureError wraps a fetch or render failure. Non-fatal to the session:
// it stops only the recurring timer.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture: %v", e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }

// Fetcher renders a viewport into an encoded image payload (a data URL).
type Fetcher interface {
	Fetch(ctx context.Context, vp Viewport) (string, error)
}

// Config tunes a Capturer. Zero values take the defaults above.
type Config struct {
	Strategy Strategy
	Interval time.Duration
	Debounce time.Duration
	History  int
}

// Capturer turns viewport state into a stream of snapshots. One capture
// strategy is chosen at construction; both strategies share the same
// capture path, dedupe, and bounded history.
type Capturer struct {
	cfg   Config
	fetch Fetcher

	mu       sync.Mutex
	vp       Viewport
	running  bool
	stop     chan struct{}
	debounce *time.Timer
	last     string
	history  *history

	onSnapshot func(Snapshot)
	onError    func(error)
}

// New creates a Capturer rendering through fetch.
func New(cfg Config, fetch Fetcher) *Capturer {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyInterval
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Capturer{
		cfg:     cfg,
		fetch:   fetch,
		history: newHistory(cfg.History),
	}
}

// OnSnapshot registers the forwarding callback invoked for every new
// (non-duplicate) capture. Must be set before Start.
func (c *Capturer) OnSnapshot(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSnapshot = fn
}

// OnError registers the status callback for capture failures.
func (c *Capturer) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// SetViewport updates the camera without triggering a capture.
func (c *Capturer) SetViewport(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vp = vp
}

// ViewportChanged updates the camera and, under the idle strategy, arms
// the debounce timer: a capture fires once the viewport has been still for
// the debounce window.
func (c *Capturer) ViewportChanged(vp Viewport) {
	c.mu.Lock()
	c.vp = vp
	if !c.running || c.cfg.Strategy != StrategyIdle {
		c.mu.Unlock()
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.cfg.Debounce, func() {
		c.captureAndForward(context.Background())
	})
	c.mu.Unlock()
}

// Start begins recurring captures. No-op if already running. Under the
// interval strategy it captures immediately, then on every tick; under the
// idle strategy it captures immediately, then on viewport idle.
func (c *Capturer) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	c.captureAndForward(context.Background())

	if c.cfg.Strategy == StrategyInterval {
		go c.intervalLoop(stop)
	}
}

func (c *Capturer) intervalLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.captureAndForward(context.Background())
		}
	}
}

// Stop cancels recurring captures. Idempotent.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Capturer) stopLocked() {
	if !c.running {
		return
	}
	c.running = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

// Running reports whether recurring captures are active.
func (c *Capturer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CaptureOnce renders the current viewport. An unchanged payload returns
// ErrUnchanged with no emission; a new payload is pushed into history and
// returned.
func (c *Capturer) CaptureOnce(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	vp := c.vp
	c.mu.Unlock()

	payload, err := c.fetch.Fetch(ctx, vp)
	if err != nil {
		return Snapshot{}, &CaptureError{Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if payload == c.last {
		return Snapshot{}, ErrUnchanged
	}
	c.last = payload
	snap := Snapshot{
		DataURL:    payload,
		Center:     vp,
		CapturedAt: time.Now(),
	}
	c.history.push(snap)
	return snap, nil
}

// TriggerOnce runs one manual capture through the same forwarding path as
// recurring captures.
func (c *Capturer) TriggerOnce(ctx context.Context) {
	c.captureAndForward(ctx)
}

// History returns the retained snapshots, newest first.
func (c *Capturer) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.all()
}

// captureAndForward is the recurring capture path: failures stop the timer
// so a broken fetch does not loop, duplicates are skipped, everything else
// is handed to the forwarding callback.
func (c *Capturer) captureAndForward(ctx context.Context) {
	snap, err := c.CaptureOnce(ctx)
	if errors.Is(err, ErrUnchanged) {
		return
	}
	if err != nil {
		c.mu.Lock()
		c.stopLocked()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
		return
	}

	c.mu.Lock()
	fn := c.onSnapshot
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
