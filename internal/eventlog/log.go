package eventlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Direction tags an entry as sent or received.
type Direction string

const (
	DirSend Direction = "send"
	DirRecv Direction = "recv"
)

// Entry is one logged wire event.
type Entry struct {
	At   time.Time
	Dir  Direction
	Type string
	Raw  json.RawMessage
}

// Log is a bounded, append-only record of every event sent to or received
// from the model. Reads are most-recent-first, matching the display order
// of the event pane. Entries past the cap are evicted oldest-first.
type Log struct {
	mu       sync.Mutex
	max      int
	entries  []Entry
	store    Store
	onAppend func(Entry)
}

// DefaultMaxEntries bounds the in-memory log.
const DefaultMaxEntries = 500

// New creates a Log capped at max entries (0 means DefaultMaxEntries),
// mirroring each append into store. Pass a NoopStore to keep the log
// memory-only.
func New(max int, store Store) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if store == nil {
		store = NoopStore{}
	}
	return &Log{max: max, store: store}
}

// OnAppend registers a callback invoked for every appended entry. Must be
// set before the log is shared.
func (l *Log) OnAppend(fn func(Entry)) {
	l.onAppend = fn
}

// Append records one event. Raw is copied, so callers may reuse the buffer.
func (l *Log) Append(dir Direction, typ string, raw []byte) {
	e := Entry{
		At:   time.Now(),
		Dir:  dir,
		Type: typ,
		Raw:  json.RawMessage(append([]byte(nil), raw...)),
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	fn := l.onAppend
	l.mu.Unlock()

	// Archive failures are non-fatal; the in-memory log stays authoritative.
	_ = l.store.Append(context.Background(), e)

	if fn != nil {
		fn(e)
	}
}

// Entries returns a most-recent-first copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close releases the backing store.
func (l *Log) Close() error {
	return l.store.Close()
}
