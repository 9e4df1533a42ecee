package realtime

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one displayed chat line. Preview marks an in-progress
// assistant utterance that is re-rendered in place as deltas arrive; at
// most one preview entry exists at a time.
type TranscriptEntry struct {
	Role    Role
	Text    string
	Preview bool
	At      time.Time
}

type streamState int

const (
	streamIdle streamState = iota
	streamActive
)

// Reconciler folds the inbound event stream into transcript state:
// streaming partial assistant text, committing finalized messages, and
// deduplicating echoes of user input the local UI already rendered.
type Reconciler struct {
	mu           sync.Mutex
	entries      []TranscriptEntry
	previewIdx   int
	buf          strings.Builder
	state        streamState
	lastUserText string

	onChange func([]TranscriptEntry)
	onError  func(error)
}

// NewReconciler creates an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{previewIdx: -1}
}

// OnChange registers a callback invoked with a fresh copy of the transcript
// after every mutation.
func (r *Reconciler) OnChange(fn func([]TranscriptEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// OnError registers the observability callback for response.error events.
func (r *Reconciler) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// Handle consumes one inbound event. Unknown event types are ignored.
func (r *Reconciler) Handle(ev InboundEvent) {
	r.mu.Lock()

	switch ev.Type {
	case EventResponseCreated:
		// A new response replaces any stale preview outright.
		r.buf.Reset()
		r.state = streamActive
		r.dropPreviewLocked()
		r.notifyLocked()

	case EventOutputTextDelta:
		if r.state != streamActive || ev.Delta == "" {
			break
		}
		r.buf.WriteString(ev.Delta)
		r.upsertPreviewLocked(r.buf.String())
		r.notifyLocked()

	case EventResponseCompleted:
		if r.state != streamActive {
			break
		}
		text := strings.TrimSpace(r.buf.String())
		r.dropPreviewLocked()
		if text != "" {
			r.entries = append(r.entries, TranscriptEntry{
				Role: RoleAssistant,
				Text: text,
				At:   time.Now(),
			})
		}
		r.buf.Reset()
		r.state = streamIdle
		r.notifyLocked()

	case EventResponseError:
		msg := "unknown error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		r.dropPreviewLocked()
		r.buf.Reset()
		r.state = streamIdle
		onError := r.onError
		r.notifyLocked()
		r.mu.Unlock()
		if onError != nil {
			onError(fmt.Errorf("response error: %s", msg))
		}
		return

	case EventConversationItemCreated:
		if ev.Item == nil || Role(ev.Item.Role) != RoleUser {
			break
		}
		text := ""
		for _, part := range ev.Item.Content {
			if v := part.TextValue(); v != "" {
				text = v
				break
			}
		}
		// Guard against echoes of input the local UI rendered optimistically.
		if text == "" || text == r.lastUserText {
			break
		}
		r.lastUserText = text
		r.appendUserLocked(text)
		r.notifyLocked()
	}

	r.mu.Unlock()
}

// NoteLocalUserText records text the local UI rendered optimistically, so
// the server's echo of the same message is not displayed twice.
func (r *Reconciler) NoteLocalUserText(text string) {
	r.mu.Lock()
	r.lastUserText = text
	r.appendUserLocked(text)
	r.notifyLocked()
	r.mu.Unlock()
}

// Entries returns a copy of the transcript in chronological order.
func (r *Reconciler) Entries() []TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TranscriptEntry(nil), r.entries...)
}

// appendUserLocked inserts a user entry. The preview stays pinned at the
// tail, so a user message arriving mid-stream lands just before it.
func (r *Reconciler) appendUserLocked(text string) {
	e := TranscriptEntry{
		Role: RoleUser,
		Text: text,
		At:   time.Now(),
	}
	if r.previewIdx >= 0 {
		r.entries = append(r.entries[:r.previewIdx],
			append([]TranscriptEntry{e}, r.entries[r.previewIdx:]...)...)
		r.previewIdx++
		return
	}
	r.entries = append(r.entries, e)
}

func (r *Reconciler) upsertPreviewLocked(text string) {
	if r.previewIdx >= 0 {
		r.entries[r.previewIdx].Text = text
		return
	}
	r.entries = append(r.entries, TranscriptEntry{
		Role:    RoleAssistant,
		Text:    text,
		Preview: true,
		At:      time.Now(),
	})
	r.previewIdx = len(r.entries) - 1
}

func (r *Reconciler) dropPreviewLocked() {
	if r.previewIdx < 0 {
		return
	}
	r.entries = append(r.entries[:r.previewIdx], r.entries[r.previewIdx+1:]...)
	r.previewIdx = -1
}

func (r *Reconciler) notifyLocked() {
	if r.onChange == nil {
		return
	}
	r.onChange(append([]TranscriptEntry(nil), r.entries...))
}
