// Package snapshot captures the map viewport as transportable images and
// forwards them into the active conversation.
package snapshot

import (
	"fmt"
	"time"
)

// DefaultHistory is the number of recent snapshots retained for display.
const DefaultHistory = 12

// Viewport is the map camera: geographic center plus zoom level.
type Viewport struct {
	Lat  float64
	Lng  float64
	Zoom int
}

func (v Viewport) String() string {
	return fmt.Sprintf("%.5f,%.5f@z%d", v.Lat, v.Lng, v.Zoom)
}

// Snapshot is one captured viewport image. DataURL is the canonical
// payload; the relative-age string is recomputed on display, never stored.
type Snapshot struct {
	DataURL    string
	Center     Viewport
	CapturedAt time.Time
}

// Summary renders the human-readable description sent alongside the image.
func (s Snapshot) Summary() string {
	return fmt.Sprintf("Current map view: center %.5f,%.5f, zoom %d, captured %s.",
		s.Center.Lat, s.Center.Lng, s.Center.Zoom,
		s.CapturedAt.Format("15:04:05"))
}

// Age renders how long ago the snapshot was taken, relative to now.
func (s Snapshot) Age(now time.Time) string {
	d := now.Sub(s.CapturedAt)
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// history is a bounded FIFO of recent snapshots.
type history struct {
	max   int
	items []Snapshot
}

func newHistory(max int) *history {
	if max <= 0 {
		max = DefaultHistory
	}
	return &history{max: max}
}

// push appends s, evicting the oldest entry past the bound.
func (h *history) push(s Snapshot) {
	h.items = append(h.items, s)
	if len(h.items) > h.max {
		h.items = h.items[len(h.items)-h.max:]
	}
}

// all returns a newest-first copy.
func (h *history) all() []Snapshot {
	out := make([]Snapshot, len(h.items))
	for i, s := range h.items {
		out[len(h.items)-1-i] = s
	}
	return out
}
