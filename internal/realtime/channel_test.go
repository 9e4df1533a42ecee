package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/voicemap/voicemap/internal/eventlog"
)

func newTestCoordinator() *Coordinator {
	return NewCoordinator(eventlog.New(0, nil))
}

func TestSendQueuesUntilOpenThenFlushesFIFO(t *testing.T) {
	coord := newTestCoordinator()

	var sent []string
	coord.Attach(func(payload string) error {
		sent = append(sent, payload)
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := coord.Send(NewUserTextEvent(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if len(sent) != 0 {
		t.Fatalf("transmitted %d events before open, want 0", len(sent))
	}
	if coord.Pending() != 5 {
		t.Fatalf("pending=%d, want 5", coord.Pending())
	}

	coord.HandleOpen()

	if len(sent) != 5 {
		t.Fatalf("flushed %d events, want 5", len(sent))
	}
	if coord.Pending() != 0 {
		t.Fatalf("pending=%d after flush, want 0", coord.Pending())
	}
	for i, payload := range sent {
		var ev OutboundEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("unmarshal flushed event %d: %v", i, err)
		}
		want := fmt.Sprintf("msg-%d", i)
		if got := ev.Item.Content[0].Text; got != want {
			t.Fatalf("flush order: event %d text=%q, want %q", i, got, want)
		}
	}

	// A second open must not replay anything.
	coord.HandleOpen()
	if len(sent) != 5 {
		t.Fatalf("double open replayed events: %d sends, want 5", len(sent))
	}
}

func TestSendDirectAfterOpen(t *testing.T) {
	coord := newTestCoordinator()

	var sent []string
	coord.Attach(func(payload string) error {
		sent = append(sent, payload)
		return nil
	})
	coord.HandleOpen()

	if err := coord.Send(NewUserTextEvent("direct")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d events, want 1", len(sent))
	}
}

func TestSendAssignsEventIDAtSendTime(t *testing.T) {
	coord := newTestCoordinator()
	var sent []string
	coord.Attach(func(payload string) error {
		sent = append(sent, payload)
		return nil
	})
	coord.HandleOpen()

	ev := NewUserTextEvent("hi")
	if ev.EventID != "" {
		t.Fatalf("event ID assigned at creation: %q", ev.EventID)
	}
	if err := coord.Send(ev); err != nil {
		t.Fatalf("send: %v", err)
	}

	var wire OutboundEvent
	if err := json.Unmarshal([]byte(sent[0]), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.EventID == "" {
		t.Fatal("no event ID on the wire")
	}
}

func TestSendDuringFlushQueuesBehindPending(t *testing.T) {
	coord := newTestCoordinator()

	var mu sync.Mutex
	var sent []string
	firstSend := make(chan struct{})
	release := make(chan struct{})
	coord.Attach(func(payload string) error {
		var ev OutboundEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Errorf("unmarshal: %v", err)
			return nil
		}
		mu.Lock()
		sent = append(sent, ev.Item.Content[0].Text)
		n := len(sent)
		mu.Unlock()
		if n == 1 {
			close(firstSend)
			<-release
		}
		return nil
	})

	coord.Send(NewUserTextEvent("q1"))
	coord.Send(NewUserTextEvent("q2"))

	done := make(chan struct{})
	go func() {
		coord.HandleOpen()
		close(done)
	}()

	// Issue a send while the flush is stalled on q1. It must queue behind
	// q2, not jump the drain.
	<-firstSend
	if err := coord.Send(NewUserTextEvent("late")); err != nil {
		t.Fatalf("send during flush: %v", err)
	}
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	want := []string{"q1", "q2", "late"}
	if len(sent) != len(want) {
		t.Fatalf("sent %d events, want %d", len(sent), len(want))
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("wire order=%v, want %v", sent, want)
		}
	}
}

func TestSendFailureReported(t *testing.T) {
	coord := newTestCoordinator()

	var reported error
	coord.OnError(func(err error) { reported = err })
	coord.Attach(func(string) error { return errors.New("wire broken") })
	coord.HandleOpen()

	err := coord.Send(NewUserTextEvent("lost"))
	if err == nil {
		t.Fatal("transmit failure not returned")
	}
	if reported == nil || reported.Error() != err.Error() {
		t.Fatalf("reported=%v, want %v", reported, err)
	}
}

func TestSendAfterCloseDropsWithChannelStateError(t *testing.T) {
	coord := newTestCoordinator()
	coord.Attach(func(string) error { return nil })
	coord.HandleOpen()
	coord.HandleClose()

	err := coord.Send(NewResponseCreate())
	var cse *ChannelStateError
	if !errors.As(err, &cse) {
		t.Fatalf("err=%v, want ChannelStateError", err)
	}
	if cse.EventType != EventResponseCreate {
		t.Fatalf("dropped type=%q, want %q", cse.EventType, EventResponseCreate)
	}
}

func TestUserTextThenResponseCreateOrder(t *testing.T) {
	coord := newTestCoordinator()
	var types []string
	coord.Attach(func(payload string) error {
		var ev OutboundEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		types = append(types, ev.Type)
		return nil
	})

	coord.Send(NewUserTextEvent("Hello"))
	coord.Send(NewResponseCreate())
	coord.HandleOpen()

	want := []string{EventConversationItemCreate, EventResponseCreate}
	if len(types) != 2 || types[0] != want[0] || types[1] != want[1] {
		t.Fatalf("wire order=%v, want %v", types, want)
	}
}

func TestHandleRawDispatchesAndLogs(t *testing.T) {
	log := eventlog.New(0, nil)
	coord := NewCoordinator(log)

	var got InboundEvent
	coord.OnMessage(func(ev InboundEvent) { got = ev })

	coord.HandleRaw([]byte(`{"type":"response.output_text.delta","delta":"hi"}`))

	if got.Type != EventOutputTextDelta {
		t.Fatalf("dispatched type=%q, want %q", got.Type, EventOutputTextDelta)
	}
	if got.Delta != "hi" {
		t.Fatalf("delta=%q, want %q", got.Delta, "hi")
	}
	if log.Len() != 1 {
		t.Fatalf("log has %d entries, want 1", log.Len())
	}
}

func TestHandleRawMalformedDropsNonFatally(t *testing.T) {
	coord := newTestCoordinator()

	dispatched := false
	coord.OnMessage(func(InboundEvent) { dispatched = true })
	var reported error
	coord.OnError(func(err error) { reported = err })

	coord.HandleRaw([]byte(`{not json`))

	if dispatched {
		t.Fatal("malformed event was dispatched")
	}
	var pe *ParseError
	if !errors.As(reported, &pe) {
		t.Fatalf("reported=%v, want ParseError", reported)
	}

	// Coordinator still works afterwards.
	coord.HandleRaw([]byte(`{"type":"response.created"}`))
	if !dispatched {
		t.Fatal("coordinator stopped dispatching after a parse error")
	}
}

func TestHandleRawMissingTypeDropped(t *testing.T) {
	coord := newTestCoordinator()
	dispatched := false
	coord.OnMessage(func(InboundEvent) { dispatched = true })

	coord.HandleRaw([]byte(`{"delta":"orphan"}`))
	if dispatched {
		t.Fatal("event without type discriminator was dispatched")
	}
}

func TestSentEventsAppendToDisplayLog(t *testing.T) {
	log := eventlog.New(0, nil)
	coord := NewCoordinator(log)
	coord.Attach(func(string) error { return nil })
	coord.HandleOpen()

	coord.Send(NewUserTextEvent("one"))
	coord.Send(NewResponseCreate())

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("log has %d entries, want 2", len(entries))
	}
	// Most-recent-first.
	if entries[0].Type != EventResponseCreate {
		t.Fatalf("entries[0].Type=%q, want %q", entries[0].Type, EventResponseCreate)
	}
	if entries[0].Dir != eventlog.DirSend {
		t.Fatalf("entries[0].Dir=%q, want %q", entries[0].Dir, eventlog.DirSend)
	}
}
