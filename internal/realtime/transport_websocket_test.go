package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicemap/voicemap/internal/eventlog"
)

func startWSServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ek_test" {
			t.Errorf("authorization=%q, want bearer credential", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handle(conn)
	}))
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	received := make(chan string, 4)
	srv := startWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		// Greet, then echo what the client sends back as a user item.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.created"}`))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
	})
	defer srv.Close()

	coord := NewCoordinator(eventlog.New(0, nil))
	inbound := make(chan InboundEvent, 4)
	coord.OnMessage(func(ev InboundEvent) { inbound <- ev })

	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), "test-model")
	if err := tr.Connect(context.Background(), "ek_test", coord, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	// Dial success opens the channel immediately; sends go straight out.
	if err := coord.Send(NewUserTextEvent("hi")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev := <-inbound:
		if ev.Type != EventResponseCreated {
			t.Fatalf("inbound type=%q, want %q", ev.Type, EventResponseCreated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound event never dispatched")
	}

	select {
	case payload := <-received:
		var ev OutboundEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("unmarshal outbound: %v", err)
		}
		if ev.Type != EventConversationItemCreate {
			t.Fatalf("outbound type=%q, want %q", ev.Type, EventConversationItemCreate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outbound event never arrived")
	}
}

func TestWebSocketQueuedEventsFlushOnDial(t *testing.T) {
	got := make(chan string, 4)
	srv := startWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- string(data)
		}
	})
	defer srv.Close()

	coord := NewCoordinator(eventlog.New(0, nil))

	// Composed before any transport exists.
	coord.Send(NewUserTextEvent("queued"))
	coord.Send(NewResponseCreate())

	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), "m")
	if err := tr.Connect(context.Background(), "ek_test", coord, nil); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case payload := <-got:
			var ev OutboundEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			types = append(types, ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("flush stalled after %d events", i)
		}
	}
	if types[0] != EventConversationItemCreate || types[1] != EventResponseCreate {
		t.Fatalf("flush order=%v, want item.create then response.create", types)
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	coord := NewCoordinator(eventlog.New(0, nil))
	tr := NewWebSocketTransport("ws://127.0.0.1:1/realtime", "m")

	err := tr.Connect(context.Background(), "ek_test", coord, nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	var nego *NegotiationError
	if !errors.As(err, &nego) {
		t.Fatalf("err=%v, want NegotiationError", err)
	}
}

func TestWebSocketRemoteCloseSignalsDown(t *testing.T) {
	srv := startWSServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})
	defer srv.Close()

	coord := NewCoordinator(eventlog.New(0, nil))
	down := make(chan error, 1)

	tr := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), "m")
	if err := tr.Connect(context.Background(), "ek_test", coord, func(err error) { down <- err }); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	select {
	case err := <-down:
		if err == nil {
			t.Fatal("remote close reported as local close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("down callback never fired")
	}
}
