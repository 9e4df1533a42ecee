package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is the alternate realtime link: instead of a peer
// media session it dials the vendor websocket endpoint and carries only
// the event channel. The channel counts as open as soon as the dial
// succeeds, so the coordinator's queue drains immediately.
type WebSocketTransport struct {
	URL    string
	Model  string
	Dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

// NewWebSocketTransport creates a transport dialing url for model.
func NewWebSocketTransport(url, model string) *WebSocketTransport {
	return &WebSocketTransport{
		URL:    url,
		Model:  model,
		Dialer: websocket.DefaultDialer,
	}
}

func (t *WebSocketTransport) Connect(ctx context.Context, credential string, coord *Coordinator, down func(error)) error {
	url := t.URL
	if t.Model != "" {
		url += "?model=" + t.Model
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &NegotiationError{Status: status, Err: fmt.Errorf("websocket dial: %w", err)}
	}

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	t.mu.Unlock()

	coord.Attach(t.sendText)
	coord.HandleOpen()

	go t.readPump(conn, coord, down)
	return nil
}

func (t *WebSocketTransport) sendText(payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("websocket closed")
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (t *WebSocketTransport) readPump(conn *websocket.Conn, coord *Coordinator, down func(error)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			coord.HandleClose()
			select {
			case <-t.done:
				// Local close; not a failure.
				if down != nil {
					down(nil)
				}
			default:
				if down != nil {
					down(fmt.Errorf("websocket read: %w", err))
				}
			}
			return
		}
		coord.HandleRaw(data)
	}
}

// Close shuts the connection down. Idempotent.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
