package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
)

// WebRTCTransport establishes the peer media+data session: local audio
// track plus one data channel, negotiated by posting the offer SDP to the
// signaling endpoint and applying the answer from the response body.
type WebRTCTransport struct {
	SignalURL  string
	Model      string
	HTTPClient *http.Client

	source AudioSource

	// mu guards teardown: a user Stop and the connection-state callback
	// can both reach Close concurrently.
	mu   sync.Mutex
	pc   *webrtc.PeerConnection
	pump chan struct{}
}

// NewWebRTCTransport creates a transport that negotiates against signalURL
// for model, sending audio from source.
func NewWebRTCTransport(signalURL, model string, source AudioSource) *WebRTCTransport {
	return &WebRTCTransport{
		SignalURL:  signalURL,
		Model:      model,
		HTTPClient: http.DefaultClient,
		source:     source,
	}
}

// Connect performs the offer/answer handshake. No retries: any failure is
// surfaced immediately and the caller tears down. down is invoked once if
// the established connection later fails or closes remotely.
func (t *WebRTCTransport) Connect(ctx context.Context, credential string, coord *Coordinator, down func(error)) error {
	if err := t.source.Start(); err != nil {
		return &MediaAccessError{Err: err}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.source.Stop()
		return &NegotiationError{Err: fmt.Errorf("create peer connection: %w", err)}
	}
	t.mu.Lock()
	t.pc = pc
	t.mu.Unlock()

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("create data channel: %w", err)}
	}
	coord.Attach(dc.SendText)
	dc.OnOpen(coord.HandleOpen)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		coord.HandleRaw(msg.Data)
	})
	dc.OnClose(coord.HandleClose)

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "voicemap-mic")
	if err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("create audio track: %w", err)}
	}
	if _, err := pc.AddTrack(track); err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("add audio track: %w", err)}
	}

	// Remote audio is accepted and drained; playback is outside this
	// transport's responsibility.
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := remote.Read(buf); err != nil {
					return
				}
			}
		}()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			if down != nil {
				down(fmt.Errorf("peer connection failed"))
			}
		case webrtc.PeerConnectionStateClosed:
			if down != nil {
				down(nil)
			}
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("create offer: %w", err)}
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("set local description: %w", err)}
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("candidate gathering: %w", ctx.Err())}
	}

	answer, err := t.exchangeSDP(ctx, credential, pc.LocalDescription().SDP)
	if err != nil {
		t.closePartial()
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		t.closePartial()
		return &NegotiationError{Err: fmt.Errorf("set remote description: %w", err)}
	}

	t.mu.Lock()
	t.pump = make(chan struct{})
	pump := t.pump
	t.mu.Unlock()
	go t.pumpAudio(pump, track)
	return nil
}

// exchangeSDP posts the local offer and returns the answer SDP. A non-2xx
// status surfaces the response body verbatim as the failure details.
func (t *WebRTCTransport) exchangeSDP(ctx context.Context, credential, offer string) (string, error) {
	url := t.SignalURL
	if t.Model != "" {
		url += "?model=" + t.Model
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(offer))
	if err != nil {
		return "", &NegotiationError{Err: fmt.Errorf("build signaling request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/sdp")

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &NegotiationError{Err: fmt.Errorf("signaling request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NegotiationError{Err: fmt.Errorf("read signaling response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &NegotiationError{Status: resp.StatusCode, Details: string(body)}
	}
	return string(body), nil
}

// pumpAudio forwards source samples onto the local track until the source
// drains or the transport closes.
func (t *WebRTCTransport) pumpAudio(pump chan struct{}, track *webrtc.TrackLocalStaticSample) {
	for {
		select {
		case <-pump:
			return
		default:
		}
		sample, err := t.source.Next()
		if err != nil {
			return
		}
		if err := track.WriteSample(sample); err != nil {
			return
		}
	}
}

// Close tears down the channel, local media, and peer connection. Safe on
// partial state, safe to call more than once, and safe to call from the
// connection-state callback and a user Stop concurrently.
func (t *WebRTCTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pump != nil {
		select {
		case <-t.pump:
		default:
			close(t.pump)
		}
	}
	return t.closePartialLocked()
}

func (t *WebRTCTransport) closePartial() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closePartialLocked()
}

func (t *WebRTCTransport) closePartialLocked() error {
	var first error
	if t.source != nil {
		if err := t.source.Stop(); err != nil && first == nil {
			first = err
		}
	}
	if t.pc != nil {
		if err := t.pc.Close(); err != nil && first == nil {
			first = err
		}
		t.pc = nil
	}
	return first
}
