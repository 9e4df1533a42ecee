package realtime

import (
	"errors"
	"fmt"
)

// ErrSessionActive is returned by Start when a session is already
// negotiating or active. The caller must Stop first.
var ErrSessionActive = errors.New("session already active")

// MediaAccessError indicates the local audio source could not be opened.
// Fatal to session start.
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access: %v", e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// NegotiationError indicates the signaling endpoint rejected the handshake.
// Details carries the response body verbatim.
type NegotiationError struct {
	Status  int
	Details string
	Err     error
}

func (e *NegotiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("negotiation failed: %v", e.Err)
	}
	return fmt.Sprintf("negotiation failed (status %d): %s", e.Status, e.Details)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// ParseError indicates a malformed inbound event. Non-fatal: the event is
// dropped and logged, the session stays up.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse inbound event: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ChannelStateError indicates a send was attempted after the channel closed
// with no active session. The event is dropped and logged.
type ChannelStateError struct {
	EventType string
}

func (e *ChannelStateError) Error() string {
	return fmt.Sprintf("channel closed, dropped %s", e.EventType)
}
