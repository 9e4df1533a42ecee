package realtime

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateActive
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultHandshakeTimeout bounds the offer/answer exchange so a dead
// signaling endpoint cannot hang the session forever.
const DefaultHandshakeTimeout = 10 * time.Second

// Transport establishes the realtime link and binds it to a Coordinator.
// Connect must be safe to abandon via ctx; Close must tolerate partial
// state and repeated calls.
type Transport interface {
	Connect(ctx context.Context, credential string, coord *Coordinator, down func(error)) error
	Close() error
}

// Session is one end-to-end realtime connection. Exactly one session is
// meant to exist at a time; Start while one is negotiating or active is
// rejected with ErrSessionActive rather than silently replacing it.
type Session struct {
	mu        sync.Mutex
	state     State
	transport Transport
	coord     *Coordinator
	timeout   time.Duration
	onState   func(State, error)
}

// NewSession wires a Session over transport and coord.
func NewSession(transport Transport, coord *Coordinator) *Session {
	s := &Session{
		state:     StateIdle,
		transport: transport,
		coord:     coord,
		timeout:   DefaultHandshakeTimeout,
	}
	coord.OnOpen(func() {
		s.setState(StateActive, nil)
	})
	return s
}

// SetHandshakeTimeout overrides the handshake deadline. Zero disables it.
func (s *Session) SetHandshakeTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// OnStateChange registers a callback for lifecycle transitions. err is
// non-nil only for the transition into StateError.
func (s *Session) OnStateChange(fn func(State, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start negotiates the session using credential. A failed handshake leaves
// the session in StateError with no resources held; the caller retries by
// calling Start again. The session stays in StateNegotiating until the
// event channel reports open.
func (s *Session) Start(ctx context.Context, credential string) error {
	s.mu.Lock()
	if s.state == StateNegotiating || s.state == StateActive {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateNegotiating
	timeout := s.timeout
	onState := s.onState
	s.mu.Unlock()
	if onState != nil {
		onState(StateNegotiating, nil)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.transport.Connect(ctx, credential, s.coord, s.handleDown); err != nil {
		s.transport.Close()
		s.setState(StateError, err)
		return err
	}
	return nil
}

// Stop tears the session down: event channel, local media, peer
// connection. Idempotent and safe on partial state.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.coord.HandleClose()
	err := s.transport.Close()
	s.setState(StateClosed, nil)
	return err
}

// handleDown reacts to the remote side failing or closing the connection.
func (s *Session) handleDown(err error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == StateClosed || state == StateError {
		return
	}

	s.coord.HandleClose()
	s.transport.Close()
	if err != nil {
		s.setState(StateError, err)
	} else {
		s.setState(StateClosed, nil)
	}
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	// Open can race teardown: never resurrect a finished session.
	if state == StateActive && s.state != StateNegotiating {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state, err)
	}
}

// IsFatalStartError reports whether err is one of the failures that abort
// session establishment outright.
func IsFatalStartError(err error) bool {
	var media *MediaAccessError
	var nego *NegotiationError
	return errors.As(err, &media) || errors.As(err, &nego)
}
