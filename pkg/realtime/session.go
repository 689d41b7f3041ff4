package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const sendBuffer = 64

// Session is one live connection. Events are queued on a buffered channel
// drained by the connection's writer goroutine; a full buffer drops the
// event rather than block the sender, since every event can be re-derived
// from authoritative state.
type Session struct {
	ID         string
	AccountID  string
	Privileged bool

	send   chan Event
	closed bool
	mu     sync.Mutex
	logger *zap.Logger
}

func NewSession(id, accountID string, privileged bool, logger *zap.Logger) *Session {
	return &Session{
		ID:         id,
		AccountID:  accountID,
		Privileged: privileged,
		send:       make(chan Event, sendBuffer),
		logger:     logger,
	}
}

// Send queues an event for delivery without ever blocking the caller.
func (s *Session) Send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- ev:
	default:
		s.logger.Warn("session send buffer full, dropping event",
			zap.String("account", s.AccountID),
			zap.String("type", ev.Type))
	}
}

// Events returns the channel the connection writer drains.
func (s *Session) Events() <-chan Event {
	return s.send
}

// Close marks the session closed and releases the writer goroutine.
// Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}
