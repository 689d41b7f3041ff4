package realtime

import (
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Event is a message pushed to connected clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Registry maps account identity to the live connection session, plus the
// set of privileged (admin) sessions. It is process-lifetime state only:
// nothing is queued for offline accounts, the authoritative state lives in
// the database. All delivery is best-effort and never fails the operation
// that triggered it.
type Registry struct {
	sessions   *xsync.Map[string, *Session]
	privileged *xsync.Map[string, *Session]
	logger     *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions:   xsync.NewMap[string, *Session](),
		privileged: xsync.NewMap[string, *Session](),
		logger:     logger,
	}
}

// Register binds an account to a live session. A reconnect replaces the
// previous session for the same account.
func (r *Registry) Register(s *Session) {
	r.sessions.Store(s.AccountID, s)
	if s.Privileged {
		r.privileged.Store(s.AccountID, s)
	}
	r.logger.Debug("session registered",
		zap.String("account", s.AccountID),
		zap.String("session", s.ID),
		zap.Bool("privileged", s.Privileged))
}

// Unregister removes the session's registration. The removal is
// identity-checked: if the account already reconnected with a newer
// session, the stale disconnect leaves the new registration alone.
func (r *Registry) Unregister(s *Session) {
	r.sessions.Compute(s.AccountID, func(cur *Session, loaded bool) (*Session, xsync.ComputeOp) {
		if loaded && cur.ID == s.ID {
			return nil, xsync.DeleteOp
		}
		return cur, xsync.CancelOp
	})
	r.privileged.Compute(s.AccountID, func(cur *Session, loaded bool) (*Session, xsync.ComputeOp) {
		if loaded && cur.ID == s.ID {
			return nil, xsync.DeleteOp
		}
		return cur, xsync.CancelOp
	})
	r.logger.Debug("session unregistered",
		zap.String("account", s.AccountID),
		zap.String("session", s.ID))
}

// Lookup returns the live session for an account, if any.
func (r *Registry) Lookup(accountID string) (*Session, bool) {
	return r.sessions.Load(accountID)
}

// Online returns the number of registered sessions.
func (r *Registry) Online() int {
	return r.sessions.Size()
}

// DeliverTo pushes one event to one account. A no-op when the account has
// no live connection.
func (r *Registry) DeliverTo(accountID, eventType string, payload any) {
	s, ok := r.sessions.Load(accountID)
	if !ok {
		return
	}
	s.Send(Event{Type: eventType, Payload: payload})
}

// Broadcast pushes an event to every registered session.
func (r *Registry) Broadcast(eventType string, payload any) {
	ev := Event{Type: eventType, Payload: payload}
	r.sessions.Range(func(_ string, s *Session) bool {
		s.Send(ev)
		return true
	})
}

// BroadcastPrivileged pushes an event to admin sessions only. Used for
// operational visibility (connects, lockouts, status changes).
func (r *Registry) BroadcastPrivileged(eventType string, payload any) {
	ev := Event{Type: eventType, Payload: payload}
	r.privileged.Range(func(_ string, s *Session) bool {
		s.Send(ev)
		return true
	})
}
