package debrid

import (
	"context"
	"sync"
)

// SessionManager hands out per-search contexts and cancels the previous
// search when a new one begins. At most one search context is live at a time;
// producer calls from a superseded search observe cancellation through their
// context, while writes already queued for the cache store are unaffected.
type SessionManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Begin cancels any in-flight search and returns a fresh child context for
// the new one, with its cancel func for the caller to defer.
func (s *SessionManager) Begin(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	prev := s.cancel
	s.cancel = cancel
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return ctx, cancel
}

// Cancel aborts the current search, if any.
func (s *SessionManager) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
