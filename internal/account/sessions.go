package account

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long a started admin login may wait for the
// provider callback.
const DefaultSessionTTL = 10 * time.Minute

// Session is the per-login state parked between the authorization redirect
// and the provider callback, keyed by the OAuth2 state value.
type Session struct {
	Verifier  string
	Nonce     string
	createdAt time.Time
}

// SessionStore is an in-memory, TTL-bounded store of pending admin logins.
// Entries are removed on first use; expired entries are swept periodically
// so abandoned logins do not accumulate.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

// NewSessionStore builds a store with the given TTL (DefaultSessionTTL when
// zero).
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Put parks a pending login under state.
func (s *SessionStore) Put(state string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.createdAt = s.now()
	s.sessions[state] = sess
}

// Take removes and returns the session for state. Unknown or expired states
// report false; a taken state cannot be replayed.
func (s *SessionStore) Take(state string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[state]
	if !ok {
		return Session{}, false
	}
	delete(s.sessions, state)
	if s.now().Sub(sess.createdAt) >= s.ttl {
		return Session{}, false
	}
	return sess, true
}

// Len reports the number of parked sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and reports how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for state, sess := range s.sessions {
		if now.Sub(sess.createdAt) >= s.ttl {
			delete(s.sessions, state)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps every interval until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
