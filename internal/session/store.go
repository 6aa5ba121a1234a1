package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/leanchems-go/internal/logger"
)

// DefaultTimeout is how long a session stays valid after its last activity.
const DefaultTimeout = 24 * time.Hour

// Store maps tokens to sessions in memory and writes every change through to a
// Backend. Backend failures are logged and never returned from the turn path, so a
// broken disk degrades the store to memory-only.
type Store struct {
	backend Backend
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	locksMu sync.Mutex
	locks   map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. Call LoadAll to populate it from the backend.
func NewStore(backend Backend, timeout time.Duration, opts ...Option) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Store{
		backend:  backend,
		timeout:  timeout,
		now:      time.Now,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*tokenLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the configured validity window.
func (s *Store) Timeout() time.Duration { return s.timeout }

// ResolveOrCreate returns the session for id when it is known and valid. Otherwise it
// allocates a fresh token with an empty session, persists it and returns that. The
// returned session is a copy owned by the caller.
func (s *Store) ResolveOrCreate(ctx context.Context, id string) (string, *Session) {
	now := s.now()

	if id != "" {
		if _, err := uuid.Parse(id); err == nil {
			s.mu.RLock()
			sess, ok := s.sessions[id]
			var hit *Session
			if ok && sess.Valid(now, s.timeout) {
				hit = sess.Clone()
			}
			s.mu.RUnlock()

			if hit != nil {
				return id, hit
			}
			if ok {
				s.evict(ctx, id, now)
			}
		} else {
			logger.L.Debug("ignoring malformed session id", "session_id", id)
		}
	}

	token := uuid.NewString()
	sess := newSession(now)

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	s.write(ctx, token, sess)
	logger.L.Info("session created", "session_id", token)
	return token, sess.Clone()
}

// Get returns a copy of a valid session.
func (s *Store) Get(token string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok || !sess.Valid(s.now(), s.timeout) {
		return nil, false
	}
	return sess.Clone(), true
}

// Len returns the number of sessions held in memory, valid or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Persist refreshes last_activity on sess and overwrites the stored record for token.
// last_activity never moves backwards even if the clock does.
func (s *Store) Persist(ctx context.Context, token string, sess *Session) {
	if now := s.now(); now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	stored := sess.Clone()

	s.mu.Lock()
	s.sessions[token] = stored
	s.mu.Unlock()

	s.write(ctx, token, stored)
}

func (s *Store) write(ctx context.Context, token string, sess *Session) {
	data, err := sess.marshal()
	if err != nil {
		logger.L.Error("failed to encode session; keeping it in memory only", "session_id", token, "error", err)
		return
	}
	if err := s.backend.Put(ctx, token, data); err != nil {
		logger.L.Error("failed to persist session; keeping it in memory only", "session_id", token, "error", err)
	}
}

// evict drops an expired session unless it was refreshed meanwhile.
func (s *Store) evict(ctx context.Context, token string, now time.Time) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok || sess.Valid(now, s.timeout) {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, token)
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, token); err != nil {
		logger.L.Warn("failed to delete expired session", "session_id", token, "error", err)
	}
}

// LoadAll replaces the in-memory sessions with every valid record in the backend and
// deletes the records of expired ones. Unreadable records are logged and skipped.
func (s *Store) LoadAll(ctx context.Context) map[string]*Session {
	now := s.now()
	loaded := make(map[string]*Session)

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		logger.L.Error("failed to list persisted sessions", "error", err)
	}

	expired := 0
	for _, token := range keys {
		data, err := s.backend.Get(ctx, token)
		if err != nil {
			logger.L.Warn("failed to read persisted session", "session_id", token, "error", err)
			continue
		}
		sess, err := unmarshal(data)
		if err != nil {
			logger.L.Warn("skipping corrupt session record", "session_id", token, "error", err)
			continue
		}
		if !sess.Valid(now, s.timeout) {
			expired++
			if err := s.backend.Delete(ctx, token); err != nil {
				logger.L.Warn("failed to delete expired session", "session_id", token, "error", err)
			}
			continue
		}
		loaded[token] = sess
	}

	s.mu.Lock()
	s.sessions = loaded
	out := make(map[string]*Session, len(loaded))
	for token, sess := range loaded {
		out[token] = sess.Clone()
	}
	s.mu.Unlock()

	logger.L.Info("sessions loaded", "valid", len(loaded), "expired", expired)
	return out
}

// CleanupExpired removes every invalid session from memory and the backend. It is
// safe to call repeatedly and concurrently. Backend delete failures are joined into
// the returned error after memory has been cleaned.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for token, sess := range s.sessions {
		if !sess.Valid(now, s.timeout) {
			expired = append(expired, token)
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, token := range expired {
		if err := s.backend.Delete(ctx, token); err != nil {
			logger.L.Error("failed to delete expired session", "session_id", token, "error", err)
			errs = append(errs, err)
		}
	}
	if len(expired) > 0 {
		logger.L.Info("expired sessions cleaned up", "removed", len(expired))
	}
	return len(expired), errors.Join(errs...)
}

// Lock serializes work on one token and returns the matching unlock. An empty token
// has nothing to protect and gets a no-op.
func (s *Store) Lock(token string) func() {
	if token == "" {
		return func() {}
	}

	s.locksMu.Lock()
	l, ok := s.locks[token]
	if !ok {
		l = &tokenLock{}
		s.locks[token] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, token)
		}
		s.locksMu.Unlock()
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
