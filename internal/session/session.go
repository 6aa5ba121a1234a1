// Package session owns conversation identity, the persisted record format, expiry and
// cleanup. Sessions are kept in memory and written through to a key-value Backend.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role tags a turn as coming from the user or the assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Failed marks an assistant turn that carries the fallback text instead of a completion.
	Failed bool `json:"failed,omitempty"`
}

// Session is a server-side conversation thread.
type Session struct {
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func newSession(now time.Time) *Session {
	return &Session{
		History:      []Turn{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Valid reports whether the session is still live at now. This is the only expiry
// predicate; load, lookup and cleanup all go through it.
func (s *Session) Valid(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) < timeout
}

// Append adds a turn to the end of the history.
func (s *Session) Append(role Role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content})
}

// AppendFailed adds an assistant turn produced by the fallback path.
func (s *Session) AppendFailed(content string) {
	s.History = append(s.History, Turn{Role: RoleAssistant, Content: content, Failed: true})
}

// Clone returns a deep copy so callers never share a history slice with the store.
func (s *Session) Clone() *Session {
	c := *s
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}

func (s *Session) marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.History == nil {
		s.History = []Turn{}
	}
	return &s, nil
}
