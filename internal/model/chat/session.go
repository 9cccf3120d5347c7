package chat

import (
	"sync"
	"time"
)

// Session holds the ordered transcript of one client conversation.
// Messages are only ever appended or cleared all at once.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	mu       sync.RWMutex
	messages []Message
}

// NewSession returns an empty session with the given identifier.
func NewSession(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: createdAt,
		messages:  make([]Message, 0, 16),
	}
}

// Append adds msg to the end of the transcript.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Clear drops every message.
func (s *Session) Clear() {
	s.mu.Lock()
	s.messages = make([]Message, 0, 16)
	s.mu.Unlock()
}

// All returns a copy of the transcript in chronological order.
func (s *Session) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Len reports the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
