package agent

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// MemoryStore keeps one session's chat history in memory behind a sliding
// window. History is never persisted across sessions.
type MemoryStore struct {
	mu          sync.RWMutex
	sessionID   string
	msgs        []*schema.Message
	maxMessages int
}

// NewMemoryStore creates a history store for a fresh session.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessionID:   uuid.NewString(),
		maxMessages: 20,
	}
}

// SessionID returns the id of the session this store belongs to.
func (s *MemoryStore) SessionID() string {
	return s.sessionID
}

// Add appends a message, dropping the oldest once the window is full.
func (s *MemoryStore) Add(ctx context.Context, msg *schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if len(s.msgs) > s.maxMessages {
		s.msgs = s.msgs[len(s.msgs)-s.maxMessages:]
	}
	return nil
}

// List returns a copy of the session history in order.
func (s *MemoryStore) List(ctx context.Context) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*schema.Message, len(s.msgs))
	copy(result, s.msgs)
	return result, nil
}

// Clear empties the session history.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}
