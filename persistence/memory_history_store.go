package persistence

import (
	"context"
	"sync"
	"time"
)

// MemoryHistoryStore is an in-memory implementation of HistoryStore.
type MemoryHistoryStore struct {
	sessions map[string][]ChatEntry
	mu       sync.Mutex
	closed   bool
}

// NewMemoryHistoryStore creates a new in-memory history store
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		sessions: make(map[string][]ChatEntry),
	}
}

// Close closes the store
func (s *MemoryHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryHistoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Append persists one turn with the next per-session Seq
func (s *MemoryHistoryStore) Append(ctx context.Context, sessionID, role, content string, metadata map[string]string) (*ChatEntry, error) {
	if sessionID == "" || role == "" {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entries := s.sessions[sessionID]
	var seq int64 = 1
	if len(entries) > 0 {
		seq = entries[len(entries)-1].Seq + 1
	}

	entry := ChatEntry{
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if len(metadata) > 0 {
		entry.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			entry.Metadata[k] = v
		}
	}

	s.sessions[sessionID] = append(entries, entry)
	return &entry, nil
}

// BySession returns all entries for a session in Seq order
func (s *MemoryHistoryStore) BySession(ctx context.Context, sessionID string) ([]ChatEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return append([]ChatEntry(nil), s.sessions[sessionID]...), nil
}

// Clear removes all entries for a session
func (s *MemoryHistoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.sessions, sessionID)
	return nil
}

// Ensure MemoryHistoryStore implements HistoryStore
var _ HistoryStore = (*MemoryHistoryStore)(nil)
