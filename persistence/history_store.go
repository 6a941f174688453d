package persistence

import (
	"context"
	"time"
)

// ChatEntry is one persisted conversation turn. Seq is strictly
// increasing per session and defines the replay order used to
// reconstruct conversation context.
type ChatEntry struct {
	ID        uint              `json:"-" gorm:"primaryKey"`
	SessionID string            `json:"session_id" gorm:"index:idx_session_seq,unique,priority:1;size:128"`
	Seq       int64             `json:"seq" gorm:"index:idx_session_seq,unique,priority:2"`
	Role      string            `json:"role" gorm:"size:16"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt time.Time         `json:"created_at"`
}

// TableName sets the GORM table name.
func (ChatEntry) TableName() string {
	return "chat_history"
}

// HistoryStore is the append-only chat log keyed by session. Appends are
// assumed sequential per session; the store only guarantees that Seq is
// strictly increasing within one session.
type HistoryStore interface {
	Store

	// Append persists one turn and assigns it the next Seq for the
	// session.
	Append(ctx context.Context, sessionID, role, content string, metadata map[string]string) (*ChatEntry, error)

	// BySession returns all entries for a session in Seq order.
	BySession(ctx context.Context, sessionID string) ([]ChatEntry, error)

	// Clear removes all entries for a session.
	Clear(ctx context.Context, sessionID string) error
}
