package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// historyStoreUnderTest exercises the HistoryStore contract against any
// implementation.
func historyStoreUnderTest(t *testing.T, store HistoryStore) {
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("AppendAssignsSequence", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			entry, err := store.Append(ctx, "hist-seq", "user", fmt.Sprintf("turn %d", i), nil)
			if err != nil {
				t.Fatalf("Append %d failed: %v", i, err)
			}
			if entry.Seq != int64(i) {
				t.Errorf("Seq = %d, want %d", entry.Seq, i)
			}
		}

		// A second session starts its own sequence.
		entry, err := store.Append(ctx, "hist-seq-other", "user", "hello", nil)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if entry.Seq != 1 {
			t.Errorf("Seq = %d, want 1 for a fresh session", entry.Seq)
		}
	})

	t.Run("BySessionOrdered", func(t *testing.T) {
		contents := []string{"first", "second", "third"}
		roles := []string{"user", "assistant", "user"}
		for i, c := range contents {
			if _, err := store.Append(ctx, "hist-order", roles[i], c, nil); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		entries, err := store.BySession(ctx, "hist-order")
		if err != nil {
			t.Fatalf("BySession failed: %v", err)
		}
		if len(entries) != len(contents) {
			t.Fatalf("got %d entries, want %d", len(entries), len(contents))
		}
		for i, e := range entries {
			if e.Seq != int64(i+1) {
				t.Errorf("entry %d: Seq = %d, want %d", i, e.Seq, i+1)
			}
			if e.Content != contents[i] {
				t.Errorf("entry %d: Content = %q, want %q", i, e.Content, contents[i])
			}
			if e.Role != roles[i] {
				t.Errorf("entry %d: Role = %q, want %q", i, e.Role, roles[i])
			}
		}
	})

	t.Run("MetadataRoundtrip", func(t *testing.T) {
		meta := map[string]string{
			"responding_agent_name": "Chat Support Agent",
			"responding_agent_id":   "chat_support",
		}
		if _, err := store.Append(ctx, "hist-meta", "assistant", "reply", meta); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		entries, err := store.BySession(ctx, "hist-meta")
		if err != nil {
			t.Fatalf("BySession failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		if entries[0].Metadata["responding_agent_name"] != "Chat Support Agent" {
			t.Errorf("metadata agent name = %q", entries[0].Metadata["responding_agent_name"])
		}
		if entries[0].Metadata["responding_agent_id"] != "chat_support" {
			t.Errorf("metadata agent id = %q", entries[0].Metadata["responding_agent_id"])
		}
	})

	t.Run("BySessionUnknownEmpty", func(t *testing.T) {
		entries, err := store.BySession(ctx, "hist-nope")
		if err != nil {
			t.Fatalf("BySession failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("got %d entries for unknown session, want 0", len(entries))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if _, err := store.Append(ctx, "hist-clear", "user", "wipe me", nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := store.Clear(ctx, "hist-clear"); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		entries, err := store.BySession(ctx, "hist-clear")
		if err != nil {
			t.Fatalf("BySession failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("got %d entries after Clear, want 0", len(entries))
		}

		// Sequence restarts after a clear.
		entry, err := store.Append(ctx, "hist-clear", "user", "fresh", nil)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if entry.Seq != 1 {
			t.Errorf("Seq = %d after Clear, want 1", entry.Seq)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if _, err := store.Append(ctx, "", "user", "no session", nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("empty session: err = %v, want ErrInvalidInput", err)
		}
		if _, err := store.Append(ctx, "hist-bad", "", "no role", nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("empty role: err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestMemoryHistoryStore(t *testing.T) {
	store := NewMemoryHistoryStore()
	defer store.Close()
	historyStoreUnderTest(t, store)
}

func TestGormHistoryStoreSQLite(t *testing.T) {
	store, err := NewGormHistoryStore(SQLStoreConfig{
		Dialect: StoreTypeSQLite,
		DSN:     ":memory:",
	})
	if err != nil {
		t.Fatalf("NewGormHistoryStore failed: %v", err)
	}
	defer store.Close()
	historyStoreUnderTest(t, store)
}

func TestGormHistoryStoreUnknownDialect(t *testing.T) {
	if _, err := NewGormHistoryStore(SQLStoreConfig{Dialect: "oracle"}); err == nil {
		t.Error("expected error for unsupported dialect")
	}
}
