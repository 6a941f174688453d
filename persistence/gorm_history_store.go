package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormHistoryStore is a SQL-backed implementation of HistoryStore using
// GORM. The sqlite dialect (pure-Go driver) covers single-node
// deployments; postgres covers shared ones.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore opens the configured SQL backend and migrates the
// chat_history table.
func NewGormHistoryStore(config SQLStoreConfig) (*GormHistoryStore, error) {
	var dialector gorm.Dialector
	switch config.Dialect {
	case StoreTypeSQLite:
		dsn := config.DSN
		if dsn == "" {
			dsn = "dirigent.db"
		}
		dialector = sqlite.Open(dsn)
	case StoreTypePostgres:
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported history dialect: %s", config.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&ChatEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate chat history: %w", err)
	}

	return &GormHistoryStore{db: db}, nil
}

// Close closes the store
func (s *GormHistoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the store is healthy
func (s *GormHistoryStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Append persists one turn with the next per-session Seq
func (s *GormHistoryStore) Append(ctx context.Context, sessionID, role, content string, metadata map[string]string) (*ChatEntry, error) {
	if sessionID == "" || role == "" {
		return nil, ErrInvalidInput
	}

	entry := &ChatEntry{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		row := tx.Model(&ChatEntry{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), 0)").
			Row()
		if err := row.Scan(&maxSeq); err != nil {
			return err
		}
		entry.Seq = maxSeq + 1
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append chat entry: %w", err)
	}
	return entry, nil
}

// BySession returns all entries for a session in Seq order
func (s *GormHistoryStore) BySession(ctx context.Context, sessionID string) ([]ChatEntry, error) {
	var entries []ChatEntry
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes all entries for a session
func (s *GormHistoryStore) Clear(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&ChatEntry{}).Error
}

// Ensure GormHistoryStore implements HistoryStore
var _ HistoryStore = (*GormHistoryStore)(nil)
