package persistence

import "fmt"

// NewTaskStore creates a task store for the configured backend.
func NewTaskStore(config StoreConfig) (TaskStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryTaskStore(), nil
	case StoreTypeRedis:
		return NewRedisTaskStore(config)
	default:
		return nil, fmt.Errorf("unsupported task store type: %s", config.Type)
	}
}

// NewHistoryStore creates a history store for the configured backend.
func NewHistoryStore(config SQLStoreConfig) (HistoryStore, error) {
	switch config.Dialect {
	case StoreTypeMemory, "":
		return NewMemoryHistoryStore(), nil
	case StoreTypeSQLite, StoreTypePostgres:
		return NewGormHistoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported history store dialect: %s", config.Dialect)
	}
}
