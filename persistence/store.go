// Package persistence provides the storage layer for tasks and chat
// history.
//
// The task store is the sole shared mutable resource in the service:
// every mutation is a linearizable read-modify-write, guarded by a mutex
// in the memory backend and by optimistic transactions in the redis
// backend.
//
// Supported backends:
// - Memory: for development and testing (default)
// - Redis: for distributed deployments (tasks)
// - SQL via GORM: sqlite or postgres (chat history)
package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTerminalState = errors.New("task is in a terminal state")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
)

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string `json:"addr" yaml:"addr"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// SQLStoreConfig contains configuration for the GORM-backed history store
type SQLStoreConfig struct {
	// Dialect selects the driver: "sqlite" or "postgres"
	Dialect StoreType `json:"dialect" yaml:"dialect"`

	// DSN is the data source name. For sqlite this is a file path or
	// ":memory:"; for postgres a standard connection string.
	DSN string `json:"dsn" yaml:"dsn"`
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type for tasks
	Type StoreType `json:"type" yaml:"type"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// History configuration for the chat history store
	History SQLStoreConfig `json:"history" yaml:"history"`

	// TaskRetention is how long terminal tasks are kept before Cleanup
	// removes them (default: 24h)
	TaskRetention time.Duration `json:"task_retention" yaml:"task_retention"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "dirigent:",
		},
		History: SQLStoreConfig{
			Dialect: StoreTypeMemory,
		},
		TaskRetention: 24 * time.Hour,
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}
