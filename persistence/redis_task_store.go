package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dirigent-ai/dirigent/a2a"
)

// txRetries bounds optimistic-transaction retries under contention.
const txRetries = 5

// RedisTaskStore is a Redis-based implementation of TaskStore.
// Suitable for distributed deployments. Tasks are stored as JSON blobs;
// per-task linearizability comes from optimistic WATCH transactions, so
// concurrent updates on one id retry instead of interleaving.
type RedisTaskStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTaskStore creates a new Redis-based task store
func NewRedisTaskStore(config StoreConfig) (*RedisTaskStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "dirigent:"
	}

	return &RedisTaskStore{
		client:    client,
		keyPrefix: keyPrefix + "task:",
	}, nil
}

// NewRedisTaskStoreWithClient wraps an existing client, used by tests.
func NewRedisTaskStoreWithClient(client *redis.Client, keyPrefix string) *RedisTaskStore {
	if keyPrefix == "" {
		keyPrefix = "dirigent:"
	}
	return &RedisTaskStore{client: client, keyPrefix: keyPrefix + "task:"}
}

// Close closes the store
func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisTaskStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// taskKey returns the Redis key for a task
func (s *RedisTaskStore) taskKey(taskID string) string {
	return s.keyPrefix + "data:" + taskID
}

// allTasksKey returns the Redis key for the all-tasks index
func (s *RedisTaskStore) allTasksKey() string {
	return s.keyPrefix + "all"
}

// sessionKey returns the Redis key for a session's task index
func (s *RedisTaskStore) sessionKey(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID
}

// CreateOrGet returns the existing task for the id or creates a new one
func (s *RedisTaskStore) CreateOrGet(ctx context.Context, taskID string, request *a2a.Message, sessionID string, metadata map[string]string) (*a2a.Task, error) {
	if request == nil {
		return nil, ErrInvalidInput
	}

	if taskID != "" {
		var merged *a2a.Task
		err := s.mutate(ctx, taskID, func(task *a2a.Task) error {
			mergeTaskFields(task, sessionID, metadata)
			merged = task
			return nil
		})
		if err == nil {
			return merged, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	task := newTask(taskID, request, sessionID, metadata)
	if err := s.save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get retrieves a task by id
func (s *RedisTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	data, err := s.client.Get(ctx, s.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var task a2a.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// UpdateStatus transitions the task to the new state
func (s *RedisTaskStore) UpdateStatus(ctx context.Context, taskID string, state a2a.TaskState, statusMsg, response *a2a.Message) (*a2a.Task, error) {
	var updated *a2a.Task
	err := s.mutate(ctx, taskID, func(task *a2a.Task) error {
		updated = task
		return applyStatus(task, state, statusMsg, response)
	})
	return updated, err
}

// SetSessionID overrides the task's session id
func (s *RedisTaskStore) SetSessionID(ctx context.Context, taskID, sessionID string) (*a2a.Task, error) {
	var updated *a2a.Task
	err := s.mutate(ctx, taskID, func(task *a2a.Task) error {
		task.SessionID = sessionID
		task.UpdatedAt = time.Now().UTC()
		updated = task
		return nil
	})
	return updated, err
}

// SetMetadata sets one metadata key on the task
func (s *RedisTaskStore) SetMetadata(ctx context.Context, taskID, key, value string) (*a2a.Task, error) {
	var updated *a2a.Task
	err := s.mutate(ctx, taskID, func(task *a2a.Task) error {
		if task.Metadata == nil {
			task.Metadata = make(map[string]string)
		}
		task.Metadata[key] = value
		task.UpdatedAt = time.Now().UTC()
		updated = task
		return nil
	})
	return updated, err
}

// AddArtifact appends a side output to the task
func (s *RedisTaskStore) AddArtifact(ctx context.Context, taskID string, artifact a2a.Artifact) (*a2a.Task, error) {
	var updated *a2a.Task
	err := s.mutate(ctx, taskID, func(task *a2a.Task) error {
		task.Artifacts = append(task.Artifacts, artifact)
		task.UpdatedAt = time.Now().UTC()
		updated = task
		return nil
	})
	return updated, err
}

// Cleanup removes terminal tasks older than the specified duration
func (s *RedisTaskStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := s.client.ZRange(ctx, s.allTasksKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	count := 0
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		if !task.Status.State.IsTerminal() || !task.UpdatedAt.Before(cutoff) {
			continue
		}

		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, s.allTasksKey(), id)
		pipe.ZRem(ctx, s.sessionKey(task.SessionID), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// save writes a task blob and its indexes.
func (s *RedisTaskStore) save(ctx context.Context, task *a2a.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	score := float64(task.CreatedAt.UnixNano())
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, 0)
	pipe.ZAdd(ctx, s.allTasksKey(), redis.Z{Score: score, Member: task.ID})
	if task.SessionID != "" {
		pipe.ZAdd(ctx, s.sessionKey(task.SessionID), redis.Z{Score: score, Member: task.ID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// mutate runs a read-modify-write on one task under WATCH so concurrent
// writers retry instead of clobbering each other.
func (s *RedisTaskStore) mutate(ctx context.Context, taskID string, fn func(*a2a.Task) error) error {
	key := s.taskKey(taskID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var task a2a.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}

		if err := fn(&task); err != nil {
			return err
		}

		out, err := json.Marshal(&task)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			if task.SessionID != "" {
				pipe.ZAdd(ctx, s.sessionKey(task.SessionID), redis.Z{
					Score:  float64(task.CreatedAt.UnixNano()),
					Member: task.ID,
				})
			}
			return nil
		})
		return err
	}

	for i := 0; i < txRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("task %s: transaction contention, retries exhausted", taskID)
}

// Ensure RedisTaskStore implements TaskStore
var _ TaskStore = (*RedisTaskStore)(nil)
