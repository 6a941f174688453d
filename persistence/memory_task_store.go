package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dirigent-ai/dirigent/a2a"
)

// MemoryTaskStore is an in-memory implementation of TaskStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryTaskStore struct {
	tasks  map[string]*a2a.Task
	mu     sync.Mutex
	closed bool
}

// NewMemoryTaskStore creates a new in-memory task store
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string]*a2a.Task),
	}
}

// Close closes the store
func (s *MemoryTaskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryTaskStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// CreateOrGet returns the existing task for the id or creates a new one
func (s *MemoryTaskStore) CreateOrGet(ctx context.Context, taskID string, request *a2a.Message, sessionID string, metadata map[string]string) (*a2a.Task, error) {
	if request == nil {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if taskID != "" {
		if task, ok := s.tasks[taskID]; ok {
			mergeTaskFields(task, sessionID, metadata)
			return cloneTask(task), nil
		}
	}

	task := newTask(taskID, request, sessionID, metadata)
	s.tasks[task.ID] = task
	return cloneTask(task), nil
}

// Get retrieves a task by id
func (s *MemoryTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(task), nil
}

// UpdateStatus transitions the task to the new state
func (s *MemoryTaskStore) UpdateStatus(ctx context.Context, taskID string, state a2a.TaskState, statusMsg, response *a2a.Message) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}

	if err := applyStatus(task, state, statusMsg, response); err != nil {
		return cloneTask(task), err
	}
	return cloneTask(task), nil
}

// SetSessionID overrides the task's session id
func (s *MemoryTaskStore) SetSessionID(ctx context.Context, taskID, sessionID string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}

	task.SessionID = sessionID
	task.UpdatedAt = time.Now().UTC()
	return cloneTask(task), nil
}

// SetMetadata sets one metadata key on the task
func (s *MemoryTaskStore) SetMetadata(ctx context.Context, taskID, key, value string) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}

	if task.Metadata == nil {
		task.Metadata = make(map[string]string)
	}
	task.Metadata[key] = value
	task.UpdatedAt = time.Now().UTC()
	return cloneTask(task), nil
}

// AddArtifact appends a side output to the task
func (s *MemoryTaskStore) AddArtifact(ctx context.Context, taskID string, artifact a2a.Artifact) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}

	task.Artifacts = append(task.Artifacts, artifact)
	task.UpdatedAt = time.Now().UTC()
	return cloneTask(task), nil
}

// Cleanup removes terminal tasks older than the specified duration
func (s *MemoryTaskStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	count := 0
	for id, task := range s.tasks {
		if task.Status.State.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			count++
		}
	}
	return count, nil
}

// newTask builds a fresh pending task seeded with the request message.
// The session id defaults to the task id when absent.
func newTask(taskID string, request *a2a.Message, sessionID string, metadata map[string]string) *a2a.Task {
	if taskID == "" {
		taskID = uuid.New().String()
	}
	if sessionID == "" {
		sessionID = taskID
	}

	now := time.Now().UTC()
	task := &a2a.Task{
		ID:        taskID,
		SessionID: sessionID,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStatePending,
			Timestamp: now,
			Message:   "Task created",
		},
		RequestMessage: request,
		History:        []*a2a.Message{request},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(metadata) > 0 {
		task.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			task.Metadata[k] = v
		}
	}
	return task
}

// cloneTask returns a snapshot safe to hand to callers while the stored
// record keeps mutating under the lock. Messages are shared; they are
// treated as immutable once appended.
func cloneTask(task *a2a.Task) *a2a.Task {
	cp := *task
	cp.History = append([]*a2a.Message(nil), task.History...)
	cp.Artifacts = append([]a2a.Artifact(nil), task.Artifacts...)
	if task.Metadata != nil {
		cp.Metadata = make(map[string]string, len(task.Metadata))
		for k, v := range task.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Ensure MemoryTaskStore implements TaskStore
var _ TaskStore = (*MemoryTaskStore)(nil)
