package persistence

import (
	"context"
	"time"

	"github.com/dirigent-ai/dirigent/a2a"
)

// TaskStore defines the interface for task persistence. Mutations are
// linearizable per task id: concurrent status updates on the same id
// never interleave field-by-field.
type TaskStore interface {
	Store

	// CreateOrGet returns the task for the given id, creating it in the
	// pending state if the id is empty or unknown. Repeated calls with
	// the same existing id are idempotent: the stored task is returned
	// with the supplied session id and metadata merged in
	// (non-destructively: new keys added, existing keys overwritten),
	// and no duplicate record or history seeding occurs.
	CreateOrGet(ctx context.Context, taskID string, request *a2a.Message, sessionID string, metadata map[string]string) (*a2a.Task, error)

	// Get retrieves a task by id. Pure lookup with no side effects.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)

	// UpdateStatus transitions the task to the new state, appending the
	// optional status message to history and deriving the short status
	// string from its first text part. When state is completed and a
	// response is given, the response is stamped and appended to history
	// unless it is already the last entry. A terminal task accepts only
	// a transition to canceled; anything else returns ErrTerminalState.
	UpdateStatus(ctx context.Context, taskID string, state a2a.TaskState, statusMsg, response *a2a.Message) (*a2a.Task, error)

	// SetSessionID overrides the task's session correlation id.
	SetSessionID(ctx context.Context, taskID, sessionID string) (*a2a.Task, error)

	// SetMetadata sets one metadata key on the task.
	SetMetadata(ctx context.Context, taskID, key, value string) (*a2a.Task, error)

	// AddArtifact appends a side output to the task.
	AddArtifact(ctx context.Context, taskID string, artifact a2a.Artifact) (*a2a.Task, error)

	// Cleanup removes terminal tasks older than the given duration and
	// returns the number removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// applyStatus performs the shared status-transition bookkeeping on a
// task that the caller has exclusive access to. Returns ErrTerminalState
// when the transition is not legal.
func applyStatus(task *a2a.Task, state a2a.TaskState, statusMsg, response *a2a.Message) error {
	if task.Status.State.IsTerminal() && state != a2a.TaskStateCanceled {
		return ErrTerminalState
	}

	now := time.Now().UTC()
	task.Status.State = state
	task.Status.Timestamp = now
	task.UpdatedAt = now

	if statusMsg != nil {
		task.Status.Message = statusMsg.Text()
		task.History = append(task.History, statusMsg)
	}

	if state == a2a.TaskStateCompleted && response != nil {
		task.ResponseMessage = response
		if !sameTail(task.History, response) {
			task.History = append(task.History, response)
		}
	}
	return nil
}

// sameTail reports whether the last history entry already carries this
// message, so completion never duplicates the tail entry.
func sameTail(history []*a2a.Message, msg *a2a.Message) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	if last == msg {
		return true
	}
	return last.Role == msg.Role && last.Text() == msg.Text()
}

// mergeTaskFields merges newly supplied session id and metadata into an
// existing task record.
func mergeTaskFields(task *a2a.Task, sessionID string, metadata map[string]string) {
	if sessionID != "" {
		task.SessionID = sessionID
	}
	if len(metadata) > 0 {
		if task.Metadata == nil {
			task.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			task.Metadata[k] = v
		}
	}
	task.UpdatedAt = time.Now().UTC()
}
