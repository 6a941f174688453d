package a2a

import (
	"encoding/json"
	"time"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// IsTerminal returns true if the state is a terminal state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// TaskStatus is the current state of a task plus a short human-readable
// status line and the time of the last transition.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// Artifact is a side output produced while processing a task, e.g. a
// generated file. Artifacts are append-only.
type Artifact struct {
	Name     string            `json:"name"`
	Parts    []Part            `json:"parts"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Task is one tracked unit of agent work.
//
// Invariants enforced by the store and manager: exactly one Task per id;
// ResponseMessage is non-nil iff the state is completed; History never
// shrinks; a terminal task never silently reverts to pending or working.
type Task struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	Status          TaskStatus        `json:"status"`
	RequestMessage  *Message          `json:"request_message,omitempty"`
	ResponseMessage *Message          `json:"response_message,omitempty"`
	History         []*Message        `json:"history"`
	Artifacts       []Artifact        `json:"artifacts,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Metadata keys carried on tasks for cross-cutting signals. The typed
// ResponseMeta side-channel is the in-process form; these keys are the
// persisted form on the task record.
const (
	MetaRespondingAgent = "responding_agent_name"
	MetaSessionIDUsed   = "session_id_used"
	MetaResetSession    = "reset_agent_session"
)

// TaskSendParams is the task-send request body.
type TaskSendParams struct {
	ID        string            `json:"id,omitempty"`
	Message   *Message          `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the params carry a usable message.
func (p *TaskSendParams) Validate() error {
	if p == nil || p.Message == nil {
		return ErrInvalidMessage
	}
	return p.Message.Validate()
}

// CancelStatus is the outcome of a cancel request.
type CancelStatus string

const (
	CancelStatusCancelled CancelStatus = "cancelled"
	CancelStatusNotFound  CancelStatus = "not_found"
)

// CancelResult is the response body for task-cancel.
type CancelResult struct {
	ID      string       `json:"id"`
	Status  CancelStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// legacyResult is the deprecated delegation response shape still emitted
// by older sub-agents: {"result": {"content": [{"type": "text", ...}]}}.
type legacyResult struct {
	Content []Part `json:"content"`
}

// taskEnvelope is the superset of delegation response shapes the client
// must tolerate.
type taskEnvelope struct {
	ResponseMessage *Message      `json:"response_message"`
	Result          *legacyResult `json:"result"`
}

// ExtractReplyText pulls the reply text out of a raw delegation response
// body. It checks the current shape (response_message.parts[0] as a text
// part) first, then the deprecated result.content[0].text shape.
func ExtractReplyText(raw []byte) (string, error) {
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	if env.ResponseMessage != nil {
		if text := env.ResponseMessage.Text(); text != "" {
			return text, nil
		}
	}
	if env.Result != nil {
		for _, p := range env.Result.Content {
			if p.Type == PartTypeText && p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", ErrEmptyReply
}
