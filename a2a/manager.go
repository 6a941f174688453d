package a2a

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskUpdater is the slice of task persistence the manager needs. The
// concrete stores live in the persistence package; the interface is
// declared here so the manager depends only on behavior.
type TaskUpdater interface {
	CreateOrGet(ctx context.Context, taskID string, request *Message, sessionID string, metadata map[string]string) (*Task, error)
	Get(ctx context.Context, taskID string) (*Task, error)
	UpdateStatus(ctx context.Context, taskID string, state TaskState, statusMsg, response *Message) (*Task, error)
	SetSessionID(ctx context.Context, taskID, sessionID string) (*Task, error)
	SetMetadata(ctx context.Context, taskID, key, value string) (*Task, error)
}

// TaskRecorder receives task lifecycle observations. A nil recorder is
// allowed.
type TaskRecorder interface {
	RecordTask(agentID, state string, duration time.Duration)
	RecordCancel(outcome string)
}

// ManagerConfig tunes task lifecycle behavior.
type ManagerConfig struct {
	// AllowTerminalCancel keeps the legacy behavior where cancelling a
	// COMPLETED or FAILED task succeeds and flips it to canceled. When
	// false, cancel reports not_found for those tasks.
	AllowTerminalCancel bool `yaml:"allow_terminal_cancel"`
}

// DefaultManagerConfig returns the compatible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{AllowTerminalCancel: true}
}

// TaskManager drives the task lifecycle around agent processing. Its
// handle methods never surface agent failures as errors: a processing
// failure becomes a FAILED task, so the transport layer always has a
// task to serialize.
type TaskManager struct {
	store    TaskUpdater
	config   ManagerConfig
	logger   *zap.Logger
	recorder TaskRecorder
	tracer   trace.Tracer
}

type noopRecorder struct{}

func (noopRecorder) RecordTask(string, string, time.Duration) {}
func (noopRecorder) RecordCancel(string)                      {}

// NewTaskManager creates a TaskManager backed by the given store.
func NewTaskManager(store TaskUpdater, config ManagerConfig, logger *zap.Logger, recorder TaskRecorder) *TaskManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &TaskManager{
		store:    store,
		config:   config,
		logger:   logger.With(zap.String("component", "task_manager")),
		recorder: recorder,
		tracer:   otel.Tracer("dirigent/a2a"),
	}
}

// HandleTaskSend runs one task through the agent and returns the
// resulting task. It never returns an error: processing failures yield
// a FAILED task, and even a broken store yields a synthetic one.
func (m *TaskManager) HandleTaskSend(ctx context.Context, ag Agent, params *TaskSendParams) *Task {
	agentID := ag.Card().ID
	ctx, span := m.tracer.Start(ctx, "task.send",
		trace.WithAttributes(
			attribute.String("task.id", params.ID),
			attribute.String("agent.id", agentID),
		))
	defer span.End()
	start := time.Now()

	task, err := m.store.CreateOrGet(ctx, params.ID, params.Message, params.SessionID, params.Metadata)
	if err != nil {
		m.logger.Error("task creation failed",
			zap.String("task_id", params.ID), zap.Error(err))
		return m.failedTask(params.ID, sessionOf(nil, params), params, agentID, start, err)
	}

	// The store assigns the id when the request omits one; everything
	// downstream keys off the stored id, not the request's.
	taskID := task.ID
	session := sessionOf(task, params)
	span.SetAttributes(attribute.String("task.stored_id", taskID))

	if task.Status.State.IsTerminal() {
		m.logger.Info("task already terminal, returning stored task",
			zap.String("task_id", taskID),
			zap.String("state", string(task.Status.State)))
		return task
	}

	working := NewTextMessage(RoleSystem, "Processing started")
	if _, err := m.store.UpdateStatus(ctx, taskID, TaskStateWorking, working, nil); err != nil {
		m.logger.Warn("failed to mark task working",
			zap.String("task_id", taskID), zap.Error(err))
	}

	reply, procErr := ag.ProcessMessage(ctx, params.Message, taskID, session)
	if procErr != nil {
		m.logger.Warn("agent processing failed",
			zap.String("task_id", taskID),
			zap.String("agent_id", agentID),
			zap.Error(procErr))
		m.recorder.RecordTask(agentID, string(TaskStateFailed), time.Since(start))
		return m.failedTask(taskID, session, params, agentID, start, procErr)
	}

	final := m.complete(ctx, taskID, reply)
	m.recorder.RecordTask(agentID, string(final.Status.State), time.Since(start))
	m.logger.Info("task completed",
		zap.String("task_id", final.ID),
		zap.String("agent_id", agentID),
		zap.Duration("elapsed", time.Since(start)))
	return final
}

// complete propagates the reply's side-channel overrides into the
// stored task and transitions it to completed. Store failures along the
// way degrade to the best task object available.
func (m *TaskManager) complete(ctx context.Context, taskID string, reply *Message) *Task {
	if meta := reply.Meta; meta != nil {
		if meta.SessionID != "" {
			if _, err := m.store.SetSessionID(ctx, taskID, meta.SessionID); err != nil {
				m.logger.Warn("failed to stamp session id",
					zap.String("task_id", taskID), zap.Error(err))
			}
		}
		if meta.RespondingAgent != "" {
			if _, err := m.store.SetMetadata(ctx, taskID, MetaRespondingAgent, meta.RespondingAgent); err != nil {
				m.logger.Warn("failed to stamp responding agent",
					zap.String("task_id", taskID), zap.Error(err))
			}
		}
		if meta.ResetSession {
			if _, err := m.store.SetMetadata(ctx, taskID, MetaResetSession, "true"); err != nil {
				m.logger.Warn("failed to stamp session reset",
					zap.String("task_id", taskID), zap.Error(err))
			}
		}
	}

	task, err := m.store.UpdateStatus(ctx, taskID, TaskStateCompleted, nil, reply)
	if err != nil {
		m.logger.Error("failed to complete task",
			zap.String("task_id", taskID), zap.Error(err))
		if stored, getErr := m.store.Get(ctx, taskID); getErr == nil {
			return stored
		}
		now := time.Now().UTC()
		return &Task{
			ID:              taskID,
			Status:          TaskStatus{State: TaskStateCompleted, Timestamp: now, Message: reply.Text()},
			ResponseMessage: reply,
			History:         []*Message{reply},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	return task
}

// failedTask builds the synthetic FAILED task returned when processing
// blows up. The stored record is updated on a best-effort basis, but
// the synthetic task is returned regardless so callers always get a
// task, never an error.
func (m *TaskManager) failedTask(taskID, sessionID string, params *TaskSendParams, agentID string, start time.Time, cause error) *Task {
	text := fmt.Sprintf("Falling back to rule-based processing due to LLM error: %v", cause)
	failMsg := NewTextMessage(RoleAgent, text)

	if _, err := m.store.UpdateStatus(context.Background(), taskID, TaskStateFailed, failMsg, nil); err != nil {
		m.logger.Warn("failed to persist task failure",
			zap.String("task_id", taskID), zap.Error(err))
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        taskID,
		SessionID: sessionID,
		Status: TaskStatus{
			State:     TaskStateFailed,
			Timestamp: now,
			Message:   text,
		},
		RequestMessage: params.Message,
		History:        []*Message{params.Message, failMsg},
		Metadata:       map[string]string{"error": cause.Error(), MetaRespondingAgent: agentID},
		CreatedAt:      start.UTC(),
		UpdatedAt:      now,
	}
	return task
}

// HandleTaskGet is a pure lookup. Unknown ids return ErrTaskNotFound.
func (m *TaskManager) HandleTaskGet(ctx context.Context, taskID string) (*Task, error) {
	ctx, span := m.tracer.Start(ctx, "task.get",
		trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return task, nil
}

// HandleTaskCancel cancels a task. Unknown ids report not_found,
// repeated cancels report success idempotently, and terminal tasks flip
// to canceled when AllowTerminalCancel is set. Cancellation never
// reverts a task to a non-terminal state.
func (m *TaskManager) HandleTaskCancel(ctx context.Context, taskID string) *CancelResult {
	ctx, span := m.tracer.Start(ctx, "task.cancel",
		trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		m.recorder.RecordCancel("not_found")
		return &CancelResult{
			ID:      taskID,
			Status:  CancelStatusNotFound,
			Message: fmt.Sprintf("Task %s not found", taskID),
		}
	}

	if task.Status.State == TaskStateCanceled {
		m.recorder.RecordCancel("already_cancelled")
		return &CancelResult{
			ID:      taskID,
			Status:  CancelStatusCancelled,
			Message: fmt.Sprintf("Task %s already cancelled", taskID),
		}
	}

	if task.Status.State.IsTerminal() && !m.config.AllowTerminalCancel {
		m.recorder.RecordCancel("terminal_rejected")
		return &CancelResult{
			ID:      taskID,
			Status:  CancelStatusNotFound,
			Message: fmt.Sprintf("Task %s already %s, terminal cancellation disabled", taskID, task.Status.State),
		}
	}

	cancelMsg := NewTextMessage(RoleSystem, "Task cancelled by user request")
	if _, err := m.store.UpdateStatus(ctx, taskID, TaskStateCanceled, cancelMsg, nil); err != nil {
		// The stores use their own not-found sentinel, so existence is
		// re-checked instead of matching the error value. A task deleted
		// between the lookup and the update reports not_found.
		if _, getErr := m.store.Get(ctx, taskID); getErr != nil {
			m.recorder.RecordCancel("not_found")
			return &CancelResult{
				ID:      taskID,
				Status:  CancelStatusNotFound,
				Message: fmt.Sprintf("Task %s not found", taskID),
			}
		}
		m.logger.Warn("failed to persist cancellation",
			zap.String("task_id", taskID), zap.Error(err))
	}

	m.recorder.RecordCancel("cancelled")
	return &CancelResult{
		ID:      taskID,
		Status:  CancelStatusCancelled,
		Message: fmt.Sprintf("Task %s cancelled", taskID),
	}
}

// sessionOf picks the effective session id: task record first, then the
// request, then the task id itself.
func sessionOf(task *Task, params *TaskSendParams) string {
	if task != nil && task.SessionID != "" {
		return task.SessionID
	}
	if params.SessionID != "" {
		return params.SessionID
	}
	return params.ID
}
