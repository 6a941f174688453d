package persistence

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/dirigent-ai/dirigent/a2a"
)

// Task ids never duplicate, history never shrinks, and terminal states
// only ever move to canceled, no matter the order of transitions
// applied.
func TestTaskStoreTransitionProperties(t *testing.T) {
	states := []a2a.TaskState{
		a2a.TaskStatePending,
		a2a.TaskStateWorking,
		a2a.TaskStateCompleted,
		a2a.TaskStateFailed,
		a2a.TaskStateCanceled,
	}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		store := NewMemoryTaskStore()
		defer store.Close()

		task, err := store.CreateOrGet(ctx, "prop-task", a2a.NewTextMessage(a2a.RoleUser, "start"), "", nil)
		if err != nil {
			rt.Fatalf("CreateOrGet failed: %v", err)
		}

		prevHistory := len(task.History)
		terminal := false
		var frozenResponse string

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			next := states[rapid.IntRange(0, len(states)-1).Draw(rt, "state")]

			var resp *a2a.Message
			if next == a2a.TaskStateCompleted {
				resp = a2a.NewTextMessage(a2a.RoleAgent, "answer")
			}

			updated, err := store.UpdateStatus(ctx, task.ID, next, nil, resp)

			if terminal && next != a2a.TaskStateCanceled {
				if !errors.Is(err, ErrTerminalState) {
					rt.Fatalf("terminal task accepted %s: %v", next, err)
				}
			} else if err != nil {
				rt.Fatalf("transition to %s failed: %v", next, err)
			}

			if len(updated.History) < prevHistory {
				rt.Fatalf("history shrank: %d -> %d", prevHistory, len(updated.History))
			}
			prevHistory = len(updated.History)

			if frozenResponse != "" {
				if updated.ResponseMessage == nil || updated.ResponseMessage.Text() != frozenResponse {
					rt.Fatalf("completed response overwritten after %s", next)
				}
			}

			if err == nil {
				if updated.Status.State != next {
					rt.Fatalf("state = %s after transition to %s", updated.Status.State, next)
				}
				if next.IsTerminal() {
					terminal = true
				}
				if next == a2a.TaskStateCompleted && frozenResponse == "" {
					frozenResponse = updated.ResponseMessage.Text()
				}
			}
		}

		// The id stays unique: re-creating returns the same record.
		again, err := store.CreateOrGet(ctx, "prop-task", a2a.NewTextMessage(a2a.RoleUser, "again"), "", nil)
		if err != nil {
			rt.Fatalf("re-create failed: %v", err)
		}
		if again.ID != task.ID {
			rt.Fatalf("duplicate task id: %s vs %s", again.ID, task.ID)
		}
		if again.History[0].Text() != "start" {
			rt.Fatalf("request message replaced on re-create")
		}
	})
}
