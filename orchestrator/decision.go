package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the routing verb chosen for one user turn.
type Action string

const (
	ActionDelegate      Action = "delegate"
	ActionRespondDirect Action = "respond_directly"
	ActionClarify       Action = "clarify"
	ActionCannotHandle  Action = "cannot_handle"
	ActionTransition    Action = "transition"
)

// IsValid checks the action is one of the five legal verbs.
func (a Action) IsValid() bool {
	switch a {
	case ActionDelegate, ActionRespondDirect, ActionClarify, ActionCannotHandle, ActionTransition:
		return true
	default:
		return false
	}
}

// Decision is the structured output of one routing decision. It is
// constructed once per user turn, consumed immediately, and never
// persisted beyond the turn except as derived task metadata.
type Decision struct {
	Action Action `json:"action"`

	// Agent is the delegation target. AgentName is the legacy spelling
	// still emitted by older oracle prompts; Target resolves both.
	Agent     string `json:"agent,omitempty"`
	AgentName string `json:"agent_name,omitempty"`

	// Query is the text forwarded to the delegated agent.
	Query string `json:"query,omitempty"`

	// Response is the direct answer or transition acknowledgment.
	Response string `json:"response,omitempty"`

	// Clarification is the question asked back to the user.
	Clarification string `json:"clarification,omitempty"`

	// Reason explains a cannot_handle or transition decision.
	Reason string `json:"reason,omitempty"`

	// NextAction optionally chains a follow-up after a transition.
	NextAction *Decision `json:"next_action,omitempty"`
}

// Target returns the delegation target, accepting both field spellings.
func (d *Decision) Target() string {
	if d.Agent != "" {
		return d.Agent
	}
	return d.AgentName
}

// cannotHandle builds a fail-closed decision with a diagnostic reason.
func cannotHandle(format string, args ...any) *Decision {
	return &Decision{
		Action: ActionCannotHandle,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ParseDecision parses raw oracle output into a Decision. Output that is
// not valid JSON, or that lacks a legal action, yields cannot_handle
// with a diagnostic reason: ambiguous oracle output never silently
// becomes respond_directly. ParseDecision never fails.
func ParseDecision(raw string) *Decision {
	payload := extractJSON(raw)
	if payload == "" {
		return cannotHandle("invalid oracle output: no JSON object found in %q", truncate(raw, 120))
	}

	var d Decision
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return cannotHandle("invalid oracle output: %v", err)
	}

	if !d.Action.IsValid() {
		return cannotHandle("invalid oracle output: unknown action %q", string(d.Action))
	}

	if d.NextAction != nil && !d.NextAction.Action.IsValid() {
		d.NextAction = nil
	}

	return &d
}

// extractJSON locates the outermost JSON object in oracle output, which
// may be wrapped in code fences or prose.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
