package orchestrator

import (
	"strings"

	"github.com/dirigent-ai/dirigent/persistence"
)

// Chat entry metadata keys written by the orchestrator and read back by
// the sticky-routing check on the next turn.
const (
	metaRespondingAgentID   = "responding_agent_id"
	metaRespondingAgentName = "responding_agent_name"
	metaResetSession        = "reset_agent_session"
)

// OrchestratorName is the display name stamped on directly answered
// turns. A sticky binding only exists when the last responder is someone
// else.
const OrchestratorName = "Orchestrator"

// defaultExitPhrases are the only user messages that release a sticky
// agent. Topic drift or unrelated-seeming content never does: continuity
// is the default under ambiguity.
var defaultExitPhrases = []string{
	"i'm done with you",
	"im done with you",
	"let's talk about something else",
	"lets talk about something else",
	"i want to talk to the orchestrator",
	"exit this agent",
	"thanks, i'm done with this topic",
	"thanks im done with this topic",
}

// normalizePhrase lowercases, trims surrounding whitespace and
// punctuation, and collapses internal whitespace runs.
func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?,;: ")
	return strings.Join(strings.Fields(s), " ")
}

// isExitPhrase reports whether the user message matches one of the exit
// phrases after normalization.
func isExitPhrase(message string, phrases []string) bool {
	norm := normalizePhrase(message)
	if norm == "" {
		return false
	}
	for _, p := range phrases {
		if norm == normalizePhrase(p) {
			return true
		}
	}
	return false
}

// stickyAgent returns the agent id bound to the session, derived from
// the last assistant entry's metadata. Returns "" when the orchestrator
// answered last, the binding was reset, or no assistant turn exists yet.
func stickyAgent(entries []persistence.ChatEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Role != "assistant" {
			continue
		}
		if e.Metadata == nil {
			return ""
		}
		// A turn can both release one binding and open another (a
		// transition with a chained delegate), so the id wins over the
		// reset flag.
		if id := e.Metadata[metaRespondingAgentID]; id != "" {
			return id
		}
		if e.Metadata[metaResetSession] == "true" {
			return ""
		}
		// Older entries may carry only the name key; when it holds a raw
		// agent id rather than a display name, honor it.
		if name := e.Metadata[metaRespondingAgentName]; name != "" && name != OrchestratorName {
			if !strings.Contains(name, " ") {
				return name
			}
		}
		return ""
	}
	return ""
}
