package orchestrator

import (
	"fmt"
	"strings"

	"github.com/dirigent-ai/dirigent/a2a"
	"github.com/dirigent-ai/dirigent/llm"
	"github.com/dirigent-ai/dirigent/persistence"
)

// decisionPreamble is the fixed policy given to the oracle. It names the
// five legal actions and the continuity rule; the oracle must answer
// with a single JSON object.
const decisionPreamble = `You are the orchestrator of a multi-agent system. For each user message,
choose exactly one action and answer with a single JSON object.

Actions:
- {"action": "delegate", "agent": "<agent_id>", "query": "<text to forward>"}
  Route the message to the named specialized agent.
- {"action": "respond_directly", "response": "<answer>"}
  Answer yourself when no specialized agent fits and the answer is simple.
- {"action": "clarify", "clarification": "<question>"}
  Ask the user a question when the request is ambiguous.
- {"action": "cannot_handle", "reason": "<why>"}
  Decline when neither you nor any agent can help.
- {"action": "transition", "response": "<acknowledgment>", "next_action": {...}}
  End the user's session with their current agent. Use ONLY when the user
  explicitly says they are done with that agent. The optional next_action
  may immediately delegate to a new agent or respond_directly.

Continuity rule: when the user is in an ongoing conversation with a
specialized agent, keep delegating to that same agent even if the topic
appears to drift. Only an explicit request to stop ends the session.`

// buildDecisionMessages assembles the oracle conversation: policy
// preamble and agent catalog, prior turns as alternating user/assistant
// entries, a synthesized continuity note when a sticky binding exists,
// and the current query last.
func buildDecisionMessages(query string, entries []persistence.ChatEntry, cards []*a2a.AgentCard) []llm.ChatMessage {
	var sb strings.Builder
	sb.WriteString(decisionPreamble)
	sb.WriteString("\n\nAvailable agents:\n")
	for _, card := range cards {
		fmt.Fprintf(&sb, "- %s: %s\n", card.ID, card.Description)
	}

	messages := []llm.ChatMessage{{Role: "system", Content: sb.String()}}

	for _, e := range entries {
		switch e.Role {
		case "user", "assistant":
			messages = append(messages, llm.ChatMessage{Role: e.Role, Content: e.Content})
		}
	}

	if sticky := stickyAgent(entries); sticky != "" {
		messages = append(messages, llm.ChatMessage{
			Role: "system",
			Content: fmt.Sprintf(
				"The user is currently in conversation with the %q agent; keep routing to %q unless they explicitly end it.",
				sticky, sticky,
			),
		})
	}

	return append(messages, llm.ChatMessage{Role: "user", Content: query})
}
