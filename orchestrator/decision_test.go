package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	t.Run("delegate", func(t *testing.T) {
		d := ParseDecision(`{"action":"delegate","agent":"billing","query":"refund order 42"}`)
		assert.Equal(t, ActionDelegate, d.Action)
		assert.Equal(t, "billing", d.Target())
		assert.Equal(t, "refund order 42", d.Query)
	})

	t.Run("legacy agent_name spelling", func(t *testing.T) {
		d := ParseDecision(`{"action":"delegate","agent_name":"billing"}`)
		assert.Equal(t, "billing", d.Target())
	})

	t.Run("agent wins over agent_name", func(t *testing.T) {
		d := ParseDecision(`{"action":"delegate","agent":"billing","agent_name":"legacy"}`)
		assert.Equal(t, "billing", d.Target())
	})

	t.Run("respond_directly", func(t *testing.T) {
		d := ParseDecision(`{"action":"respond_directly","response":"hello there"}`)
		assert.Equal(t, ActionRespondDirect, d.Action)
		assert.Equal(t, "hello there", d.Response)
	})

	t.Run("code fences tolerated", func(t *testing.T) {
		raw := "Here is my decision:\n```json\n{\"action\":\"clarify\",\"clarification\":\"Which order?\"}\n```"
		d := ParseDecision(raw)
		assert.Equal(t, ActionClarify, d.Action)
		assert.Equal(t, "Which order?", d.Clarification)
	})

	t.Run("transition with chained next_action", func(t *testing.T) {
		raw := `{"action":"transition","response":"Session ended.","next_action":{"action":"delegate","agent":"tech_support","query":"my screen flickers"}}`
		d := ParseDecision(raw)
		require.Equal(t, ActionTransition, d.Action)
		require.NotNil(t, d.NextAction)
		assert.Equal(t, ActionDelegate, d.NextAction.Action)
		assert.Equal(t, "tech_support", d.NextAction.Target())
	})

	t.Run("invalid next_action is dropped", func(t *testing.T) {
		raw := `{"action":"transition","response":"ok","next_action":{"action":"explode"}}`
		d := ParseDecision(raw)
		assert.Equal(t, ActionTransition, d.Action)
		assert.Nil(t, d.NextAction)
	})

	t.Run("non-JSON fails closed", func(t *testing.T) {
		d := ParseDecision("I think the user wants billing help.")
		assert.Equal(t, ActionCannotHandle, d.Action)
		assert.Contains(t, d.Reason, "invalid oracle output")
	})

	t.Run("malformed JSON fails closed", func(t *testing.T) {
		d := ParseDecision(`{"action": "delegate", "agent": `)
		assert.Equal(t, ActionCannotHandle, d.Action)
		assert.Contains(t, d.Reason, "invalid oracle output")
	})

	t.Run("unknown action fails closed", func(t *testing.T) {
		d := ParseDecision(`{"action":"escalate"}`)
		assert.Equal(t, ActionCannotHandle, d.Action)
		assert.Contains(t, d.Reason, `unknown action "escalate"`)
	})

	t.Run("missing action fails closed", func(t *testing.T) {
		d := ParseDecision(`{"response":"hi"}`)
		assert.Equal(t, ActionCannotHandle, d.Action)
	})
}

func TestActionIsValid(t *testing.T) {
	for _, a := range []Action{ActionDelegate, ActionRespondDirect, ActionClarify, ActionCannotHandle, ActionTransition} {
		assert.True(t, a.IsValid(), "action %s", a)
	}
	assert.False(t, Action("").IsValid())
	assert.False(t, Action("escalate").IsValid())
}
