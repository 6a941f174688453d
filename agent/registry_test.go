package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigent-ai/dirigent/a2a"
)

type fakeAgent struct {
	card *a2a.AgentCard
}

func newFakeAgent(id string) *fakeAgent {
	return &fakeAgent{card: a2a.NewAgentCard(id, "Fake "+id, "Test agent", "1.0.0")}
}

func (a *fakeAgent) Card() *a2a.AgentCard { return a.card }

func (a *fakeAgent) ProcessMessage(ctx context.Context, msg *a2a.Message, taskID, sessionID string) (*a2a.Message, error) {
	return a2a.NewTextMessage(a2a.RoleAgent, "ok"), nil
}

func TestRegistryRegisterResolve(t *testing.T) {
	reg := NewRegistry("http://localhost:8080", nil)

	require.NoError(t, reg.Register(newFakeAgent("billing")))
	require.NoError(t, reg.Register(newFakeAgent("chat_support")))
	assert.Equal(t, 2, reg.Count())

	ag, ok := reg.Resolve("billing")
	require.True(t, ok)
	assert.Equal(t, "billing", ag.Card().ID)

	_, ok = reg.Resolve("nope")
	assert.False(t, ok)
}

func TestRegistryRegisterValidation(t *testing.T) {
	reg := NewRegistry("http://localhost:8080", nil)

	assert.Error(t, reg.Register(nil))

	bad := &fakeAgent{card: &a2a.AgentCard{ID: "x"}}
	assert.ErrorIs(t, reg.Register(bad), a2a.ErrMissingName)

	noID := &fakeAgent{card: &a2a.AgentCard{Name: "n", Description: "d", Version: "1"}}
	assert.Error(t, reg.Register(noID))
}

func TestRegistryReplaceAndUnregister(t *testing.T) {
	reg := NewRegistry("http://localhost:8080", nil)

	first := newFakeAgent("billing")
	second := newFakeAgent("billing")
	second.card.Description = "replacement"

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))
	assert.Equal(t, 1, reg.Count())

	ag, ok := reg.Resolve("billing")
	require.True(t, ok)
	assert.Equal(t, "replacement", ag.Card().Description)

	reg.Unregister("billing")
	assert.Equal(t, 0, reg.Count())
	_, ok = reg.Resolve("billing")
	assert.False(t, ok)
}

func TestRegistryCardsSorted(t *testing.T) {
	reg := NewRegistry("http://localhost:8080", nil)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(newFakeAgent(id)))
	}

	cards := reg.Cards()
	require.Len(t, cards, 3)
	assert.Equal(t, "alpha", cards[0].ID)
	assert.Equal(t, "mid", cards[1].ID)
	assert.Equal(t, "zeta", cards[2].ID)
}

func TestRegistryTaskEndpoint(t *testing.T) {
	reg := NewRegistry("http://localhost:8080", nil)
	require.NoError(t, reg.Register(newFakeAgent("billing")))

	url, ok := reg.TaskEndpoint("billing")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080/a2a/agents/billing/tasks/send", url)

	_, ok = reg.TaskEndpoint("nope")
	assert.False(t, ok, "unregistered agents have no endpoint")
}
