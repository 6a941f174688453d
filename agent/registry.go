// Package agent provides the sub-agent implementations and the registry
// the server and orchestrator route over.
package agent

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dirigent-ai/dirigent/a2a"
)

// Registry maps agent identifiers to agents. Population happens at
// startup through explicit Register calls; nothing is discovered by
// convention.
type Registry struct {
	baseURL string
	logger  *zap.Logger

	mu     sync.RWMutex
	agents map[string]a2a.Agent
}

// NewRegistry creates an empty registry. baseURL is the address this
// process serves agents on; task endpoints are derived from it.
func NewRegistry(baseURL string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		baseURL: baseURL,
		logger:  logger.With(zap.String("component", "registry")),
		agents:  make(map[string]a2a.Agent),
	}
}

// Register adds an agent under its card id. Re-registering an id
// replaces the previous agent.
func (r *Registry) Register(ag a2a.Agent) error {
	if ag == nil {
		return fmt.Errorf("%w: nil agent", a2a.ErrInvalidMessage)
	}
	card := ag.Card()
	if card == nil || card.ID == "" {
		return fmt.Errorf("%w: agent has no card id", a2a.ErrInvalidMessage)
	}
	if err := card.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.agents[card.ID] = ag
	r.mu.Unlock()

	r.logger.Info("agent registered",
		zap.String("agent_id", card.ID),
		zap.String("agent_name", card.Name),
	)
	return nil
}

// Unregister removes an agent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.agents, id)
	r.mu.Unlock()

	r.logger.Info("agent unregistered", zap.String("agent_id", id))
}

// Resolve returns the agent registered under id.
func (r *Registry) Resolve(id string) (a2a.Agent, bool) {
	r.mu.RLock()
	ag, ok := r.agents[id]
	r.mu.RUnlock()
	return ag, ok
}

// Cards returns the cards of all registered agents in id order.
func (r *Registry) Cards() []*a2a.AgentCard {
	r.mu.RLock()
	cards := make([]*a2a.AgentCard, 0, len(r.agents))
	for _, ag := range r.agents {
		cards = append(cards, ag.Card())
	}
	r.mu.RUnlock()

	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards
}

// TaskEndpoint returns the task-send URL for a registered agent id.
func (r *Registry) TaskEndpoint(id string) (string, bool) {
	r.mu.RLock()
	_, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return r.baseURL + "/a2a/agents/" + id + "/tasks/send", true
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

var _ a2a.AgentResolver = (*Registry)(nil)
