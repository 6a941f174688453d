package a2a

// AgentEndpoints defines the HTTP paths for agent interaction, relative
// to the agent's base URL.
type AgentEndpoints struct {
	Task   string `json:"task"`
	Status string `json:"status,omitempty"`
	Cancel string `json:"cancel,omitempty"`
	Card   string `json:"card,omitempty"`
}

// Capability describes one ability an agent advertises.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentCard is an agent's discovery document: identity, capabilities, and
// where to reach it. Static metadata with no side effects.
type AgentCard struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version"`
	URL          string            `json:"url,omitempty"`
	Capabilities []Capability      `json:"capabilities"`
	Endpoints    AgentEndpoints    `json:"endpoints"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewAgentCard creates an AgentCard with the required fields and default
// endpoint paths.
func NewAgentCard(id, name, description, version string) *AgentCard {
	return &AgentCard{
		ID:           id,
		Name:         name,
		Description:  description,
		Version:      version,
		Capabilities: make([]Capability, 0),
		Endpoints: AgentEndpoints{
			Task:   "/a2a/tasks/send",
			Status: "/a2a/tasks/{id}",
			Cancel: "/a2a/tasks/{id}/cancel",
			Card:   "/.well-known/agent.json",
		},
	}
}

// AddCapability appends a capability to the card.
func (c *AgentCard) AddCapability(name, description string) *AgentCard {
	c.Capabilities = append(c.Capabilities, Capability{Name: name, Description: description})
	return c
}

// Validate checks that the card has all required fields.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return ErrMissingName
	}
	if c.Description == "" {
		return ErrMissingDescription
	}
	if c.Version == "" {
		return ErrMissingVersion
	}
	return nil
}
