package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dirigent-ai/dirigent/a2a"
	"github.com/dirigent-ai/dirigent/llm"
)

// ContextAgentConfig describes one context-backed sub-agent.
type ContextAgentConfig struct {
	// ID is the agent identifier used in routing and endpoints.
	ID string `yaml:"id"`
	// Name is the display name stamped as the responding agent.
	Name string `yaml:"name"`
	// Description is advertised on the agent card.
	Description string `yaml:"description"`
	// Version is advertised on the agent card.
	Version string `yaml:"version"`
	// ContextDir holds per-agent markdown context files named <id>.md.
	ContextDir string `yaml:"context_dir"`
	// Model overrides the provider default model when non-empty.
	Model string `yaml:"model"`
}

// ContextAgent is a sub-agent whose domain knowledge lives in a
// markdown context file. Each message is relayed to the language model
// with that context as the system prompt, and the reply is stamped with
// the agent's display name so the orchestrator can track continuity.
type ContextAgent struct {
	card     *a2a.AgentCard
	provider llm.Provider
	model    string
	context  string
	logger   *zap.Logger
}

// NewContextAgent creates a context-backed sub-agent. A missing context
// file is tolerated: the agent still answers, just without domain
// grounding.
func NewContextAgent(cfg ContextAgentConfig, provider llm.Provider, logger *zap.Logger) (*ContextAgent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: empty agent id", a2a.ErrInvalidMessage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("agent_id", cfg.ID))

	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}
	description := cfg.Description
	if description == "" {
		description = fmt.Sprintf("Handles %s requests", cfg.Name)
	}

	card := a2a.NewAgentCard(cfg.ID, cfg.Name, description, version)
	card.AddCapability("chat", "Answer questions within the agent's domain")

	var contextText string
	if cfg.ContextDir != "" {
		path := filepath.Join(cfg.ContextDir, cfg.ID+".md")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			contextText = string(data)
			logger.Info("agent context loaded",
				zap.String("path", path),
				zap.Int("bytes", len(data)))
		case os.IsNotExist(err):
			logger.Warn("agent context file missing, continuing without it",
				zap.String("path", path))
		default:
			return nil, fmt.Errorf("read agent context %s: %w", path, err)
		}
	}

	return &ContextAgent{
		card:     card,
		provider: provider,
		model:    cfg.Model,
		context:  contextText,
		logger:   logger,
	}, nil
}

// Card returns the agent's discovery card.
func (a *ContextAgent) Card() *a2a.AgentCard {
	return a.card
}

// ProcessMessage relays one message to the language model under the
// agent's context.
func (a *ContextAgent) ProcessMessage(ctx context.Context, msg *a2a.Message, taskID, sessionID string) (*a2a.Message, error) {
	query := msg.Text()
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: no text to process", a2a.ErrInvalidMessage)
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: query},
	}

	start := time.Now()
	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		a.logger.Warn("model call failed",
			zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("agent %s: %w", a.card.ID, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("agent %s: %w", a.card.ID, a2a.ErrEmptyReply)
	}

	a.logger.Debug("agent reply produced",
		zap.String("task_id", taskID),
		zap.String("session_id", sessionID),
		zap.Duration("elapsed", time.Since(start)))

	reply := a2a.NewTextMessage(a2a.RoleAgent, resp.Content).WithMeta(&a2a.ResponseMeta{
		SessionID:       sessionID,
		RespondingAgent: a.card.Name,
	})
	reply.SetMetadata(a2a.MetaRespondingAgent, a.card.Name)
	reply.SetMetadata(a2a.MetaSessionIDUsed, sessionID)
	return reply, nil
}

// systemPrompt assembles the model instructions from the card identity
// and the context file.
func (a *ContextAgent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\n", a.card.Name, a.card.Description)
	b.WriteString("Answer the user's request directly and stay within your domain.\n")
	if a.context != "" {
		b.WriteString("\nUse the following reference material:\n\n")
		b.WriteString(a.context)
	}
	return b.String()
}

var _ a2a.Agent = (*ContextAgent)(nil)
