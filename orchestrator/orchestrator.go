// Package orchestrator implements the conversation-routing agent: for
// each user turn it decides whether to answer directly, delegate to a
// specialized sub-agent, ask for clarification, decline, or end a
// sticky agent session, and it keeps per-session continuity via the
// chat history store.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dirigent-ai/dirigent/a2a"
	"github.com/dirigent-ai/dirigent/internal/metrics"
	"github.com/dirigent-ai/dirigent/llm"
	"github.com/dirigent-ai/dirigent/persistence"
)

// AgentCatalog is the view of registered sub-agents the orchestrator
// routes over.
type AgentCatalog interface {
	// Cards returns the discovery cards of all delegation targets.
	Cards() []*a2a.AgentCard

	// TaskEndpoint returns the task-send URL for an agent id.
	TaskEndpoint(id string) (string, bool)
}

// Config holds orchestrator tuning.
type Config struct {
	// Model is the oracle model used for routing decisions.
	Model string `yaml:"model"`

	// DelegationTimeout bounds one sub-agent call. Expiry degrades to a
	// descriptive error string in the reply, not a failed task.
	DelegationTimeout time.Duration `yaml:"delegation_timeout"`

	// ExitPhrases overrides the built-in set of phrases that release a
	// sticky agent.
	ExitPhrases []string `yaml:"exit_phrases"`

	// MaxHistoryTurns caps how many prior turns are replayed to the
	// oracle.
	MaxHistoryTurns int `yaml:"max_history_turns"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DelegationTimeout: 30 * time.Second,
		MaxHistoryTurns:   20,
	}
}

// Orchestrator implements a2a.Agent. It consults the decision oracle,
// executes the chosen action, and stamps responding-agent bookkeeping
// into both the reply and the persisted history so the next turn's
// sticky check can read it back.
type Orchestrator struct {
	card        *a2a.AgentCard
	provider    llm.Provider
	catalog     AgentCatalog
	history     persistence.HistoryStore
	client      *a2a.Client
	config      Config
	exitPhrases []string
	logger      *zap.Logger
	collector   *metrics.Collector
}

// New creates the orchestrator agent.
func New(provider llm.Provider, catalog AgentCatalog, history persistence.HistoryStore, client *a2a.Client, config Config, logger *zap.Logger, collector *metrics.Collector) *Orchestrator {
	if config.DelegationTimeout == 0 {
		config.DelegationTimeout = 30 * time.Second
	}
	if config.MaxHistoryTurns == 0 {
		config.MaxHistoryTurns = 20
	}
	phrases := config.ExitPhrases
	if len(phrases) == 0 {
		phrases = defaultExitPhrases
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	card := a2a.NewAgentCard(
		"orchestrator",
		OrchestratorName,
		"Routes user requests to specialized agents or answers directly",
		"1.0.0",
	)
	card.AddCapability("route", "Decide which agent should handle a message")
	card.AddCapability("converse", "Answer simple requests directly")

	return &Orchestrator{
		card:        card,
		provider:    provider,
		catalog:     catalog,
		history:     history,
		client:      client,
		config:      config,
		exitPhrases: phrases,
		logger:      logger.With(zap.String("component", "orchestrator")),
		collector:   collector,
	}
}

// Card returns the orchestrator's discovery card.
func (o *Orchestrator) Card() *a2a.AgentCard {
	return o.card
}

// ProcessMessage handles one user turn.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg *a2a.Message, taskID, sessionID string) (*a2a.Message, error) {
	query := msg.Text()
	if sessionID == "" {
		sessionID = taskID
	}

	entries, err := o.history.BySession(ctx, sessionID)
	if err != nil {
		o.logger.Warn("failed to load session history",
			zap.String("session_id", sessionID), zap.Error(err))
		entries = nil
	}

	if _, err := o.history.Append(ctx, sessionID, "user", query, nil); err != nil {
		o.logger.Warn("failed to persist user turn",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	decision := o.decide(ctx, query, entries)
	o.collector.RecordDecision(string(decision.Action))
	o.logger.Info("routing decision",
		zap.String("task_id", taskID),
		zap.String("session_id", sessionID),
		zap.String("action", string(decision.Action)),
		zap.String("agent", decision.Target()),
	)

	text, respondingID, reset := o.execute(ctx, decision, sessionID, query)

	respondingName := OrchestratorName
	if respondingID != "" {
		respondingName = displayAgentName(respondingID)
	}

	historyMeta := map[string]string{metaRespondingAgentName: respondingName}
	if respondingID != "" {
		historyMeta[metaRespondingAgentID] = respondingID
	}
	if reset {
		historyMeta[metaResetSession] = "true"
	}
	if _, err := o.history.Append(ctx, sessionID, "assistant", text, historyMeta); err != nil {
		o.logger.Warn("failed to persist assistant turn",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	reply := a2a.NewTextMessage(a2a.RoleAgent, text).WithMeta(&a2a.ResponseMeta{
		SessionID:       sessionID,
		RespondingAgent: respondingName,
		ResetSession:    reset,
	})
	reply.SetMetadata(a2a.MetaRespondingAgent, respondingName)
	reply.SetMetadata(a2a.MetaSessionIDUsed, sessionID)
	if reset {
		reply.SetMetadata(a2a.MetaResetSession, "true")
	}
	return reply, nil
}

// decide maps (query, history) to exactly one Decision. The sticky
// binding is a deterministic guard: an active agent keeps the turn
// unless the user utters an exit phrase, and only then is the oracle
// skipped entirely. Sessions with no binding consult the oracle,
// failing closed to cannot_handle.
func (o *Orchestrator) decide(ctx context.Context, query string, entries []persistence.ChatEntry) *Decision {
	if strings.TrimSpace(query) == "" {
		return &Decision{
			Action:        ActionClarify,
			Clarification: "I received an empty message. What would you like to do?",
		}
	}

	if sticky := stickyAgent(entries); sticky != "" {
		if isExitPhrase(query, o.exitPhrases) {
			return &Decision{
				Action: ActionTransition,
				Response: fmt.Sprintf("Okay, I've ended your session with %s. What would you like to do next?",
					displayAgentName(sticky)),
			}
		}
		return &Decision{Action: ActionDelegate, Agent: sticky, Query: query}
	}

	if len(entries) > o.config.MaxHistoryTurns {
		entries = entries[len(entries)-o.config.MaxHistoryTurns:]
	}

	start := time.Now()
	resp, err := o.provider.Completion(ctx, &llm.ChatRequest{
		Model:    o.config.Model,
		Messages: buildDecisionMessages(query, entries, o.catalog.Cards()),
	})
	o.collector.RecordOracleRequest(o.config.Model, time.Since(start), err == nil)
	if err != nil {
		o.logger.Warn("decision oracle unavailable", zap.Error(err))
		return cannotHandle("decision oracle unavailable: %v", err)
	}
	return ParseDecision(resp.Content)
}

// execute resolves a decision into the reply text, the responding agent
// id ("" when the orchestrator answered), and the reset flag. It always
// produces some user-facing text.
func (o *Orchestrator) execute(ctx context.Context, d *Decision, sessionID, query string) (string, string, bool) {
	switch d.Action {
	case ActionDelegate:
		return o.delegate(ctx, d, sessionID, query), d.Target(), false

	case ActionRespondDirect:
		return d.Response, "", false

	case ActionClarify:
		return "Clarification needed: " + d.Clarification, "", false

	case ActionCannotHandle:
		return "I cannot handle this request: " + d.Reason, "", false

	case ActionTransition:
		text := d.Response
		if text == "" {
			text = "Okay, let's start fresh. What would you like to do next?"
		}
		if d.NextAction != nil {
			switch d.NextAction.Action {
			case ActionDelegate, ActionRespondDirect:
				nextText, nextID, _ := o.execute(ctx, d.NextAction, sessionID, query)
				return text + "\n\n" + nextText, nextID, true
			}
		}
		return text, "", true

	default:
		return fmt.Sprintf("I could not process your request: unknown action %q.", string(d.Action)), "", false
	}
}

// delegate builds a fresh sub-task in the same session, dispatches it to
// the target agent's task endpoint, and extracts the reply text. Every
// failure path degrades to a descriptive string: delegation failure is
// local to the turn, never fatal to the parent task.
func (o *Orchestrator) delegate(ctx context.Context, d *Decision, sessionID, userQuery string) string {
	target := d.Target()
	if target == "" {
		return "I cannot handle this request: the routing decision named no agent."
	}

	endpoint, ok := o.catalog.TaskEndpoint(target)
	if !ok {
		return fmt.Sprintf("Delegation to %q failed: no such agent is registered.", target)
	}

	query := d.Query
	if query == "" {
		query = userQuery
	}

	params := &a2a.TaskSendParams{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Message:   a2a.NewTextMessage(a2a.RoleUser, query),
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.DelegationTimeout)
	defer cancel()

	start := time.Now()
	raw, err := o.client.SendTask(ctx, endpoint, params)
	o.collector.RecordDelegation(target, time.Since(start), err == nil)
	if err != nil {
		o.logger.Warn("delegation failed",
			zap.String("agent", target), zap.Error(err))
		return fmt.Sprintf("Delegation to %q failed: %v", target, err)
	}

	text, err := a2a.ExtractReplyText(raw)
	if err != nil {
		o.logger.Warn("delegation response unreadable",
			zap.String("agent", target), zap.Error(err))
		return fmt.Sprintf("Delegation to %q returned an unreadable response: %v", target, err)
	}
	return text
}

// displayAgentName derives the human-readable responding-agent name
// from an agent path: title-cased words suffixed " Agent".
func displayAgentName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '/'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return OrchestratorName
	}
	name := strings.Join(words, " ")
	if !strings.HasSuffix(name, " Agent") {
		name += " Agent"
	}
	return name
}

// Ensure Orchestrator implements a2a.Agent
var _ a2a.Agent = (*Orchestrator)(nil)
