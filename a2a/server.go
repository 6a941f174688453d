package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AgentResolver looks up registered agents for request routing.
type AgentResolver interface {
	// Resolve returns the agent registered under id.
	Resolve(id string) (Agent, bool)
	// Cards returns the cards of all registered agents.
	Cards() []*AgentCard
}

// HTTPRecorder receives HTTP request observations. A nil recorder is
// allowed.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// ServerConfig holds configuration for the task server.
type ServerConfig struct {
	// BaseURL is the base URL where this server is accessible.
	BaseURL string
	// DefaultAgentID is the agent handling task-send requests that do
	// not name an agent.
	DefaultAgentID string
	// RequestTimeout is the timeout for processing requests.
	RequestTimeout time.Duration
	// EnableAuth enables bearer token authentication.
	EnableAuth bool
	// AuthToken is the expected token when EnableAuth is true.
	AuthToken string
	// RateLimit is the sustained task-send rate per second. Zero
	// disables rate limiting.
	RateLimit float64
	// RateBurst is the task-send burst size.
	RateBurst int
	// Logger is the logger instance.
	Logger *zap.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		BaseURL:        "http://localhost:8080",
		RequestTimeout: 60 * time.Second,
		EnableAuth:     false,
		Logger:         zap.NewNop(),
	}
}

// HTTPServer exposes the task protocol over HTTP. Agent-logic failures
// never surface as 5xx responses: they arrive at the client as a task
// in the failed state with a 200.
type HTTPServer struct {
	config   *ServerConfig
	logger   *zap.Logger
	manager  *TaskManager
	resolver AgentResolver
	recorder HTTPRecorder
	limiter  *rate.Limiter

	healthMu     sync.RWMutex
	healthChecks map[string]func(ctx context.Context) error
}

// NewHTTPServer creates a task server around the given manager and
// agent resolver.
func NewHTTPServer(config *ServerConfig, manager *TaskManager, resolver AgentResolver, recorder HTTPRecorder) *HTTPServer {
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = int(config.RateLimit)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &HTTPServer{
		config:       config,
		logger:       config.Logger,
		manager:      manager,
		resolver:     resolver,
		recorder:     recorder,
		limiter:      limiter,
		healthChecks: make(map[string]func(ctx context.Context) error),
	}
}

// RegisterHealthCheck adds a named dependency probe to /healthz.
func (s *HTTPServer) RegisterHealthCheck(name string, check func(ctx context.Context) error) {
	s.healthMu.Lock()
	s.healthChecks[name] = check
	s.healthMu.Unlock()
}

// ServeHTTP implements http.Handler.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	s.route(sw, r)

	if s.recorder != nil {
		s.recorder.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), sw.status, time.Since(start))
	}
}

func (s *HTTPServer) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	method := r.Method

	// Health and discovery stay reachable without credentials.
	switch {
	case path == "/healthz" && method == http.MethodGet:
		s.handleHealth(w, r)
		return
	case path == "/.well-known/agent.json" && method == http.MethodGet:
		s.handleCardDiscovery(w, r)
		return
	case path == "/a2a/agents" && method == http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{"agents": s.resolver.Cards()})
		return
	}

	if s.config.EnableAuth && !s.authenticate(r) {
		s.writeError(w, http.StatusUnauthorized, ErrAuthFailed)
		return
	}

	switch {
	case path == "/a2a/tasks/send" && method == http.MethodPost:
		s.handleTaskSend(w, r, s.config.DefaultAgentID)
	case strings.HasPrefix(path, "/a2a/agents/") && strings.HasSuffix(path, "/tasks/send") && method == http.MethodPost:
		agentID := strings.TrimSuffix(strings.TrimPrefix(path, "/a2a/agents/"), "/tasks/send")
		s.handleTaskSend(w, r, agentID)
	case strings.HasPrefix(path, "/a2a/agents/") && strings.HasSuffix(path, "/card") && method == http.MethodGet:
		agentID := strings.TrimSuffix(strings.TrimPrefix(path, "/a2a/agents/"), "/card")
		s.handleAgentCard(w, r, agentID)
	case strings.HasPrefix(path, "/a2a/tasks/") && strings.HasSuffix(path, "/cancel") && method == http.MethodGet:
		taskID := strings.TrimSuffix(strings.TrimPrefix(path, "/a2a/tasks/"), "/cancel")
		s.handleTaskCancel(w, r, taskID)
	case strings.HasPrefix(path, "/a2a/tasks/") && method == http.MethodDelete:
		taskID := strings.TrimPrefix(path, "/a2a/tasks/")
		s.handleTaskCancel(w, r, taskID)
	case strings.HasPrefix(path, "/a2a/tasks/") && method == http.MethodGet:
		taskID := strings.TrimPrefix(path, "/a2a/tasks/")
		s.handleTaskGet(w, r, taskID)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("endpoint not found: %s %s", method, path))
	}
}

// authenticate checks the bearer token.
func (s *HTTPServer) authenticate(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == s.config.AuthToken
	}
	return auth == s.config.AuthToken
}

// handleTaskSend handles POST /a2a/tasks/send and the per-agent variant.
func (s *HTTPServer) handleTaskSend(w http.ResponseWriter, r *http.Request, agentID string) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, fmt.Errorf("task rate limit exceeded"))
		return
	}

	params, err := s.parseTaskSend(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ag, err := s.agentFor(agentID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	task := s.manager.HandleTaskSend(ctx, ag, params)
	s.writeJSON(w, http.StatusOK, task)
}

// handleTaskGet handles GET /a2a/tasks/{id}.
func (s *HTTPServer) handleTaskGet(w http.ResponseWriter, r *http.Request, taskID string) {
	if taskID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing task id"))
		return
	}

	task, err := s.manager.HandleTaskGet(r.Context(), taskID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// handleTaskCancel handles GET /a2a/tasks/{id}/cancel and
// DELETE /a2a/tasks/{id}. The outcome is always a 200 with a structured
// result, unknown ids included.
func (s *HTTPServer) handleTaskCancel(w http.ResponseWriter, r *http.Request, taskID string) {
	if taskID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing task id"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.HandleTaskCancel(r.Context(), taskID))
}

// handleCardDiscovery handles GET /.well-known/agent.json.
func (s *HTTPServer) handleCardDiscovery(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		agentID = s.config.DefaultAgentID
	}
	s.handleAgentCard(w, r, agentID)
}

// handleAgentCard handles GET /a2a/agents/{id}/card.
func (s *HTTPServer) handleAgentCard(w http.ResponseWriter, r *http.Request, agentID string) {
	ag, err := s.agentFor(agentID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ag.Card())
}

// handleHealth handles GET /healthz, running all registered probes.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.healthMu.RLock()
	checks := make(map[string]func(ctx context.Context) error, len(s.healthChecks))
	for name, check := range s.healthChecks {
		checks[name] = check
	}
	s.healthMu.RUnlock()

	var (
		resultsMu sync.Mutex
		results   = make(map[string]string, len(checks))
	)
	// A plain group: one failing probe must not cancel its siblings.
	var g errgroup.Group
	for name, check := range checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)
			resultsMu.Lock()
			defer resultsMu.Unlock()
			if err != nil {
				results[name] = err.Error()
				return err
			}
			results[name] = "ok"
			return nil
		})
	}

	status := http.StatusOK
	if err := g.Wait(); err != nil {
		status = http.StatusServiceUnavailable
	}

	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	s.writeJSON(w, status, body)
}

// parseTaskSend decodes and validates the task-send body.
func (s *HTTPServer) parseTaskSend(r *http.Request) (*TaskSendParams, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	var params TaskSendParams
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// agentFor resolves an agent id, falling back to the default agent when
// the id is empty.
func (s *HTTPServer) agentFor(agentID string) (Agent, error) {
	if agentID == "" {
		agentID = s.config.DefaultAgentID
	}
	if agentID == "" {
		return nil, fmt.Errorf("%w: no agent specified and no default configured", ErrAgentNotFound)
	}
	ag, ok := s.resolver.Resolve(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return ag, nil
}

// writeJSON writes a JSON response.
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// writeError writes an error response.
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request error",
		zap.Int("status", status),
		zap.Error(err),
	)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusWriter captures the response status for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// routeLabel collapses task and agent ids out of the path so metric
// label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/a2a/tasks/") && strings.HasSuffix(path, "/cancel"):
		return "/a2a/tasks/{id}/cancel"
	case path == "/a2a/tasks/send":
		return "/a2a/tasks/send"
	case strings.HasPrefix(path, "/a2a/tasks/"):
		return "/a2a/tasks/{id}"
	case strings.HasPrefix(path, "/a2a/agents/") && strings.HasSuffix(path, "/tasks/send"):
		return "/a2a/agents/{id}/tasks/send"
	case strings.HasPrefix(path, "/a2a/agents/") && strings.HasSuffix(path, "/card"):
		return "/a2a/agents/{id}/card"
	default:
		return path
	}
}

var _ http.Handler = (*HTTPServer)(nil)
