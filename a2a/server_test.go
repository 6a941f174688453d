package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver serves a fixed set of agents.
type stubResolver struct {
	agents map[string]Agent
}

func (r *stubResolver) Resolve(id string) (Agent, bool) {
	ag, ok := r.agents[id]
	return ag, ok
}

func (r *stubResolver) Cards() []*AgentCard {
	cards := make([]*AgentCard, 0, len(r.agents))
	for _, ag := range r.agents {
		cards = append(cards, ag.Card())
	}
	return cards
}

func newTestServer(t *testing.T, config *ServerConfig, agents ...Agent) *httptest.Server {
	t.Helper()
	if config == nil {
		config = DefaultServerConfig()
	}
	if config.DefaultAgentID == "" && len(agents) > 0 {
		config.DefaultAgentID = agents[0].Card().ID
	}

	resolver := &stubResolver{agents: make(map[string]Agent)}
	for _, ag := range agents {
		resolver.agents[ag.Card().ID] = ag
	}

	manager := NewTaskManager(newMemStore(), DefaultManagerConfig(), nil, nil)
	srv := httptest.NewServer(NewHTTPServer(config, manager, resolver, nil))
	t.Cleanup(srv.Close)
	return srv
}

func sendTask(t *testing.T, url string, params *TaskSendParams) (*http.Response, *Task) {
	t.Helper()
	body, err := json.Marshal(params)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var task Task
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	}
	return resp, &task
}

func TestServerTaskLifecycle(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"))

	// Send.
	resp, task := sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{
		ID:      "t1",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "stub reply", task.ResponseMessage.Text())

	// Get returns the same task.
	getResp, err := http.Get(srv.URL + "/a2a/tasks/t1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched Task
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	assert.Equal(t, "t1", fetched.ID)
	assert.Equal(t, TaskStateCompleted, fetched.Status.State)

	// Cancel flips it to cancelled with a 200.
	cancelResp, err := http.Get(srv.URL + "/a2a/tasks/t1/cancel")
	require.NoError(t, err)
	defer cancelResp.Body.Close()
	require.Equal(t, http.StatusOK, cancelResp.StatusCode)

	var result CancelResult
	require.NoError(t, json.NewDecoder(cancelResp.Body).Decode(&result))
	assert.Equal(t, CancelStatusCancelled, result.Status)
}

func TestServerCancelViaDelete(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"))

	sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{
		ID:      "t-del",
		Message: NewTextMessage(RoleUser, "Hello"),
	})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/a2a/tasks/t-del", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result CancelResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, CancelStatusCancelled, result.Status)
}

func TestServerCancelUnknownTask(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"))

	resp, err := http.Get(srv.URL + "/a2a/tasks/missing/cancel")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "cancel outcome is structured, not a 404")

	var result CancelResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, CancelStatusNotFound, result.Status)
}

func TestServerGetUnknownTask(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"))

	resp, err := http.Get(srv.URL + "/a2a/tasks/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerAgentFailureIsNot5xx(t *testing.T) {
	ag := newStubAgent("orchestrator")
	ag.err = errors.New("model overloaded")
	srv := newTestServer(t, nil, ag)

	resp, task := sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{
		ID:      "t-fail",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message, "Falling back to rule-based processing due to LLM error:")
}

func TestServerPerAgentRouting(t *testing.T) {
	billing := newStubAgent("billing")
	billing.reply = NewTextMessage(RoleAgent, "billing reply")
	srv := newTestServer(t, nil, newStubAgent("orchestrator"), billing)

	resp, task := sendTask(t, srv.URL+"/a2a/agents/billing/tasks/send", &TaskSendParams{
		ID:      "t-billing",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "billing reply", task.ResponseMessage.Text())

	resp2, _ := sendTask(t, srv.URL+"/a2a/agents/nope/tasks/send", &TaskSendParams{
		ID:      "t-nope",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServerInvalidTaskSendBody(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"))

	t.Run("malformed json", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/a2a/tasks/send", "application/json", bytes.NewReader([]byte("not json")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing message", func(t *testing.T) {
		resp, _ := sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{ID: "t-empty"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServerDiscovery(t *testing.T) {
	srv := newTestServer(t, nil, newStubAgent("orchestrator"), newStubAgent("billing"))

	t.Run("well-known default agent", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/.well-known/agent.json")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var card AgentCard
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
		assert.Equal(t, "orchestrator", card.ID)
	})

	t.Run("well-known by query", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/.well-known/agent.json?agent_id=billing")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var card AgentCard
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
		assert.Equal(t, "billing", card.ID)
	})

	t.Run("agent list", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/a2a/agents")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Agents []*AgentCard `json:"agents"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Agents, 2)
	})

	t.Run("per-agent card", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/a2a/agents/billing/card")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerAuth(t *testing.T) {
	config := DefaultServerConfig()
	config.EnableAuth = true
	config.AuthToken = "secret"
	srv := newTestServer(t, config, newStubAgent("orchestrator"))

	body, _ := json.Marshal(&TaskSendParams{ID: "t-auth", Message: NewTextMessage(RoleUser, "Hello")})

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/a2a/tasks/send", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/a2a/tasks/send", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer wrong")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/a2a/tasks/send", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health stays open", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("discovery stays open", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/.well-known/agent.json")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerRateLimit(t *testing.T) {
	config := DefaultServerConfig()
	config.RateLimit = 1
	config.RateBurst = 1
	srv := newTestServer(t, config, newStubAgent("orchestrator"))

	first, _ := sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{
		ID:      "t-rl-1",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, _ := sendTask(t, srv.URL+"/a2a/tasks/send", &TaskSendParams{
		ID:      "t-rl-2",
		Message: NewTextMessage(RoleUser, "Hello"),
	})
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestServerHealth(t *testing.T) {
	t.Run("all probes pass", func(t *testing.T) {
		config := DefaultServerConfig()
		resolver := &stubResolver{agents: map[string]Agent{"a": newStubAgent("a")}}
		manager := NewTaskManager(newMemStore(), DefaultManagerConfig(), nil, nil)
		handler := NewHTTPServer(config, manager, resolver, nil)
		handler.RegisterHealthCheck("store", func(ctx context.Context) error { return nil })
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("failing probe degrades", func(t *testing.T) {
		config := DefaultServerConfig()
		resolver := &stubResolver{agents: map[string]Agent{"a": newStubAgent("a")}}
		manager := NewTaskManager(newMemStore(), DefaultManagerConfig(), nil, nil)
		handler := NewHTTPServer(config, manager, resolver, nil)
		handler.RegisterHealthCheck("store", func(ctx context.Context) error { return nil })
		handler.RegisterHealthCheck("llm", func(ctx context.Context) error {
			return fmt.Errorf("connection refused")
		})
		srv := httptest.NewServer(handler)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "ok", body.Checks["store"], "a failing probe must not poison its siblings")
		assert.Contains(t, body.Checks["llm"], "connection refused")
	})
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a2a/tasks/send", "/a2a/tasks/send"},
		{"/a2a/tasks/abc-123", "/a2a/tasks/{id}"},
		{"/a2a/tasks/abc-123/cancel", "/a2a/tasks/{id}/cancel"},
		{"/a2a/agents/billing/tasks/send", "/a2a/agents/{id}/tasks/send"},
		{"/a2a/agents/billing/card", "/a2a/agents/{id}/card"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routeLabel(tt.path), "path %s", tt.path)
	}
}
