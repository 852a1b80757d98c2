package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/orchestrator"
)

type fakeRunner struct {
	result  *orchestrator.TurnResult
	err     error
	history []llm.Message
	token   string
	calls   int
}

func (f *fakeRunner) RunTurn(_ context.Context, history []llm.Message, userToken string) (*orchestrator.TurnResult, error) {
	f.calls++
	f.history = history
	f.token = userToken
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(t *testing.T, runner *fakeRunner) *Server {
	t.Helper()
	s, err := NewServer(runner, Config{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echoHeaderContentType, "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, Config{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewServer(&fakeRunner{}, Config{}, nil)
	require.Error(t, err)
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)

	cfg = Config{Host: "0.0.0.0", Port: 9001}
	cfg.ApplyDefaults()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9001, cfg.Port)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "agentd", resp.Service)
}

func TestTurnRequiresBearerToken(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.TurnResult{Reply: "hi"}}
	s := newTestServer(t, runner)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing header", token: ""},
		{name: "wrong scheme", token: "Basic abc123"},
		{name: "empty bearer", token: "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/agent/event-planner/turn", `{"history_messages":[]}`, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.Zero(t, runner.calls)
}

func TestTurnHappyPath(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.TurnResult{
		Reply: "here is your plan",
		Messages: []llm.Message{
			llm.UserMessage("plan my event"),
			llm.AssistantMessage("here is your plan"),
		},
		Plans: []map[string]any{{"type": "epics_plan", "tool": "generate_epics"}},
	}}
	s := newTestServer(t, runner)

	body := `{"history_messages":[{"role":"user","content":"plan my event"}],"eventId":"evt-42"}`
	rec := doRequest(s, http.MethodPost, "/agent/event-planner/turn", body, "Bearer user-token-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "here is your plan", resp.AssistantReply)
	assert.Len(t, resp.Messages, 2)
	require.Len(t, resp.Plans, 1)
	assert.Equal(t, "epics_plan", resp.Plans[0]["type"])
	assert.Equal(t, "evt-42", resp.EventID)

	assert.Equal(t, "user-token-1", runner.token)
	require.Len(t, runner.history, 1)
	assert.Equal(t, "plan my event", runner.history[0].Content)
}

func TestTurnInvalidBody(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.TurnResult{}}
	s := newTestServer(t, runner)

	rec := doRequest(s, http.MethodPost, "/agent/event-planner/turn", `{"history_messages":`, "Bearer tok")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, runner.calls)
}

func TestTurnRunnerErrorIsOpaque(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model call: upstream exploded")}
	s := newTestServer(t, runner)

	rec := doRequest(s, http.MethodPost, "/agent/event-planner/turn", `{"history_messages":[]}`, "Bearer tok")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func TestChatMessageMapsToTurn(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.TurnResult{Reply: "sure, tell me more"}}
	s := newTestServer(t, runner)

	rec := doRequest(s, http.MethodPost, "/api/chat/message", `{"message":"help me plan a wedding"}`, "Bearer tok")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sure, tell me more", resp.Message)
	assert.Equal(t, "conversation", resp.State)
	assert.True(t, strings.HasPrefix(resp.SessionID, "session-"), "generated session id: %q", resp.SessionID)

	require.Len(t, runner.history, 1)
	assert.Equal(t, llm.RoleUser, runner.history[0].Role)
	assert.Equal(t, "help me plan a wedding", runner.history[0].Content)
}

func TestChatMessageKeepsSessionID(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.TurnResult{Reply: "ok"}}
	s := newTestServer(t, runner)

	rec := doRequest(s, http.MethodPost, "/api/chat/message", `{"message":"hi","session_id":"session-abc"}`, "Bearer tok")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-abc", resp.SessionID)
}
