package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/core"
	"github.com/oceanbase/vira-go/pkg/server"
)

type assistantMock struct {
	mock.Mock
}

func (m *assistantMock) Chat(ctx context.Context, userID, message string, opts ...core.ChatOption) (*core.ChatResult, error) {
	options := &core.ChatOptions{}
	for _, opt := range opts {
		opt(options)
	}
	args := m.Called(userID, message, options.SessionID)
	res, _ := args.Get(0).(*core.ChatResult)
	return res, args.Error(1)
}

func (m *assistantMock) Health(ctx context.Context) core.HealthStatus {
	return m.Called().Get(0).(core.HealthStatus)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat_ReturnsResponseAndContext(t *testing.T) {
	a := &assistantMock{}
	a.On("Chat", "u1", "Merhaba", "s1").
		Return(&core.ChatResult{Response: "Selam!", MemoryContext: "geçmiş"}, nil)
	srv := server.New(a, core.ServerConfig{}, nil)

	rec := post(t, srv.Handler(), `{"user_id":"u1","message":"Merhaba","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{"response": "Selam!", "memory_context": "geçmiş"}, got)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	a.AssertExpectations(t)
}

func TestChat_GeneratesUserID(t *testing.T) {
	a := &assistantMock{}
	a.On("Chat", mock.MatchedBy(func(id string) bool { return len(id) == 36 }), "selam", "").
		Return(&core.ChatResult{Response: "merhaba"}, nil)
	srv := server.New(a, core.ServerConfig{}, nil)

	rec := post(t, srv.Handler(), `{"message":"selam"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	a.AssertExpectations(t)
}

func TestChat_WorkflowFailureStillAnswers(t *testing.T) {
	a := &assistantMock{}
	a.On("Chat", "u1", "x", "").
		Return(&core.ChatResult{Response: core.GenericFailureResponse}, errors.New("step limit"))
	srv := server.New(a, core.ServerConfig{}, nil)

	rec := post(t, srv.Handler(), `{"user_id":"u1","message":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Teknik ekibimiz")
}

func TestChat_BadRequests(t *testing.T) {
	a := &assistantMock{}
	srv := server.New(a, core.ServerConfig{}, nil)

	assert.Equal(t, http.StatusBadRequest, post(t, srv.Handler(), `{`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, srv.Handler(), `{"user_id":"u1"}`).Code)
	a.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_InvalidInputIs400(t *testing.T) {
	a := &assistantMock{}
	a.On("Chat", "u1", "x", "").Return(nil, core.NewViraError("Chat", core.ErrInvalidInput))
	srv := server.New(a, core.ServerConfig{}, nil)

	rec := post(t, srv.Handler(), `{"user_id":"u1","message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	srv := server.New(&assistantMock{}, core.ServerConfig{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	a := &assistantMock{}
	a.On("Chat", "u1", "x", "").Return(&core.ChatResult{Response: "ok"}, nil)
	a.On("Health").Return(core.HealthStatus{Status: "healthy", Version: core.Version})
	srv := server.New(a, core.ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1}, nil)

	assert.Equal(t, http.StatusOK, post(t, srv.Handler(), `{"user_id":"u1","message":"x"}`).Code)
	rec := post(t, srv.Handler(), `{"user_id":"u1","message":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	health := httptest.NewRecorder()
	srv.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"healthy", http.StatusOK},
		{"degraded", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			a := &assistantMock{}
			a.On("Health").Return(core.HealthStatus{Status: tt.status, Version: core.Version})
			srv := server.New(a, core.ServerConfig{}, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, rec.Code)

			var got core.HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, core.Version, got.Version)
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := server.New(&assistantMock{}, core.ServerConfig{Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
