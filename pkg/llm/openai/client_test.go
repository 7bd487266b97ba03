package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/llm/openai"
)

func TestNewCompatibleClient_Validation(t *testing.T) {
	_, err := openai.NewCompatibleClient("deepseek", nil)
	assert.ErrorContains(t, err, "deepseek: API key is required")

	_, err = openai.NewCompatibleClient("deepseek", &openai.Config{APIKey: "key"})
	assert.ErrorContains(t, err, "base URL is required")

	_, err = openai.NewClient(nil)
	assert.Error(t, err)
}

func TestGenerateWithMessages_JSONFormat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	client, err := openai.NewCompatibleClient("test", &openai.Config{APIKey: "key", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	out, err := client.GenerateWithMessages(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "x"}},
		llm.WithResponseFormat(llm.FormatJSONObject))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "m", got["model"])
	assert.Equal(t, map[string]interface{}{"type": "json_object"}, got["response_format"])
}

func TestGenerateWithMessages_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := openai.NewCompatibleClient("test", &openai.Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
}
