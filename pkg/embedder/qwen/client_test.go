package qwen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/embedder/qwen"
	"github.com/oceanbase/vira-go/pkg/llm"
)

func TestEmbed_SendsModelAndDimension(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/embeddings/text-embedding/text-embedding", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"output":{"embeddings":[{"embedding":[0.1,0.2]}]}}`))
	}))
	defer srv.Close()

	client, err := qwen.NewClient(&qwen.Config{APIKey: "key", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "merhaba")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)

	assert.Equal(t, qwen.DefaultModel, got["model"])
	assert.Equal(t, map[string]interface{}{"texts": []interface{}{"merhaba"}}, got["input"])
	assert.Equal(t, float64(2), got["parameters"].(map[string]interface{})["dimension"])
}

func TestEmbed_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := qwen.NewClient(&qwen.Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := qwen.NewClient(&qwen.Config{})
	assert.Error(t, err)
}
