package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/core"
	"github.com/oceanbase/vira-go/pkg/embedder/embeddertest"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/oceanbase/vira-go/pkg/storage/memory"
)

func newAsync(t *testing.T) (*core.AsyncAssistant, *memory.Store) {
	t.Helper()
	ids, err := storage.NewSnowflakeGenerator(5)
	require.NoError(t, err)
	store := memory.NewStore(ids)

	a, err := core.NewAsyncAssistant(core.DefaultConfig(),
		core.WithStore(store),
		core.WithEmbedder(embeddertest.NewHashing(64)),
		core.WithLLM(llmtest.Reply("Anladım.")),
		core.WithoutGuard(),
	)
	require.NoError(t, err)
	return a, store
}

func TestChatAsync(t *testing.T) {
	a, _ := newAsync(t)
	defer func() { require.NoError(t, a.Close()) }()

	res := <-a.ChatAsync(context.Background(), "u1", "Bugün ne yapsam?")
	require.NoError(t, res.Error)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "Anladım.", res.Result.Response)
}

func TestChatBatch_KeepsOrder(t *testing.T) {
	a, store := newAsync(t)
	defer func() { require.NoError(t, a.Close()) }()

	reqs := []core.ChatRequest{
		{UserID: "u1", Message: "selam", SessionID: "s1"},
		{UserID: "", Message: "sahipsiz"},
		{UserID: "u2", Message: "0427"},
		{UserID: "u3", Message: "Bana bir plan yap lütfen", SessionID: "s3"},
	}
	results := a.ChatBatch(context.Background(), reqs, 2)
	require.Len(t, results, 4)

	require.NoError(t, results[0].Error)
	assert.Equal(t, "Anladım.", results[0].Result.Response)
	assert.ErrorIs(t, results[1].Error, core.ErrInvalidInput)
	require.NoError(t, results[2].Error)
	assert.True(t, results[2].Result.State.IsOmegaCommand)
	require.NoError(t, results[3].Error)

	_, shortTerm, interactions := store.Counts()
	assert.Equal(t, 2, shortTerm)
	assert.Equal(t, 2, interactions)
}
