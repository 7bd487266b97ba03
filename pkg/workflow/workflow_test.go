package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/embedder/embeddertest"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/personality"
	"github.com/oceanbase/vira-go/pkg/prompt"
	"github.com/oceanbase/vira-go/pkg/retrieval"
	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/oceanbase/vira-go/pkg/storage/memory"
	"github.com/oceanbase/vira-go/pkg/workflow"
)

type fixture struct {
	store     *memory.Store
	embedder  *embeddertest.Hashing
	generator *llmtest.Func
	workflow  *workflow.Workflow
}

func newFixture(t *testing.T, generator *llmtest.Func, mutate ...func(*workflow.Deps)) *fixture {
	t.Helper()
	ids, err := storage.NewSnowflakeGenerator(2)
	require.NoError(t, err)

	store := memory.NewStore(ids)
	emb := embeddertest.NewHashing(64)
	deps := workflow.Deps{
		Classifier: intent.NewClassifier(llmtest.Reply("unknown")),
		Retriever:  retrieval.NewRetriever(emb, store, retrieval.Config{}, nil),
		Assembler:  prompt.NewAssembler(nil),
		Generator:  generator,
		Embedder:   emb,
		Store:      store,
		Now:        func() time.Time { return time.Date(2025, 4, 27, 12, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&deps)
	}

	wf, err := workflow.New(deps)
	require.NoError(t, err)
	return &fixture{store: store, embedder: emb, generator: generator, workflow: wf}
}

func counts(s *memory.Store) [3]int {
	l, st, i := s.Counts()
	return [3]int{l, st, i}
}

func TestRun_OmegaCommand(t *testing.T) {
	f := newFixture(t, llmtest.Reply("kullanılmamalı"))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "0427"})
	require.NoError(t, err)

	assert.True(t, final.IsOmegaCommand)
	assert.Equal(t, intent.Omega, final.Intent)
	assert.Equal(t, persona.RenderOmega(persona.Default()), final.Response)
	assert.Equal(t, 0, f.generator.CallCount())
	assert.Equal(t, [3]int{0, 0, 0}, counts(f.store))
	assert.False(t, final.Written(workflow.FieldMessages))
	assert.False(t, final.Written(workflow.FieldPersisted))
}

func TestRun_OmegaTakesPriority(t *testing.T) {
	f := newFixture(t, llmtest.Reply("x"))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Merhaba, kod 0427 nasılsın?"})
	require.NoError(t, err)
	assert.True(t, final.IsOmegaCommand)
	assert.Equal(t, 0, f.generator.CallCount())
}

func TestRun_Greeting(t *testing.T) {
	f := newFixture(t, llmtest.Reply("İyiyim, teşekkür ederim. Sen nasılsın?"))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Merhaba, nasılsın?", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, intent.Greeting, final.Intent)
	assert.False(t, final.IsOmegaCommand)
	assert.Equal(t, "İyiyim, teşekkür ederim. Sen nasılsın?", final.Response)
	assert.InDelta(t, 0.1, final.ImportanceScore, 1e-9)
	assert.InDelta(t, 0.45, final.PromotionThreshold, 1e-9)
	assert.False(t, final.ShouldPromoteToLongTerm)
	assert.Equal(t, [3]int{0, 1, 1}, counts(f.store))

	calls := f.generator.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Equal(t, "Merhaba, nasılsın?", calls[0].Messages[1].Content)
	assert.Equal(t, 300, calls[0].Options.MaxTokens)

	recent, err := f.store.RecentShortTerm(context.Background(), "s1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Kullanıcı: Merhaba, nasılsın?\nVira: İyiyim, teşekkür ederim. Sen nasılsın?", recent[0].Content)

	interactions, err := f.store.RecentInteractions(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, "greeting", interactions[0].IntentType)
}

func TestRun_SessionDefaultsToUser(t *testing.T) {
	f := newFixture(t, llmtest.Reply("tamam"))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "selam"})
	require.NoError(t, err)
	assert.Equal(t, "u1", final.SessionID)

	recent, err := f.store.RecentShortTerm(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestRun_RetrievesOrderedMemories(t *testing.T) {
	f := newFixture(t, llmtest.Reply("Hatırlıyorum."))
	ctx := context.Background()
	require.NoError(t, f.store.EnsureUser(ctx, "u1"))

	for _, content := range []string{
		"kedim minnoş çok oyuncu",
		"kedim minnoş balık sever",
		"bugün hava yağmurlu",
	} {
		vec, err := f.embedder.Embed(ctx, content)
		require.NoError(t, err)
		_, err = f.store.StoreLongTerm(ctx, "u1", content, vec, map[string]interface{}{"importance_score": 0.6})
		require.NoError(t, err)
	}

	final, err := f.workflow.Run(ctx, workflow.Request{UserID: "u1", Message: "kedim minnoş ne sever?"})
	require.NoError(t, err)

	require.Len(t, final.RetrievedMemories, 3)
	for i := 1; i < len(final.RetrievedMemories); i++ {
		assert.GreaterOrEqual(t, final.RetrievedMemories[i-1].Similarity, final.RetrievedMemories[i].Similarity)
	}
	assert.Equal(t, "bugün hava yağmurlu", final.RetrievedMemories[2].Content)
}

func TestRun_GenerationFailure(t *testing.T) {
	f := newFixture(t, llmtest.Fail(errors.New("provider down")))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Bana bir şey anlat lütfen"})
	require.NoError(t, err)

	assert.Equal(t, workflow.FallbackResponse, final.Response)
	assert.True(t, final.GenerationFailed)
	assert.False(t, final.ShouldPromoteToLongTerm)
	assert.NotZero(t, final.Persisted.InteractionID)
	assert.NotZero(t, final.Persisted.ShortTermID)
	assert.Equal(t, [3]int{0, 1, 1}, counts(f.store))
}

func TestRun_PromotesImportantExchange(t *testing.T) {
	f := newFixture(t, llmtest.Reply("Bunu birlikte düşünelim."))
	ctx := context.Background()
	msg := "Özgürlük ve dostluk üzerine uzun uzun düşündüm, bir manifesto yazmak istiyorum."

	final, err := f.workflow.Run(ctx, workflow.Request{UserID: "u1", Message: msg, SessionID: "s1"})
	require.NoError(t, err)

	assert.True(t, final.ShouldPromoteToLongTerm)
	assert.GreaterOrEqual(t, final.ImportanceScore, final.PromotionThreshold)
	assert.LessOrEqual(t, final.ImportanceScore, 1.0)
	assert.NotZero(t, final.Persisted.LongTermID)
	assert.Equal(t, [3]int{1, 1, 1}, counts(f.store))

	exchange := "Kullanıcı: " + msg + "\nVira: Bunu birlikte düşünelim."
	vec, err := f.embedder.Embed(ctx, exchange)
	require.NoError(t, err)
	found, err := f.store.SimilaritySearch(ctx, "u1", vec, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)

	md := found[0].Metadata
	assert.Equal(t, exchange, found[0].Content)
	assert.Equal(t, "u1", md["user_id"])
	assert.Equal(t, "conversation", md["source"])
	assert.Equal(t, string(final.Intent), md["intent"])
	assert.Equal(t, final.MemoryType, md["memory_type"])
	assert.Equal(t, "2025-04-27T12:00:00Z", md["timestamp"])
	assert.Contains(t, md["tags"], "intent_"+string(final.Intent))
	assert.Contains(t, md["tags"], "memory_type_"+final.MemoryType)
}

func TestRun_UsesDynamicPersonality(t *testing.T) {
	store := personality.NewMemoryStore()
	high := personality.Vector{
		personality.Empathy:   1,
		personality.Curiosity: 1,
	}
	require.NoError(t, store.Save(context.Background(), "u1", personality.Change{New: high}))

	f := newFixture(t, llmtest.Reply("Merhaba!"), func(d *workflow.Deps) { d.Personality = store })

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Merhaba"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8*0.7+1*0.3, final.Personality[personality.Empathy], 1e-9)
	assert.InDelta(t, 1.0, final.DynamicPersonality[personality.Empathy], 1e-9)
	assert.InDelta(t, 0.25, final.PromotionThreshold, 1e-9)
}

func TestRun_ThresholdFollowsLearnedTraits(t *testing.T) {
	store := personality.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "u1", personality.Change{New: personality.Vector{
		personality.Curiosity:     0.95,
		personality.Assertiveness: 0.5,
	}}))

	f := newFixture(t, llmtest.Reply("Merhaba!"), func(d *workflow.Deps) { d.Personality = store })

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Merhaba"})
	require.NoError(t, err)

	// merged curiosity stays under 0.8, the learned value does not
	assert.Less(t, final.Personality[personality.Curiosity], 0.8)
	assert.InDelta(t, 0.35, final.PromotionThreshold, 1e-9)
}

type panickingRetriever struct{}

func (panickingRetriever) Retrieve(context.Context, string, string, string, int) retrieval.Result {
	panic("index out of range")
}

func TestRun_PanickingGeneratorStillPersists(t *testing.T) {
	gen := &llmtest.Func{Fn: func(context.Context, []llm.Message, *llm.GenerateOptions) (string, error) {
		panic("provider client nil deref")
	}}
	f := newFixture(t, gen)

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "Bana bir şey anlat lütfen"})
	require.NoError(t, err)

	assert.Equal(t, workflow.FallbackResponse, final.Response)
	assert.True(t, final.GenerationFailed)
	assert.False(t, final.ShouldPromoteToLongTerm)
	assert.Equal(t, [3]int{0, 1, 1}, counts(f.store))
}

func TestRun_PanickingRetrieverUsesEmptyContext(t *testing.T) {
	f := newFixture(t, llmtest.Reply("Tamam."), func(d *workflow.Deps) { d.Retriever = panickingRetriever{} })

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "selam"})
	require.NoError(t, err)

	assert.Equal(t, "", final.MemoryContext)
	assert.Empty(t, final.RetrievedMemories)
	assert.True(t, final.Written(workflow.FieldMemoryContext))
	assert.Equal(t, "Tamam.", final.Response)
	assert.Equal(t, [3]int{0, 1, 1}, counts(f.store))
}

type fixedRefiner struct {
	got []string
}

func (r *fixedRefiner) Refine(_ context.Context, message, memoryContext string) string {
	r.got = append(r.got, message, memoryContext)
	return "Minnoş balık sever."
}

func TestRun_RefinedContextReachesPrompt(t *testing.T) {
	refiner := &fixedRefiner{}
	f := newFixture(t, llmtest.Reply("Balık!"), func(d *workflow.Deps) { d.Refiner = refiner })
	ctx := context.Background()
	require.NoError(t, f.store.EnsureUser(ctx, "u1"))

	msg := "kedim minnoş ne sever?"
	vec, err := f.embedder.Embed(ctx, msg)
	require.NoError(t, err)
	_, err = f.store.StoreLongTerm(ctx, "u1", msg, vec, map[string]interface{}{"importance_score": 0.6})
	require.NoError(t, err)

	final, err := f.workflow.Run(ctx, workflow.Request{UserID: "u1", Message: msg})
	require.NoError(t, err)

	require.NotEmpty(t, final.MemoryContext)
	assert.Equal(t, "Minnoş balık sever.", final.RefinedContext)
	require.Len(t, refiner.got, 2)
	assert.Equal(t, msg, refiner.got[0])
	assert.Equal(t, final.MemoryContext, refiner.got[1])

	calls := f.generator.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "Rafine edilmiş bağlam: Minnoş balık sever.")
}

func TestRun_NoRefinerLeavesContextEmpty(t *testing.T) {
	f := newFixture(t, llmtest.Reply("x"))

	final, err := f.workflow.Run(context.Background(), workflow.Request{UserID: "u1", Message: "selam"})
	require.NoError(t, err)
	assert.Equal(t, "", final.RefinedContext)
	assert.True(t, final.Written(workflow.FieldRefinedContext))
}

func TestRun_Validation(t *testing.T) {
	f := newFixture(t, llmtest.Reply("x"))

	_, err := f.workflow.Run(context.Background(), workflow.Request{Message: "selam"})
	assert.ErrorIs(t, err, workflow.ErrUserRequired)

	_, err = workflow.New(workflow.Deps{})
	assert.ErrorIs(t, err, workflow.ErrMissingDependency)
}
