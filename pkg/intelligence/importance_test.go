package intelligence_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/input"
	"github.com/oceanbase/vira-go/pkg/intelligence"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
	"github.com/oceanbase/vira-go/pkg/personality"
)

func TestScore_GreetingIsBaseOnly(t *testing.T) {
	scorer := intelligence.NewScorer(nil)
	a := input.Analyze("Merhaba, nasılsın?")

	b := scorer.Score(intelligence.Input{
		UserID:            "u1",
		UserMessage:       "Merhaba, nasılsın?",
		Response:          "İyiyim, teşekkürler!",
		Emotion:           a.Emotion,
		EmotionConfidence: a.EmotionConfidence,
		Sentiment:         a.Sentiment,
	})

	assert.InDelta(t, 0.1, b.Total, 1e-9)
	assert.Zero(t, b.Keyword)
	assert.Zero(t, b.Emotion)
	assert.Zero(t, b.Length)
	assert.Zero(t, b.Overlap)

	threshold := intelligence.NewPromotionPolicy(0).Threshold(personality.Default(), intent.Greeting)
	assert.False(t, intelligence.ShouldPromote(b.Combined(), threshold))
}

func TestScore_EmptyInput(t *testing.T) {
	scorer := intelligence.NewScorer(nil)
	assert.Zero(t, scorer.Score(intelligence.Input{UserID: "u1", UserMessage: "  "}).Total)
	assert.Zero(t, scorer.Score(intelligence.Input{UserMessage: "özgürlük"}).Total)
}

func TestScore_Keyword(t *testing.T) {
	scorer := intelligence.NewScorer([]string{"dostluk"})

	early := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "dostluk", Response: strings.Repeat("a", 40)})
	assert.InDelta(t, 0.15, early.Keyword, 1e-9)

	late := scorer.Score(intelligence.Input{UserID: "u", UserMessage: strings.Repeat("a", 40), Response: "dostluk"})
	assert.InDelta(t, 0.18, late.Keyword, 1e-9)

	repeated := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "dostluk dostluk dostluk", Response: strings.Repeat("b", 80)})
	assert.InDelta(t, 0.3, repeated.Keyword, 1e-9, "per keyword cap")

	all := intelligence.NewScorer(nil).Score(intelligence.Input{
		UserID:      "u",
		UserMessage: "özgürlük dostluk manifesto bilinç varoluş devrim",
		Response:    "tamam",
	})
	assert.InDelta(t, 0.5, all.Keyword, 1e-9, "total keyword cap")
}

func TestScore_Emotion(t *testing.T) {
	scorer := intelligence.NewScorer(nil)

	b := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "x", Emotion: input.Anger, EmotionConfidence: 0.9, Sentiment: -0.8})
	assert.InDelta(t, 0.29, b.Emotion, 1e-9)

	low := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "x", Emotion: input.Anger, EmotionConfidence: 0.3, Sentiment: -0.9})
	assert.Zero(t, low.Emotion)

	calm := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "x", Emotion: input.Calm, EmotionConfidence: 0.9})
	assert.Zero(t, calm.Emotion)
}

func TestLengthScore(t *testing.T) {
	assert.Zero(t, intelligence.LengthScore(strings.Repeat("ş", 19)))
	assert.InDelta(t, 0.04, intelligence.LengthScore(strings.Repeat("ş", 20)), 1e-9)
	assert.InDelta(t, 0.2, intelligence.LengthScore(strings.Repeat("a", 2000)), 1e-9)
}

func TestScore_Overlap(t *testing.T) {
	scorer := intelligence.NewScorer(nil)
	memories := []string{
		"kedim mavi gözlü ve çok tatlı",
		"kedim mavi gözlü ve çok yaramaz",
		"hiç ortak yok",
		"kedim mavi gözlü ve çok uykucu",
		"kedim mavi gözlü ve çok hızlı",
	}

	b := scorer.Score(intelligence.Input{UserID: "u", UserMessage: "kedim mavi gözlü ve çok", Response: "", MemoryContents: memories})
	assert.InDelta(t, 0.3, b.Overlap, 1e-9)
}

func TestScore_Bounded(t *testing.T) {
	scorer := intelligence.NewScorer(nil)
	msg := strings.Repeat("özgürlük dostluk manifesto bilinç varoluş devrim ", 20)
	b := scorer.Score(intelligence.Input{
		UserID: "u", UserMessage: msg, Response: msg,
		Emotion: input.Joy, EmotionConfidence: 1, Sentiment: 1,
		MemoryContents: []string{msg, msg, msg, msg},
	})
	assert.LessOrEqual(t, b.Total, 1.0)
	assert.GreaterOrEqual(t, b.Total, 0.0)
	assert.InDelta(t, 1.0, b.Total, 1e-9)
}

func TestPromotionPolicy_Threshold(t *testing.T) {
	p := intelligence.NewPromotionPolicy(0)
	assert.InDelta(t, 0.45, p.Base, 1e-9)

	assert.InDelta(t, 0.45, p.Threshold(personality.Default(), intent.Greeting), 1e-9)
	assert.InDelta(t, 0.25, p.Threshold(personality.Vector{"empathy": 0.9, "curiosity": 0.9}, intent.Question), 1e-9)
	assert.InDelta(t, 0.5, p.Threshold(personality.Vector{"assertiveness": 0.9}, intent.Question), 1e-9)
	assert.InDelta(t, 0.2, p.Threshold(personality.Default(), intent.Omega), 1e-9)
	assert.InDelta(t, 0.2, p.Threshold(personality.Vector{"assertiveness": 0.9}, intent.Command), 1e-9)
	assert.InDelta(t, 0.8, intelligence.NewPromotionPolicy(0.95).Threshold(nil, intent.Question), 1e-9)
	assert.InDelta(t, 0.2, intelligence.NewPromotionPolicy(0.21).Threshold(personality.Vector{"empathy": 0.9}, intent.Question), 1e-9)
}

func TestShouldPromote_Monotonic(t *testing.T) {
	threshold := 0.45
	prev := false
	for score := 0.0; score <= 1.0; score += 0.01 {
		got := intelligence.ShouldPromote(score, threshold)
		assert.False(t, prev && !got, "promotion flipped back at %.2f", score)
		prev = got
	}
}

func TestSemanticEvaluator(t *testing.T) {
	provider := llmtest.Reply(`{"memory_type":"fact","emotional_intensity":0.5,"personal_significance":1,"novelty_score":0,"relationship_impact":0,"should_remember":true,"reason":"doğum günü"}`)
	e := intelligence.NewSemanticEvaluator(provider, 0, nil)

	res, err := e.Evaluate(context.Background(), "Doğum günüm 3 Mart", "Not ettim")
	require.NoError(t, err)
	assert.Equal(t, intelligence.MemoryTypeFactual, res.MemoryType)
	assert.InDelta(t, 0.3+0.125+0.1, res.Score(), 1e-9)

	b := intelligence.Breakdown{Total: 0.5}
	b = e.Apply(context.Background(), b, "m", "r")
	require.NotNil(t, b.Semantic)
	assert.InDelta(t, 0.5, b.Total, 1e-9, "arithmetic total untouched")
	assert.InDelta(t, 0.5*0.7+0.525*0.3, b.Combined(), 1e-9)
	assert.Contains(t, b.Reasons, "semantik: doğum günü")
}

func TestSemanticEvaluator_Failure(t *testing.T) {
	ctx := context.Background()
	b := intelligence.Breakdown{Total: 0.4}

	failing := intelligence.NewSemanticEvaluator(llmtest.Fail(errors.New("down")), 0.5, nil)
	assert.Equal(t, b, failing.Apply(ctx, b, "m", "r"))

	garbage := intelligence.NewSemanticEvaluator(llmtest.Reply("not json"), 0.5, nil)
	_, err := garbage.Evaluate(ctx, "m", "r")
	assert.Error(t, err)
}

func TestClassifyMemoryType(t *testing.T) {
	assert.Equal(t, "important", intelligence.ClassifyMemoryType(0.81, intent.Greeting, nil))
	assert.Equal(t, "factual", intelligence.ClassifyMemoryType(0.5, intent.TechnicalHelp, nil))
	assert.Equal(t, "casual", intelligence.ClassifyMemoryType(0.5, intent.Greeting, nil))
	assert.Equal(t, "insight", intelligence.ClassifyMemoryType(0.5, intent.Greeting, &intelligence.SemanticResult{MemoryType: "insight"}))
	assert.Equal(t, "important", intelligence.ClassifyMemoryType(0.9, intent.Greeting, &intelligence.SemanticResult{MemoryType: "insight"}))
}

func TestTags(t *testing.T) {
	assert.Equal(t,
		[]string{"intent_omega", "emotion_joy", "high_importance", "memory_type_important", "omega_command"},
		intelligence.Tags(intent.Omega, "joy", 0.9, "important"))
	assert.Equal(t,
		[]string{"intent_question", "medium_importance", "memory_type_factual"},
		intelligence.Tags(intent.Question, "", 0.7, "factual"))
	assert.Equal(t,
		[]string{"intent_greeting", "emotion_curiosity", "low_importance", "memory_type_casual"},
		intelligence.Tags(intent.Greeting, "curiosity", 0.6, "casual"))
}
