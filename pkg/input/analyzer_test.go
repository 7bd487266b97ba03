package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/vira-go/pkg/input"
)

func TestAnalyze_Greeting(t *testing.T) {
	a := input.Analyze("  Merhaba,   nasılsın? ")

	assert.Equal(t, "Merhaba, nasılsın?", a.Cleaned)
	assert.Equal(t, 18, a.Length)
	assert.Equal(t, input.Curiosity, a.Emotion)
	assert.False(t, a.Emotion.IsHighArousal())
	assert.True(t, a.ContainsQuestion)
	assert.Zero(t, a.Sentiment)
	assert.Empty(t, a.Entities)
}

func TestAnalyze_Empty(t *testing.T) {
	a := input.Analyze("   ")

	assert.Equal(t, input.Unclear, a.Emotion)
	assert.Zero(t, a.EmotionConfidence)
	assert.Zero(t, a.Length)
	assert.InDelta(t, 0.5, a.Formality, 1e-9)
}

func TestAnalyze_Emotion(t *testing.T) {
	tests := []struct {
		message string
		emotion input.Emotion
		minConf float64
	}{
		{"Buna çok sinir oldum, nefret ediyorum!", input.Anger, 0.8},
		{"Bugün çok mutluyum", input.Joy, 0.6},
		{"Yarın için umarım her şey yolunda gider", input.Hope, 0.6},
		{"Tamam", input.Neutral, 0.6},
		{"Bugün hava bulutlu", input.Calm, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			a := input.Analyze(tt.message)
			assert.Equal(t, tt.emotion, a.Emotion)
			assert.GreaterOrEqual(t, a.EmotionConfidence, tt.minConf)
			assert.LessOrEqual(t, a.EmotionConfidence, 1.0)
		})
	}
}

func TestAnalyze_Sentiment(t *testing.T) {
	assert.InDelta(t, 0.5, input.Analyze("harika").Sentiment, 1e-9)
	assert.InDelta(t, 0.75, input.Analyze("harika, mükemmel, süper").Sentiment, 1e-9)
	assert.Less(t, input.Analyze("berbat ve kötü bir gün, üzgün").Sentiment, -0.7)
}

func TestAnalyze_Formality(t *testing.T) {
	assert.Greater(t, input.Analyze("Sayın yetkili, rica ederim yardımcı olur musunuz?").Formality, 0.7)
	assert.Less(t, input.Analyze("slm kanka naber").Formality, 0.3)
}

func TestAnalyze_Entities(t *testing.T) {
	a := input.Analyze("Dün Ankara'da Ahmet ile 0427 hakkında konuştuk. Sonra eve döndüm.")
	assert.Equal(t, []string{"Ankara'da", "Ahmet", "0427"}, a.Entities)
}
