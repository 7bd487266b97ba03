package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
)

func TestClassify_Rules(t *testing.T) {
	provider := llmtest.Reply("opinion")
	c := intent.NewClassifier(provider)

	tests := []struct {
		message string
		want    intent.Label
	}{
		{"0427", intent.Omega},
		{"Merhaba, 0427 protokolünü başlat lütfen?", intent.Omega},
		{"Merhaba, nasılsın?", intent.Greeting},
		{"Selam!", intent.Greeting},
		{"Hoşça kal, yarın görüşürüz", intent.Farewell},
		{"İyi geceler", intent.Farewell},
		{"Bu nasıl çalışıyor", intent.Question},
		{"Yarın hava güzel olacak mı", intent.Question},
		{"Bana bir şiir yazar mısın", intent.Request},
		{"Raporu hemen göster", intent.Command},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.message, nil))
		})
	}
	assert.Zero(t, provider.CallCount())
}

func TestClassify_OmegaTokenMustStandAlone(t *testing.T) {
	assert.True(t, intent.IsOmega("kod: 0427."))
	assert.False(t, intent.IsOmega("104275"))
	assert.False(t, intent.IsOmega("a0427"))
}

func TestClassify_EmptyMessage(t *testing.T) {
	provider := llmtest.Reply("question")
	c := intent.NewClassifier(provider)

	assert.Equal(t, intent.Unknown, c.Classify(context.Background(), "   ", nil))
	assert.Zero(t, provider.CallCount())
}

func TestClassify_Fallback(t *testing.T) {
	provider := &llmtest.Mock{}
	provider.On("GenerateWithMessages", mock.Anything, mock.Anything, mock.MatchedBy(func(o *llm.GenerateOptions) bool {
		return o.Temperature == 0 && o.MaxTokens == 20
	})).Return(" Philosophical.\n", nil).Once()

	c := intent.NewClassifier(provider)
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "eski-1"},
		{Role: llm.RoleAssistant, Content: "eski-2"},
		{Role: llm.RoleUser, Content: "son-1"},
		{Role: llm.RoleAssistant, Content: "son-2"},
		{Role: llm.RoleUser, Content: "son-3"},
		{Role: llm.RoleAssistant, Content: "son-4"},
	}

	got := c.Classify(context.Background(), "Varoluşun anlamı üzerine düşünüyorum", history)
	assert.Equal(t, intent.Philosophical, got)
	provider.AssertExpectations(t)

	messages := provider.Calls[0].Arguments.Get(1).([]llm.Message)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "son-1")
	assert.Contains(t, messages[1].Content, "son-4")
	assert.NotContains(t, messages[1].Content, "eski-")
}

func TestClassify_FallbackInvalidOrError(t *testing.T) {
	ctx := context.Background()
	msg := "Varoluşun anlamı üzerine düşünüyorum"

	assert.Equal(t, intent.Unknown, intent.NewClassifier(llmtest.Reply("chat")).Classify(ctx, msg, nil))
	assert.Equal(t, intent.Unknown, intent.NewClassifier(llmtest.Fail(errors.New("down"))).Classify(ctx, msg, nil))
	assert.Equal(t, intent.Unknown, intent.NewClassifier(nil).Classify(ctx, msg, nil))
}

func TestParse(t *testing.T) {
	l, ok := intent.Parse("\"technical-help\"")
	assert.True(t, ok)
	assert.Equal(t, intent.TechnicalHelp, l)

	l, ok = intent.Parse("")
	assert.False(t, ok)
	assert.Equal(t, intent.Unknown, l)

	assert.Len(t, intent.All(), 22)
}
