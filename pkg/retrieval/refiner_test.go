package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
	"github.com/oceanbase/vira-go/pkg/retrieval"
)

func TestContextRefiner_Refine(t *testing.T) {
	gen := llmtest.Reply("  Kullanıcının kedisi Minnoş balık sever.  ")
	r := retrieval.NewContextRefiner(gen, nil)

	got := r.Refine(context.Background(), "kedim ne sever?", "Kullanıcı: kedim minnoş balık sever")
	assert.Equal(t, "Kullanıcının kedisi Minnoş balık sever.", got)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[1].Content, "kedim ne sever?")
	assert.Contains(t, calls[0].Messages[1].Content, "kedim minnoş balık sever")
	assert.InDelta(t, 0.1, calls[0].Options.Temperature, 1e-9)
	assert.Equal(t, 150, calls[0].Options.MaxTokens)
}

func TestContextRefiner_Degrades(t *testing.T) {
	tests := []struct {
		name    string
		gen     *llmtest.Func
		context string
		calls   int
	}{
		{"empty context", llmtest.Reply("x"), "  ", 0},
		{"nothing relevant", llmtest.Reply(`""`), "anı", 1},
		{"provider error", llmtest.Fail(errors.New("down")), "anı", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := retrieval.NewContextRefiner(tt.gen, nil)
			assert.Equal(t, "", r.Refine(context.Background(), "mesaj", tt.context))
			assert.Equal(t, tt.calls, tt.gen.CallCount())
		})
	}
}
