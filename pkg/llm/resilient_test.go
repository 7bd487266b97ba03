package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/llm/llmtest"
	"github.com/oceanbase/vira-go/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quickGuard() resilience.Guard {
	return resilience.Guard{Policy: resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
	}}
}

func TestResilientProvider_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	inner := &llmtest.Func{Fn: func(ctx context.Context, _ []llm.Message, _ *llm.GenerateOptions) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &llm.StatusError{Code: http.StatusServiceUnavailable, Err: errors.New("busy")}
		}
		return "tamam", nil
	}}

	p := llm.NewResilientProvider(inner, quickGuard())
	out, err := p.Generate(context.Background(), "selam")
	require.NoError(t, err)
	assert.Equal(t, "tamam", out)
	assert.Equal(t, 3, attempts)
}

func TestResilientProvider_DoesNotRetryClientErrors(t *testing.T) {
	inner := llmtest.Fail(&llm.StatusError{Code: http.StatusUnauthorized, Err: errors.New("bad key")})

	p := llm.NewResilientProvider(inner, quickGuard())
	_, err := p.Generate(context.Background(), "selam")
	require.Error(t, err)
	assert.Equal(t, 1, inner.CallCount())
}

func TestResilientProvider_PassesOptionsThrough(t *testing.T) {
	m := &llmtest.Mock{}
	m.On("GenerateWithMessages", mock.Anything, mock.Anything, mock.MatchedBy(func(o *llm.GenerateOptions) bool {
		return o.Temperature == 0.3 && o.Format == llm.FormatJSONObject
	})).Return("{}", nil).Once()

	p := llm.NewResilientProvider(m, quickGuard())
	out, err := p.GenerateWithMessages(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "x"}},
		llm.WithTemperature(0.3), llm.WithResponseFormat(llm.FormatJSONObject))
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	m.AssertExpectations(t)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &llm.StatusError{Code: http.StatusTooManyRequests, Err: errors.New("x")}, true},
		{"server error", &llm.StatusError{Code: http.StatusBadGateway, Err: errors.New("x")}, true},
		{"bad request", &llm.StatusError{Code: http.StatusBadRequest, Err: errors.New("x")}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.IsTransient(tt.err))
		})
	}
}

func TestApplyGenerateOptions_Defaults(t *testing.T) {
	opts := llm.ApplyGenerateOptions(nil)
	assert.Equal(t, 0.7, opts.Temperature)
	assert.Equal(t, 1000, opts.MaxTokens)
	assert.Equal(t, 1.0, opts.TopP)
	assert.Equal(t, llm.FormatText, opts.Format)
}
