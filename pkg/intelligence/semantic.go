package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/llm"
)

// DefaultSemanticWeight is the weight of the semantic score in Combined.
const DefaultSemanticWeight = 0.3

// SemanticResult is the LLM's analysis of an exchange.
type SemanticResult struct {
	MemoryType           string   `json:"memory_type"`
	EmotionalIntensity   float64  `json:"emotional_intensity"`
	PersonalSignificance float64  `json:"personal_significance"`
	NoveltyScore         float64  `json:"novelty_score"`
	RelationshipImpact   float64  `json:"relationship_impact"`
	KeyThemes            []string `json:"key_themes"`
	ShouldRemember       bool     `json:"should_remember"`
	Reason               string   `json:"reason"`
}

var significantTypes = map[string]bool{
	"identity_event": true,
	"emotional_bond": true,
	"insight":        true,
}

// Score folds the analysis into [0, 1].
func (r *SemanticResult) Score() float64 {
	if r == nil {
		return 0
	}
	s := r.PersonalSignificance*0.3 +
		r.EmotionalIntensity*0.25 +
		r.RelationshipImpact*0.2 +
		r.NoveltyScore*0.15
	if significantTypes[r.MemoryType] {
		s += 0.2
	}
	if r.ShouldRemember {
		s += 0.1
	}
	return clamp(s, 0, 1)
}

const semanticSystemPrompt = "Sen bir konuşma analiz uzmanısın. Verilen konuşmayı analiz et ve yalnızca istenen JSON nesnesini döndür."

const semanticTemplate = `Aşağıdaki konuşmayı analiz et:

Kullanıcı: %s
AI: %s

JSON alanları:
{
  "memory_type": "identity_event|factual|reflection|insight|casual|emotional_bond|command",
  "emotional_intensity": 0.0-1.0,
  "personal_significance": 0.0-1.0,
  "novelty_score": 0.0-1.0,
  "relationship_impact": 0.0-1.0,
  "key_themes": ["tema"],
  "should_remember": true/false,
  "reason": "kısa gerekçe"
}`

// SemanticEvaluator asks an LLM how memorable an exchange is.
//
// It is a separate, optional collaborator: the arithmetic Scorer works
// without it and its result is never mixed into the arithmetic fields.
type SemanticEvaluator struct {
	provider llm.Provider
	weight   float64
	logger   *zap.Logger
}

// NewSemanticEvaluator creates an evaluator. weight <= 0 means
// DefaultSemanticWeight.
func NewSemanticEvaluator(provider llm.Provider, weight float64, logger *zap.Logger) *SemanticEvaluator {
	if weight <= 0 || weight > 1 {
		weight = DefaultSemanticWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticEvaluator{provider: provider, weight: weight, logger: logger}
}

// Weight returns the evaluator's blend weight.
func (e *SemanticEvaluator) Weight() float64 {
	return e.weight
}

// Evaluate analyses the exchange.
//
// Parameters:
//   - ctx: Context for cancellation
//   - message: The user message
//   - response: The assistant response
//
// Returns the analysis, or an error when the provider fails or the answer
// is not valid JSON.
func (e *SemanticEvaluator) Evaluate(ctx context.Context, message, response string) (*SemanticResult, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: semanticSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(semanticTemplate, message, response)},
	}

	raw, err := e.provider.GenerateWithMessages(ctx, messages,
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(500),
		llm.WithResponseFormat(llm.FormatJSONObject),
	)
	if err != nil {
		return nil, fmt.Errorf("semantic evaluation: %w", err)
	}

	var result SemanticResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("semantic evaluation: parse: %w", err)
	}
	result.MemoryType = normalizeMemoryType(result.MemoryType)
	result.EmotionalIntensity = clamp(result.EmotionalIntensity, 0, 1)
	result.PersonalSignificance = clamp(result.PersonalSignificance, 0, 1)
	result.NoveltyScore = clamp(result.NoveltyScore, 0, 1)
	result.RelationshipImpact = clamp(result.RelationshipImpact, 0, 1)

	e.logger.Debug("semantic evaluation",
		zap.String("memory_type", result.MemoryType),
		zap.Float64("score", result.Score()),
	)
	return &result, nil
}

// Apply evaluates the exchange and attaches the result to b. On failure b
// is returned unchanged and the error is logged.
func (e *SemanticEvaluator) Apply(ctx context.Context, b Breakdown, message, response string) Breakdown {
	result, err := e.Evaluate(ctx, message, response)
	if err != nil {
		e.logger.Warn("semantic evaluation failed", zap.Error(err))
		return b
	}
	b.Semantic = result
	b.SemanticWeight = e.weight
	if result.ShouldRemember && result.Reason != "" {
		b.Reasons = append(append([]string(nil), b.Reasons...), "semantik: "+result.Reason)
	}
	return b
}

func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
