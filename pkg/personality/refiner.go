package personality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/llm"
)

// DefaultLearningRate is the step size of LLM-driven refinement.
const DefaultLearningRate = 0.01

// nudgeStep is the increment applied by RefineSync.
const nudgeStep = 0.02

// Refiner evolves a user's personality vector.
type Refiner interface {
	// Refine analyses the exchange, moves the stored vector toward the
	// analysis and saves it. It returns the new vector.
	Refine(ctx context.Context, userID, message, response string) (Vector, error)

	// RefineSync applies keyword nudges to current and returns the result.
	// It never blocks and never touches the store.
	RefineSync(current Vector, message string) Vector
}

// nudges maps message keywords to the trait they raise.
var nudges = []struct {
	trait    string
	keywords []string
}{
	{Empathy, []string{"yardım", "teşekkür"}},
	{Curiosity, []string{"neden", "nasıl"}},
	{Assertiveness, []string{"hayır", "katılmıyorum"}},
	{Humour, []string{"espri", "komik"}},
	{Scepticism, []string{"emin değilim", "şüphe"}},
}

const analystPrompt = "Sen bir kişilik analistisin. Verilen yanıtı kişilik boyutları açısından değerlendir ve yalnızca JSON döndür."

const analysisTemplate = `Kullanıcının mesajı: %s

Vira'nın cevabı: %s

Yanıtı aşağıdaki boyutlarda 0.0 ile 1.0 arasında puanla:
- empathy: kullanıcının duygularını anlama
- curiosity: derinleşme ve öğrenme isteği
- assertiveness: kendinden emin ve doğrudan olma
- humour: esprili unsurlar
- scepticism: eleştirel düşünce ve sorgulama

Yanıt biçimi: {"empathy": 0.0, "curiosity": 0.0, "assertiveness": 0.0, "humour": 0.0, "scepticism": 0.0}`

// LLMRefiner refines vectors with an LLM trait analysis.
//
// Every read-modify-write of a user's vector runs under that user's lock, so
// a nudge saved while an analysis is in flight is kept.
type LLMRefiner struct {
	store        Store
	provider     llm.Provider
	learningRate float64
	logger       *zap.Logger

	locks sync.Map // userID -> *sync.Mutex
}

func (r *LLMRefiner) lock(userID string) func() {
	m, _ := r.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RefinerOption configures an LLMRefiner.
type RefinerOption func(*LLMRefiner)

// WithLearningRate overrides DefaultLearningRate.
func WithLearningRate(rate float64) RefinerOption {
	return func(r *LLMRefiner) {
		r.learningRate = rate
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RefinerOption {
	return func(r *LLMRefiner) {
		r.logger = logger
	}
}

// NewLLMRefiner creates a refiner backed by store and provider.
func NewLLMRefiner(store Store, provider llm.Provider, opts ...RefinerOption) *LLMRefiner {
	r := &LLMRefiner{
		store:        store,
		provider:     provider,
		learningRate: DefaultLearningRate,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refine implements Refiner. The analysis runs first; the delta is then
// applied to the vector stored at that moment. On analysis failure the stored
// vector is left unchanged and returned together with the error.
func (r *LLMRefiner) Refine(ctx context.Context, userID, message, response string) (Vector, error) {
	analysis, err := r.analyse(ctx, message, response)
	if err != nil {
		r.logger.Warn("personality analysis failed", zap.String("user_id", userID), zap.Error(err))
		current, getErr := r.store.Get(ctx, userID)
		if getErr != nil {
			return nil, fmt.Errorf("Refine: %w", getErr)
		}
		return current, fmt.Errorf("Refine: %w", err)
	}

	unlock := r.lock(userID)
	defer unlock()

	current, err := r.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Refine: %w", err)
	}

	delta := make(Vector, len(current))
	next := current.Copy()
	for trait, old := range current {
		target, ok := analysis[trait]
		if !ok {
			continue
		}
		delta[trait] = (target - old) * r.learningRate
		next[trait] = clamp01(old + delta[trait])
	}

	change := Change{Old: current, New: next, Delta: delta, Reason: "response analysis: " + truncate(message, 50)}
	if err := r.store.Save(ctx, userID, change); err != nil {
		return current, fmt.Errorf("Refine: %w", err)
	}

	r.logger.Debug("personality refined", zap.String("user_id", userID))
	return next, nil
}

// RefineSync implements Refiner.
func (r *LLMRefiner) RefineSync(current Vector, message string) Vector {
	return KeywordNudge(current, message)
}

// Nudge loads the stored vector, applies RefineSync and saves the result
// when anything changed.
func (r *LLMRefiner) Nudge(ctx context.Context, userID, message string) (Vector, error) {
	unlock := r.lock(userID)
	defer unlock()

	current, err := r.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Nudge: %w", err)
	}

	next := r.RefineSync(current, message)
	delta := make(Vector)
	for trait, v := range next {
		if d := v - current[trait]; d != 0 {
			delta[trait] = d
		}
	}
	if len(delta) == 0 {
		return current, nil
	}

	change := Change{Old: current, New: next, Delta: delta, Reason: "keyword nudge: " + truncate(message, 50)}
	if err := r.store.Save(ctx, userID, change); err != nil {
		return current, fmt.Errorf("Nudge: %w", err)
	}
	return next, nil
}

// KeywordNudge raises a trait by 0.02 (capped at 1) for each keyword group
// found in message. current is not modified.
func KeywordNudge(current Vector, message string) Vector {
	next := current.Copy()
	lower := strings.ToLower(message)
	for _, n := range nudges {
		for _, kw := range n.keywords {
			if strings.Contains(lower, kw) {
				base, ok := next[n.trait]
				if !ok {
					base = 0.5
				}
				next[n.trait] = clamp01(base + nudgeStep)
				break
			}
		}
	}
	return next
}

func (r *LLMRefiner) analyse(ctx context.Context, message, response string) (Vector, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: analystPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(analysisTemplate, message, response)},
	}

	raw, err := r.provider.GenerateWithMessages(ctx, messages,
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(150),
		llm.WithResponseFormat(llm.FormatJSONObject),
	)
	if err != nil {
		return nil, err
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(extractJSON(raw)), &scores); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}

	analysis := make(Vector, len(DefaultTraits))
	for _, trait := range DefaultTraits {
		v, ok := scores[trait]
		if !ok {
			v = 0.5
		}
		analysis[trait] = clamp01(v)
	}
	return analysis, nil
}

// extractJSON returns the outermost {...} of raw, tolerating code fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
