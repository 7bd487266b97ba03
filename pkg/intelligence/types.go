// Package intelligence decides which exchanges are worth remembering.
//
// The Scorer computes a deterministic, explainable importance score. The
// PromotionPolicy turns it into a long-term promotion decision. An optional
// SemanticEvaluator asks an LLM for a second opinion that is reported and
// weighted separately.
package intelligence

import "github.com/oceanbase/vira-go/pkg/input"

// Input is everything the scorer looks at for one exchange.
type Input struct {
	UserID      string
	UserMessage string
	Response    string

	Emotion           input.Emotion
	EmotionConfidence float64
	Sentiment         float64

	// MemoryContents are the contents of the retrieved long-term memories.
	MemoryContents []string
}

// Breakdown is the explained importance of one exchange.
type Breakdown struct {
	Base    float64
	Keyword float64
	Emotion float64
	Length  float64
	Overlap float64

	// Total is min(1, Base+Keyword+Emotion+Length+Overlap).
	Total float64

	Reasons []string

	// Semantic is set only when a SemanticEvaluator ran successfully.
	Semantic *SemanticResult

	// SemanticWeight is the weight of Semantic in Combined.
	SemanticWeight float64
}

// Combined returns Total, or the weighted blend of Total and the semantic
// score when a semantic result is present.
func (b Breakdown) Combined() float64 {
	if b.Semantic == nil {
		return b.Total
	}
	w := b.SemanticWeight
	return clamp(b.Total*(1-w)+b.Semantic.Score()*w, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
