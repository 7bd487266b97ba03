package intelligence

import (
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/personality"
)

// DefaultPromotionThreshold is the base promotion threshold.
const DefaultPromotionThreshold = 0.45

// Threshold bounds.
const (
	MinThreshold     = 0.2
	MaxThreshold     = 0.8
	commandThreshold = 0.2
	highTrait        = 0.8
)

// PromotionPolicy decides long-term promotion.
type PromotionPolicy struct {
	// Base is the threshold before personality and intent adjustments.
	Base float64
}

// NewPromotionPolicy creates a policy; base <= 0 means DefaultPromotionThreshold.
func NewPromotionPolicy(base float64) PromotionPolicy {
	if base <= 0 {
		base = DefaultPromotionThreshold
	}
	return PromotionPolicy{Base: base}
}

// Threshold returns the threshold for a turn: high empathy and high
// curiosity lower it by 0.1 each, high assertiveness raises it by 0.05,
// omega and command intents force it to 0.2. The result is clamped to
// [0.2, 0.8].
func (p PromotionPolicy) Threshold(v personality.Vector, label intent.Label) float64 {
	t := p.Base
	if v[personality.Empathy] > highTrait {
		t -= 0.1
	}
	if v[personality.Curiosity] > highTrait {
		t -= 0.1
	}
	if v[personality.Assertiveness] > highTrait {
		t += 0.05
	}
	if label == intent.Omega || label == intent.Command {
		t = commandThreshold
	}
	return clamp(t, MinThreshold, MaxThreshold)
}

// ShouldPromote reports whether score reaches threshold.
func ShouldPromote(score, threshold float64) bool {
	return score >= threshold
}
