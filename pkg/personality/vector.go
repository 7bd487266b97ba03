// Package personality holds the per-user personality vector and the refiner
// that evolves it from interactions.
package personality

import "sort"

// Trait names of the default vector.
const (
	Empathy       = "empathy"
	Curiosity     = "curiosity"
	Assertiveness = "assertiveness"
	Humour        = "humour"
	Scepticism    = "scepticism"
)

// DefaultTraits lists the traits every stored vector carries.
var DefaultTraits = []string{Empathy, Curiosity, Assertiveness, Humour, Scepticism}

// DefaultBlendWeight is the weight of the dynamic vector in Merge.
const DefaultBlendWeight = 0.3

// Vector maps trait names to values in [0, 1].
type Vector map[string]float64

// Default returns the neutral vector (every default trait at 0.5).
func Default() Vector {
	v := make(Vector, len(DefaultTraits))
	for _, t := range DefaultTraits {
		v[t] = 0.5
	}
	return v
}

// Copy returns an independent copy of v.
func (v Vector) Copy() Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Get returns the trait value, or 0 when missing.
func (v Vector) Get(trait string) float64 {
	return v[trait]
}

// Traits returns trait names in sorted order.
func (v Vector) Traits() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clamp returns a copy of v with every value limited to [0, 1].
func (v Vector) Clamp() Vector {
	out := make(Vector, len(v))
	for k, val := range v {
		out[k] = clamp01(val)
	}
	return out
}

// Merge blends a dynamic vector into base:
//
//	merged[t] = base[t]*(1-w) + dynamic[t]*w
//
// Traits missing from dynamic keep the base value. An empty dynamic vector
// yields a copy of base. Traits only present in dynamic are ignored.
func Merge(base, dynamic Vector, w float64) Vector {
	merged := base.Copy()
	if len(dynamic) == 0 {
		return merged
	}
	for trait, b := range base {
		d, ok := dynamic[trait]
		if !ok {
			continue
		}
		merged[trait] = b*(1-w) + d*w
	}
	return merged
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
