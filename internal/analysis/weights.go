package analysis

import (
	"fmt"
	"math"
	"sort"
)

const weightTolerance = 1e-9

// Weights maps factor names to their share of a composite score.
type Weights map[string]float64

// Validate checks that w covers exactly the given factors with non-negative
// weights summing to 1.0.
func (w Weights) Validate(name string, factors ...string) error {
	if len(w) != len(factors) {
		return &ConfigError{Field: name, Reason: fmt.Sprintf("want factors %v, got %v", sorted(factors), w.Keys())}
	}
	for _, f := range factors {
		v, ok := w[f]
		if !ok {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("missing factor %q", f)}
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigError{Field: name, Reason: fmt.Sprintf("factor %q has invalid weight %v", f, v)}
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return &ConfigError{Field: name, Reason: fmt.Sprintf("weights sum to %.6f, want 1.0", sum)}
	}
	return nil
}

// Keys returns factor names in sorted order.
func (w Weights) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum adds the weights in key order so the result is reproducible.
func (w Weights) Sum() float64 {
	var sum float64
	for _, k := range w.Keys() {
		sum += w[k]
	}
	return sum
}

// Score computes sum(factor*weight) in key order, clamped to [0, 100].
// Factors absent from the map count as 0.
func (w Weights) Score(factors map[string]float64) float64 {
	var total float64
	for _, k := range w.Keys() {
		total += factors[k] * w[k]
	}
	return Clamp(total, 0, 100)
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// Subset keeps only keys and rescales them to sum to 1. ok is false when the
// kept weights total zero.
func (w Weights) Subset(keys ...string) (Weights, bool) {
	out := make(Weights, len(keys))
	for _, k := range keys {
		if v, present := w[k]; present {
			out[k] = v
		}
	}
	sum := out.Sum()
	if sum == 0 {
		return nil, false
	}
	for k, v := range out {
		out[k] = v / sum
	}
	return out, true
}
