package analysis

import "math"

// Score bands used for qualitative labels.
const (
	StrongScore = 70.0
	WeakScore   = 40.0
	// NeutralScore is the default for a factor whose input is undefined.
	NeutralScore = 50.0
)

// Labels attached to summaries.
const (
	LabelStrong      = "strong"
	LabelModerate    = "moderate"
	LabelWeak        = "weak"
	LabelUnavailable = "unavailable"
)

// LabelFor maps a 0-100 score onto a qualitative label.
func LabelFor(score float64) string {
	switch {
	case score >= StrongScore:
		return LabelStrong
	case score >= WeakScore:
		return LabelModerate
	default:
		return LabelWeak
	}
}

// Clamp bounds v to [lo, hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// LogScale maps v onto 0-100 on a log10 scale between lo and hi (both > 0).
func LogScale(v, lo, hi float64) float64 {
	if v <= lo {
		return 0
	}
	if v >= hi {
		return 100
	}
	return Clamp(100*(math.Log10(v)-math.Log10(lo))/(math.Log10(hi)-math.Log10(lo)), 0, 100)
}

// Ratio divides num by den. ok is false when the ratio is undefined.
func Ratio(num, den float64) (v float64, ok bool) {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return 0, false
	}
	return num / den, true
}

// OptionalRatio is Ratio returning nil when undefined.
func OptionalRatio(num, den float64) *float64 {
	v, ok := Ratio(num, den)
	if !ok {
		return nil
	}
	return &v
}

// Round2 rounds to two decimals for presentation fields.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
