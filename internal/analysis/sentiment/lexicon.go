package sentiment

import (
	"math"
	"strings"
	"unicode"
)

var positiveTerms = map[string]struct{}{
	"bullish": {}, "moon": {}, "mooning": {}, "pump": {}, "pumping": {}, "gem": {}, "buy": {},
	"buying": {}, "long": {}, "breakout": {}, "rally": {}, "ath": {}, "undervalued": {},
	"strong": {}, "great": {}, "good": {}, "love": {}, "amazing": {}, "excited": {},
	"partnership": {}, "launch": {}, "adoption": {}, "growth": {}, "upgrade": {}, "win": {},
	"winning": {}, "profit": {}, "gains": {}, "legit": {}, "solid": {}, "hodl": {}, "accumulate": {},
}

var negativeTerms = map[string]struct{}{
	"bearish": {}, "dump": {}, "dumping": {}, "scam": {}, "rug": {}, "rugpull": {}, "sell": {},
	"selling": {}, "short": {}, "crash": {}, "crashing": {}, "overvalued": {}, "weak": {},
	"bad": {}, "hate": {}, "terrible": {}, "fear": {}, "hack": {}, "hacked": {}, "exploit": {},
	"fud": {}, "loss": {}, "losses": {}, "dead": {}, "ponzi": {}, "fraud": {}, "avoid": {},
	"delist": {}, "delisted": {}, "rekt": {},
}

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "dont": {}, "don't": {}, "isnt": {}, "isn't": {}, "aint": {},
}

// Polarity scores text on [-1, 1] from lexicon hits. A negator flips the
// polarity of the next term. Text without hits is neutral.
func Polarity(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	var pos, neg int
	negate := false
	for _, w := range words {
		if _, ok := negators[w]; ok {
			negate = true
			continue
		}
		_, isPos := positiveTerms[w]
		_, isNeg := negativeTerms[w]
		switch {
		case isPos && !negate, isNeg && negate:
			pos++
		case isNeg && !negate, isPos && negate:
			neg++
		}
		negate = false
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// weighted is an engagement-weighted polarity accumulator.
type weighted struct {
	sum, weight float64
	n           int
}

// add counts one post; engagement raises its influence logarithmically.
func (w *weighted) add(text string, engagement int) {
	if engagement < 0 {
		engagement = 0
	}
	weight := 1 + math.Log1p(float64(engagement))
	w.sum += Polarity(text) * weight
	w.weight += weight
	w.n++
}

// mean returns the weighted polarity, ok false when nothing was added.
func (w weighted) mean() (float64, bool) {
	if w.n == 0 || w.weight == 0 {
		return 0, false
	}
	return w.sum / w.weight, true
}
