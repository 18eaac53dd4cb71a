package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Shift directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Alert is raised when a symbol's composite sentiment moves by more than
// the configured threshold between two polls.
type Alert struct {
	Symbol    string    `json:"symbol"`
	Previous  float64   `json:"previous"`
	Current   float64   `json:"current"`
	Delta     float64   `json:"delta"`
	Direction string    `json:"direction"`
	Threshold float64   `json:"threshold"`
	At        time.Time `json:"at"`
}

func newAlert(symbol string, prev, curr, threshold float64, at time.Time) Alert {
	a := Alert{
		Symbol:    symbol,
		Previous:  prev,
		Current:   curr,
		Delta:     curr - prev,
		Direction: DirectionUp,
		Threshold: threshold,
		At:        at,
	}
	if a.Delta < 0 {
		a.Direction = DirectionDown
	}
	return a
}

// DedupKey identifies the alert for cooldown purposes.
func (a Alert) DedupKey() string {
	return fmt.Sprintf("sentiment_shift:%s:%s", strings.ToLower(a.Symbol), a.Direction)
}

// Message renders the alert as an HTML chat message.
func (a Alert) Message() string {
	icon := "📈"
	if a.Direction == DirectionDown {
		icon = "📉"
	}
	return fmt.Sprintf("%s <b>%s SENTIMENT SHIFT</b>\n\n"+
		"Previous: %s (%s)\n"+
		"Current:  %s (%s)\n"+
		"Change:   %+.2f (threshold %.2f)",
		icon, strings.ToUpper(a.Symbol),
		formatScore(a.Previous), moodLabel(a.Previous),
		formatScore(a.Current), moodLabel(a.Current),
		a.Delta, a.Threshold)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

func moodLabel(v float64) string {
	switch {
	case v <= -0.5:
		return "very bearish"
	case v < -0.1:
		return "bearish"
	case v <= 0.1:
		return "neutral"
	case v < 0.5:
		return "bullish"
	default:
		return "very bullish"
	}
}
