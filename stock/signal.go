package stock

import (
	"fmt"
	"strings"

	"github.com/onnwee/herald/chat"
)

// avgVolume is the assumed average daily volume the volume check compares against.
const avgVolume = 1_000_000

// Signal is the outcome of Analyze.
type Signal struct {
	Action     string // "🟢 BUY", "🔴 SELL" or "🟡 HOLD"
	Confidence string // HIGH, MEDIUM or LOW
	Reasons    []string
}

// Analyze scores momentum, volume and the position within the daily range.
func Analyze(q Quote) Signal {
	var (
		reasons          []string
		bullish, bearish int
	)

	switch pct := q.ChangePercent; {
	case pct > 2:
		bullish += 4
		reasons = append(reasons, fmt.Sprintf("🚀 Strong upward momentum (+%.2f%%)", pct))
	case pct > 0.5:
		bullish += 2
		reasons = append(reasons, fmt.Sprintf("📈 Positive momentum (+%.2f%%)", pct))
	case pct < -2:
		bearish += 4
		reasons = append(reasons, fmt.Sprintf("📉 Strong downward momentum (%.2f%%)", pct))
	case pct < -0.5:
		bearish += 2
		reasons = append(reasons, fmt.Sprintf("🔻 Negative momentum (%.2f%%)", pct))
	default:
		reasons = append(reasons, fmt.Sprintf("➡️ Sideways movement (%.2f%%)", pct))
	}

	vol := millions(q.Volume)
	switch {
	case q.Volume > avgVolume*3/2:
		bullish += 3
		reasons = append(reasons, fmt.Sprintf("📊 High volume (%sM shares)", vol))
	case q.Volume < avgVolume/2:
		bearish++
		reasons = append(reasons, fmt.Sprintf("📊 Low volume (%sM shares)", vol))
	default:
		reasons = append(reasons, fmt.Sprintf("📊 Normal volume (%sM shares)", vol))
	}

	pos := RangePosition(q)
	switch {
	case pos > 0.8:
		bearish += 3
		reasons = append(reasons, fmt.Sprintf("⚠️ Trading near daily high (%.0f%% of range)", pos*100))
	case pos < 0.2:
		bullish += 3
		reasons = append(reasons, fmt.Sprintf("💡 Trading near daily low (%.0f%% of range)", pos*100))
	default:
		reasons = append(reasons, fmt.Sprintf("➡️ Mid-range trading (%.0f%% of range)", pos*100))
	}

	s := Signal{Reasons: reasons}
	switch {
	case bullish > bearish+2:
		s.Action, s.Confidence = "🟢 BUY", confidence(bullish)
	case bearish > bullish+2:
		s.Action, s.Confidence = "🔴 SELL", confidence(bearish)
	default:
		s.Action, s.Confidence = "🟡 HOLD", "LOW"
		s.Reasons = append(s.Reasons, "📊 Mixed signals - consider waiting for clearer direction")
	}
	return s
}

func confidence(points int) string {
	if points > 6 {
		return "HIGH"
	}
	return "MEDIUM"
}

// RangePosition is where the price sits in the day's low..high range, 0..1.
// A zero-width range counts as mid-range.
func RangePosition(q Quote) float64 {
	r := q.High - q.Low
	if r <= 0 {
		return 0.5
	}
	return (q.Price - q.Low) / r
}

func millions(v int64) string { return fmt.Sprintf("%.1f", float64(v)/1_000_000) }

func signed(v float64, suffix string) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%s", v, suffix)
	}
	return fmt.Sprintf("%.2f%s", v, suffix)
}

// Format renders the quote and signal as a chat reply.
func Format(q Quote, s Signal) string {
	trend := "📈"
	if q.Change < 0 {
		trend = "📉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", chat.Bold("$"+q.Symbol), trend)
	fmt.Fprintf(&b, "💰 %s $%.2f (%s, %s)\n", chat.Bold("Price:"), q.Price, signed(q.Change, ""), signed(q.ChangePercent, "%"))
	fmt.Fprintf(&b, "📊 %s $%.2f - $%.2f\n", chat.Bold("Today's Range:"), q.Low, q.High)
	fmt.Fprintf(&b, "📈 %s %sM shares\n\n", chat.Bold("Volume:"), millions(q.Volume))
	fmt.Fprintf(&b, "%s (%s confidence)", s.Action, s.Confidence)
	for _, r := range s.Reasons {
		b.WriteString("\n• ")
		b.WriteString(r)
	}
	return b.String()
}
