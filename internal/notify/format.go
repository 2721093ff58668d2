package notify

import (
	"fmt"
	"strings"
	"time"

	"vigil/pkg/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// FormatAlert renders a trade alert as a Telegram HTML message: direction
// banner, symbol, timeframe, score, price levels, per-timeframe RSI block,
// ordered reasons and timestamp. annotation, when non-empty, is appended as
// a calendar warning line.
func FormatAlert(alert model.AlertDecision, annotation string) string {
	emoji := "🟢"
	if alert.Direction == model.Short {
		emoji = "🔴"
	}

	var gainPct float64
	if alert.Entry > 0 {
		if alert.Direction == model.Long {
			gainPct = (alert.Target - alert.Entry) / alert.Entry * 100
		} else {
			gainPct = (alert.Entry - alert.Target) / alert.Entry * 100
		}
	}
	stopPct := 0.0
	if alert.Entry > 0 {
		stopPct = (alert.Stop - alert.Entry) / alert.Entry * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s SIGNAL</b> %s\n\n", emoji, alert.Direction, emoji)
	fmt.Fprintf(&b, "💎 <b>%s</b>\n", alert.Symbol)
	fmt.Fprintf(&b, "⏰ Timeframe: %s\n", alert.Timeframe)
	fmt.Fprintf(&b, "📊 Score: %d/10\n\n", alert.Score)

	b.WriteString("💰 <b>PRICE</b>\n")
	fmt.Fprintf(&b, "Entry: %s\n", formatPrice(alert.Entry))
	fmt.Fprintf(&b, "Stop: %s (%+.1f%%)\n", formatPrice(alert.Stop), stopPct)
	fmt.Fprintf(&b, "Target: %s (%+.1f%%)\n", formatPrice(alert.Target), gainPct)
	fmt.Fprintf(&b, "R/R: 1:%.2f\n\n", alert.RiskReward)

	b.WriteString("📈 <b>RSI</b>\n")
	if alert.RSIShort > 0 {
		fmt.Fprintf(&b, "short: %.1f\n", alert.RSIShort)
	}
	fmt.Fprintf(&b, "%s: %.1f\n", alert.Timeframe, alert.RSIMedium)
	if alert.RSILong > 0 {
		fmt.Fprintf(&b, "long: %.1f\n", alert.RSILong)
	}

	b.WriteString("\n✅ <b>REASONS</b>\n")
	for _, reason := range alert.Reasons {
		fmt.Fprintf(&b, "• %s\n", reason)
	}

	fmt.Fprintf(&b, "\n⏰ %s", alert.Timestamp.Format(timestampLayout))

	if annotation != "" {
		fmt.Fprintf(&b, "\n\n⚠️ <i>%s</i>", annotation)
	}

	return b.String()
}

// FormatStartup renders the informational message sent once at process start.
func FormatStartup(symbols int, interval time.Duration, now time.Time) string {
	return fmt.Sprintf(
		"🤖 <b>SIGNAL SCANNER STARTED</b>\n\n"+
			"✅ Watching %d symbols 24/7\n"+
			"⏰ Scan every %s\n"+
			"🔔 Alerts for every valid setup\n\n"+
			"📅 %s",
		symbols, interval, now.Format(timestampLayout))
}

// FormatError renders an unexpected-failure notification.
func FormatError(message string, now time.Time) string {
	return fmt.Sprintf(
		"❌ <b>SCANNER ERROR</b>\n\n%s\n\n⏰ %s",
		message, now.Format(timestampLayout))
}

// formatPrice trims trailing zeros so sub-cent alt pairs stay readable while
// large-cap prices do not drown in decimals.
func formatPrice(p float64) string {
	s := fmt.Sprintf("%.8f", p)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
