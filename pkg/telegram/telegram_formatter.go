package telegram

import (
	"fmt"
	"strings"
	"time"

	"position-monitor/pkg/utils"
)

// AlertType represents the type of alert
type AlertType string

const (
	TakeProfit  AlertType = "TAKE_PROFIT"
	StopLoss    AlertType = "STOP_LOSS"
	ManualClose AlertType = "MANUAL_CLOSE"
)

// ClosedPosition carries what the close message needs to render.
type ClosedPosition struct {
	ID           uint
	Symbol       string
	Direction    string
	Leverage     int
	Percent      int
	EntryPrice   float64
	TriggerPrice float64
	TargetPrice  float64
	PnL          float64
	ClosedAt     time.Time
}

// FormatPositionClosedForTelegram renders a close event as Telegram HTML.
func FormatPositionClosedForTelegram(alertType AlertType, p ClosedPosition) string {
	var builder strings.Builder

	var title, emoji string
	switch alertType {
	case TakeProfit:
		title = "Take Profit Triggered!"
		emoji = "🎯"
	case StopLoss:
		title = "Stop Loss Triggered!"
		emoji = "⚠️"
	case ManualClose:
		title = "Position Closed Manually"
		emoji = "✋"
	default:
		title = "Position Closed"
		emoji = "🔔"
	}

	pnlIcon := "🟢"
	if p.PnL < 0 {
		pnlIcon = "🔴"
	}

	builder.WriteString(fmt.Sprintf("%s <b>[%s] %s</b>\n", emoji, utils.EscapeHTML(p.Symbol), title))
	builder.WriteString(fmt.Sprintf("#%d %s x%d (%d%% balance)\n", p.ID, strings.ToUpper(p.Direction), p.Leverage, p.Percent))
	builder.WriteString(fmt.Sprintf("💵 Entry: %s\n", utils.FormatPrice(p.EntryPrice)))
	if p.TargetPrice > 0 {
		builder.WriteString(fmt.Sprintf("💰 Price: %s (target: %s)\n", utils.FormatPrice(p.TriggerPrice), utils.FormatPrice(p.TargetPrice)))
	} else {
		builder.WriteString(fmt.Sprintf("💰 Price: %s\n", utils.FormatPrice(p.TriggerPrice)))
	}
	builder.WriteString(fmt.Sprintf("%s PnL: %s\n", pnlIcon, utils.FormatPercentage(p.PnL)))
	builder.WriteString(fmt.Sprintf("<i>%s</i>\n", utils.PrettyDate(p.ClosedAt)))
	return builder.String()
}
