package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"position-monitor/internal/dto"
	"position-monitor/internal/model"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/utils"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handlePositions(ctx context.Context, c telebot.Context) error {
	positions, err := t.service.PositionService.ListPositions(ctx, true)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to list positions", logger.ErrorField(err))
		_, err := t.telegram.Send(ctx, c, commonErrorInternal)
		return err
	}

	if len(positions) == 0 {
		_, err := t.telegram.Send(ctx, c, "📭 No active positions.")
		return err
	}

	text, menu := renderPositions(positions)
	_, err = t.telegram.Send(ctx, c, text, menu, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleListAll(ctx context.Context, c telebot.Context) error {
	positions, err := t.service.PositionService.ListPositions(ctx, false)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to list positions", logger.ErrorField(err))
		_, err := t.telegram.Send(ctx, c, commonErrorInternal)
		return err
	}

	if len(positions) == 0 {
		_, err := t.telegram.Send(ctx, c, "📭 No positions yet.")
		return err
	}

	_, err = t.telegram.Send(ctx, c, renderPositionStatus(fmt.Sprintf("📋 <b>All positions (%d)</b>", len(positions)), positions), telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleFind(ctx context.Context, c telebot.Context) error {
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		_, err := t.telegram.Send(ctx, c, "Usage: /find <symbol>")
		return err
	}

	positions, err := t.service.PositionService.FindPositionsByName(ctx, name)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to find positions", logger.StringField("symbol", name), logger.ErrorField(err))
		_, err := t.telegram.Send(ctx, c, commonErrorInternal)
		return err
	}

	if len(positions) == 0 {
		_, err := t.telegram.Send(ctx, c, fmt.Sprintf("❌ No positions found for %s.", strings.ToUpper(name)))
		return err
	}

	title := fmt.Sprintf("🔍 <b>%s positions (%d)</b>", utils.EscapeHTML(strings.ToUpper(name)), len(positions))
	_, err = t.telegram.Send(ctx, c, renderPositionStatus(title, positions), telebot.ModeHTML)
	return err
}

// renderPositionStatus lists positions of any status. Closed ones show how
// they ended.
func renderPositionStatus(title string, positions []model.Position) string {
	sb := strings.Builder{}
	sb.WriteString(title)
	sb.WriteString("\n\n")

	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("<b>#%d %s</b> %s x%d (%d%%)\n", p.ID, utils.EscapeHTML(p.Name), strings.ToUpper(p.Direction), p.Leverage, p.Percent))
		sb.WriteString(fmt.Sprintf("  • TP: %s | SL: %s\n", utils.FormatPrice(p.TakeProfit), utils.FormatPrice(p.StopLoss)))
		if p.IsActive {
			sb.WriteString("  • Status: ✅ Active\n")
		} else {
			status := "  • Status: ❌ Closed"
			if p.CloseReason != nil {
				status += fmt.Sprintf(" (%s)", *p.CloseReason)
			}
			if p.FinalPnL != nil {
				status += fmt.Sprintf(", PnL %s", utils.FormatPercentage(*p.FinalPnL))
			}
			sb.WriteString(status + "\n")
		}
		sb.WriteString(fmt.Sprintf("  • Created: %s\n\n", utils.PrettyDate(p.CreatedAt)))
	}
	return sb.String()
}

func renderPositions(positions []model.Position) (string, *telebot.ReplyMarkup) {
	sb := strings.Builder{}
	sb.WriteString("📊 <b>Active positions</b>\n\n")

	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("<b>#%d %s</b> %s x%d (%d%%)\n", p.ID, utils.EscapeHTML(p.Name), strings.ToUpper(p.Direction), p.Leverage, p.Percent))
		sb.WriteString(fmt.Sprintf("  • Entry: %s\n", utils.FormatPrice(p.EntryPrice)))
		sb.WriteString(fmt.Sprintf("  • TP: %s\n", utils.FormatPrice(p.TakeProfit)))
		sb.WriteString(fmt.Sprintf("  • SL: %s\n\n", utils.FormatPrice(p.StopLoss)))
	}
	sb.WriteString("👉 Tap a position to close it at the current price.")

	menu := &telebot.ReplyMarkup{}
	rows := []telebot.Row{}
	var tempRow []telebot.Btn
	for _, p := range positions {
		tempRow = append(tempRow, menu.Data(fmt.Sprintf("❌ #%d %s", p.ID, p.Name), btnClosePosition.Unique, strconv.FormatUint(uint64(p.ID), 10)))
		if len(tempRow) == 2 {
			rows = append(rows, menu.Row(tempRow...))
			tempRow = []telebot.Btn{}
		}
	}
	if len(tempRow) > 0 {
		rows = append(rows, menu.Row(tempRow...))
	}
	rows = append(rows, menu.Row(menu.Data(btnDeleteMessage.Text, btnDeleteMessage.Unique)))
	menu.Inline(rows...)

	return sb.String(), menu
}

func (t *TelegramBotHandler) handleBtnClosePosition(ctx context.Context, c telebot.Context) error {
	id, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		return t.telegram.Respond(ctx, c, &telebot.CallbackResponse{Text: "Invalid position"})
	}

	position, err := t.service.PositionService.GetPosition(ctx, uint(id))
	if err != nil {
		_, err := t.telegram.Edit(ctx, c, c.Message(), closeErrorMessage(uint(id), err))
		return err
	}
	if !position.IsActive {
		_, err := t.telegram.Edit(ctx, c, c.Message(), closeErrorMessage(uint(id), dto.ErrPositionAlreadyClosed))
		return err
	}

	text := fmt.Sprintf("⚠️ Close <b>#%d %s</b> %s at the current market price?", position.ID, utils.EscapeHTML(position.Name), strings.ToUpper(position.Direction))
	menu := &telebot.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("Cancel", btnDeleteMessage.Unique),
		menu.Data("✅ Close", btnConfirmClosePosition.Unique, c.Data()),
	))

	_, err = t.telegram.Edit(ctx, c, c.Message(), text, menu, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleBtnConfirmClosePosition(ctx context.Context, c telebot.Context) error {
	t.telegram.Respond(ctx, c, &telebot.CallbackResponse{Text: "🔄 Closing..."})

	id, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		_, err := t.telegram.Edit(ctx, c, c.Message(), commonErrorInternal)
		return err
	}

	event, err := t.service.PositionService.ClosePositionManually(ctx, uint(id))
	if err != nil {
		_, err := t.telegram.Edit(ctx, c, c.Message(), closeErrorMessage(uint(id), err))
		return err
	}

	_, err = t.telegram.Edit(ctx, c, c.Message(), closedMessage(event), telebot.ModeHTML)
	return err
}

func closedMessage(event *dto.CloseEvent) string {
	return fmt.Sprintf("✅ Closed <b>#%d %s</b> at %s\nPnL: %s",
		event.PositionID, utils.EscapeHTML(event.Name), utils.FormatPrice(event.Price), utils.FormatPercentage(event.FinalPnL))
}
