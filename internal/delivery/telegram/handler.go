package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"position-monitor/internal/dto"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/middleware"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

const handlerTimeout = time.Minute

func (t *TelegramBotHandler) WithContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return middleware.WithContext(t.ctx, t.log, handlerTimeout, handler)
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.echo.POST("/api/v1/telegram/webhook", func(c echo.Context) error {
		var update telebot.Update
		if err := c.Bind(&update); err != nil {
			t.log.ErrorContext(t.ctx, "Cannot bind JSON", logger.ErrorField(err))
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		t.bot.ProcessUpdate(update)
		return c.JSON(http.StatusOK, dto.NewBaseResponse(http.StatusOK, "ok", nil))
	})

	t.bot.Handle("/start", t.WithContext(t.handleStart))
	t.bot.Handle("/help", t.WithContext(t.handleHelp))
	t.bot.Handle("/positions", t.WithContext(t.handlePositions), t.AdminOnly())
	t.bot.Handle("/list", t.WithContext(t.handleListAll), t.AdminOnly())
	t.bot.Handle("/find", t.WithContext(t.handleFind), t.AdminOnly())
	t.bot.Handle("/delete", t.WithContext(t.handleDelete), t.AdminOnly())
	t.bot.Handle("/close", t.WithContext(t.handleClose), t.AdminOnly())
	t.bot.Handle("/notify_all", t.WithContext(t.handleNotifyAll), t.AdminOnly())
	t.bot.Handle(telebot.OnText, t.WithContext(t.handleText))

	t.bot.Handle(&btnClosePosition, t.WithContext(t.handleBtnClosePosition), t.AdminOnly())
	t.bot.Handle(&btnConfirmClosePosition, t.WithContext(t.handleBtnConfirmClosePosition), t.AdminOnly())
	t.bot.Handle(&btnDeleteMessage, t.WithContext(t.handleBtnDeleteMessage))
}

// AdminOnly rejects updates from senders not listed in telegram.admin_ids.
func (t *TelegramBotHandler) AdminOnly() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if c.Sender() == nil || !t.service.TelegramBotService.IsAdmin(c.Sender().ID) {
				if c.Callback() != nil {
					return c.Respond(&telebot.CallbackResponse{Text: commonErrorNotAdmin, ShowAlert: true})
				}
				return c.Send(commonErrorNotAdmin)
			}
			return next(c)
		}
	}
}

func (t *TelegramBotHandler) handleStart(ctx context.Context, c telebot.Context) error {
	if err := t.service.TelegramBotService.Subscribe(ctx, c.Sender()); err != nil {
		t.log.ErrorContext(ctx, "Failed to subscribe telegram user", logger.ErrorField(err))
		_, err := t.telegram.Send(ctx, c, commonErrorInternal)
		return err
	}

	message := `👋 <b>Welcome to the position monitor bot!</b>

You are now subscribed. I will message you whenever a tracked position hits its take profit or stop loss.

🆘 /help - Show all commands`
	_, err := t.telegram.Send(ctx, c, message, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	message := `❓ <b>Position monitor bot</b>

Positions are checked against live Bybit prices every few seconds and closed automatically on TP or SL.

<b>Commands</b>
/start - Subscribe to close notifications
/help - Show this message

<b>Admin</b>
/positions - List active positions
/list - List all positions with their status
/find &lt;symbol&gt; - Show every position of a symbol
/delete &lt;id&gt; - Delete a position and its history
/close &lt;id&gt; - Close a position at the current price
/notify_all &lt;text&gt; - Send a message to every subscriber`
	_, err := t.telegram.Send(ctx, c, message, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleText(ctx context.Context, c telebot.Context) error {
	if strings.HasPrefix(c.Text(), "/") {
		_, err := t.telegram.Send(ctx, c, "Unknown command. Use /help to see the list of commands.")
		return err
	}
	return nil
}

func (t *TelegramBotHandler) handleNotifyAll(ctx context.Context, c telebot.Context) error {
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		_, err := t.telegram.Send(ctx, c, "Usage: /notify_all <text>")
		return err
	}

	sent, failed, err := t.service.TelegramBotService.Broadcast(ctx, text)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to broadcast message", logger.ErrorField(err))
		_, err := t.telegram.Send(ctx, c, commonErrorInternal)
		return err
	}

	_, err = t.telegram.Send(ctx, c, fmt.Sprintf("📣 Broadcast finished: %d sent, %d failed.", sent, failed))
	return err
}

func (t *TelegramBotHandler) handleClose(ctx context.Context, c telebot.Context) error {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil || id == 0 {
		_, err := t.telegram.Send(ctx, c, "Usage: /close <position id>")
		return err
	}

	event, err := t.service.PositionService.ClosePositionManually(ctx, uint(id))
	if err != nil {
		_, err := t.telegram.Send(ctx, c, closeErrorMessage(uint(id), err))
		return err
	}

	_, err = t.telegram.Send(ctx, c, closedMessage(event), telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleDelete(ctx context.Context, c telebot.Context) error {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Message().Payload), 10, 64)
	if err != nil || id == 0 {
		_, err := t.telegram.Send(ctx, c, "Usage: /delete <position id>")
		return err
	}

	if err := t.service.PositionService.DeletePosition(ctx, uint(id)); err != nil {
		_, err := t.telegram.Send(ctx, c, closeErrorMessage(uint(id), err))
		return err
	}

	_, err = t.telegram.Send(ctx, c, fmt.Sprintf("🗑 Position #%d deleted.", id))
	return err
}

func (t *TelegramBotHandler) handleBtnDeleteMessage(ctx context.Context, c telebot.Context) error {
	return t.telegram.Delete(ctx, c, c.Message())
}

func closeErrorMessage(id uint, err error) string {
	switch {
	case errors.Is(err, dto.ErrPositionNotFound):
		return fmt.Sprintf("❌ Position #%d not found.", id)
	case errors.Is(err, dto.ErrPositionAlreadyClosed):
		return fmt.Sprintf("ℹ️ Position #%d is already closed.", id)
	case errors.Is(err, dto.ErrQuoteUnavailable):
		return fmt.Sprintf("❌ No live price for position #%d, try again later.", id)
	}
	return commonErrorInternal
}
