package telegram

import (
	"context"
	"time"

	"position-monitor/config"
	"position-monitor/internal/service"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/telegram"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

type TelegramBotHandler struct {
	ctx      context.Context
	cfg      *config.Config
	bot      *telebot.Bot
	log      *logger.Logger
	telegram *telegram.TelegramRateLimiter
	echo     *echo.Echo
	service  *service.Service
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	telegram *telegram.TelegramRateLimiter,
	echo *echo.Echo,
	service *service.Service) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:      ctx,
		cfg:      cfg,
		log:      log,
		bot:      bot,
		telegram: telegram,
		echo:     echo,
		service:  service,
	}
}

// Start registers the handlers and begins receiving updates. With a webhook
// URL configured updates arrive through the HTTP server, otherwise the bot
// long polls in the background.
func (t *TelegramBotHandler) Start() {
	t.log.Info("Starting Telegram bot...")

	t.RegisterHandlers()

	if t.cfg.Telegram.WebhookURL == "" {
		t.log.Info("Telegram webhook is disabled, using long polling")
		go t.bot.Start()
		return
	}

	t.log.Info("Setting webhook URL", logger.StringField("webhook_url", t.cfg.Telegram.WebhookURL))
	if err := t.bot.SetWebhook(&telebot.Webhook{
		Endpoint: &telebot.WebhookEndpoint{
			PublicURL: t.cfg.Telegram.WebhookURL,
		},
	}); err != nil {
		t.log.Error("Failed to set telegram webhook", logger.ErrorField(err))
	}
}

func (t *TelegramBotHandler) Stop() {
	t.log.Info("Stopping Telegram bot...")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), 10*time.Second)
	defer cancel()

	stopDone := make(chan struct{})
	go func() {
		if t.cfg.Telegram.WebhookURL == "" {
			t.bot.Stop()
		}
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.log.Info("Telegram bot stopped successfully")
	case <-ctx.Done():
		t.log.Warn("Timeout while stopping bot, forcing shutdown")
	}
}
