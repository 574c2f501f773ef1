package cmd

import (
	"context"
	"strings"
	"time"

	"position-monitor/config"
	"position-monitor/pkg/cache"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/middleware"
	"position-monitor/pkg/postgres"
	"position-monitor/pkg/redis"
	"position-monitor/pkg/telegram"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/telebot.v3"
)

type AppDependency struct {
	db          *postgres.DB
	cfg         *config.Config
	log         *logger.Logger
	validator   *goValidator.Validate
	echo        *echo.Echo
	cache       cache.Cache
	redis       *redis.Client
	telegram    *telegram.TelegramRateLimiter
	telegramBot *telebot.Bot
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding,
		logger.WithTelegramAlert(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.TimeoutDuration, zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	dep := &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      newEcho(cfg),
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
	}

	if cfg.Redis.Enabled {
		dep.redis, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to redis", zap.Error(err))
			_ = dep.Close()
			return nil, err
		}
	}

	if cfg.Telegram.BotToken == "" {
		log.Warn("Telegram bot token is empty, bot and telegram notifications are disabled")
		return dep, nil
	}

	pref := telebot.Settings{
		Token: cfg.Telegram.BotToken,
		OnError: func(err error, c telebot.Context) {
			log.Error("Telegram bot error", zap.Error(err))
		},
	}
	// with a webhook, updates arrive through the echo route instead of a poller
	if cfg.Telegram.WebhookURL == "" {
		pref.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Error("Failed to create telegram bot", zap.Error(err))
		_ = dep.Close()
		return nil, err
	}
	dep.telegramBot = bot
	dep.telegram = telegram.NewTelegramRateLimiter(&cfg.Telegram, log, bot)

	return dep, nil
}

func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.NewRateLimiterMiddleware(middleware.RateLimitConfig{
		RequestPerSecond: cfg.API.RequestPerSecond,
		Burst:            cfg.API.Burst,
		ExpiresIn:        3 * time.Minute,
		Skip: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/api/v1/telegram")
		},
	}))
	return e
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.Error("Failed to close redis", zap.Error(err))
		}
	}
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
