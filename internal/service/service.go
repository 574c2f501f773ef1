package service

import (
	"position-monitor/config"
	"position-monitor/internal/repository"
	"position-monitor/internal/strategy"
	"position-monitor/pkg/cache"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/redis"
	"position-monitor/pkg/telegram"

	"github.com/go-playground/validator/v10"
)

type Service struct {
	SchedulerService   SchedulerService
	NotifierService    NotifierService
	PositionService    PositionService
	TradingService     TradingService
	TelegramBotService TelegramBotService
}

// NewService wires the services. telegramLimiter and redisClient may be nil
// when the corresponding channel is disabled.
func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	telegramLimiter *telegram.TelegramRateLimiter,
	redisClient *redis.Client,
	validate *validator.Validate,
) *Service {
	var senders []Sender
	if telegramLimiter != nil {
		senders = append(senders, NewTelegramSender(log, telegramLimiter, repo.BotUserRepo, inmemoryCache, cfg.Cache.DefaultExpiration, cfg.Telegram.ChatID))
	}
	if redisClient != nil {
		senders = append(senders, NewRedisSender(redisClient, cfg.Redis.Channel))
	}
	notifierService := NewNotifierService(cfg.Notifier, log, senders...)

	tradingService := NewTradingService()
	positionService := NewPositionService(log, repo.PositionRepo, repo.BybitRepo, notifierService, validate)

	schedulerService := NewSchedulerService(cfg, log,
		strategy.NewPositionMonitorStrategy(cfg.Monitor, log, repo.PositionRepo, repo.BybitRepo, notifierService, tradingService),
		strategy.NewDataCleanUpStrategy(cfg.CleanUp, log, repo.PositionRepo),
	)

	var telegramBotService TelegramBotService
	if telegramLimiter != nil {
		telegramBotService = NewTelegramBotService(log, cfg, telegramLimiter, inmemoryCache, repo.BotUserRepo)
	}

	return &Service{
		SchedulerService:   schedulerService,
		NotifierService:    notifierService,
		PositionService:    positionService,
		TradingService:     tradingService,
		TelegramBotService: telegramBotService,
	}
}
