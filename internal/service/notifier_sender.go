package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"position-monitor/internal/dto"
	"position-monitor/internal/repository"
	"position-monitor/pkg/cache"
	"position-monitor/pkg/common"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/telegram"
	"position-monitor/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/telebot.v3"
)

type telegramMessenger interface {
	SendMessageUser(ctx context.Context, message string, chatID int64, opts ...interface{}) error
}

// TelegramSender broadcasts close events to subscribed bot users and the
// optional operator chat.
type TelegramSender struct {
	log            *logger.Logger
	messenger      telegramMessenger
	botUserRepo    repository.BotUserRepository
	cache          cache.Cache
	cacheTTL       time.Duration
	operatorChatID int64
}

func NewTelegramSender(
	log *logger.Logger,
	messenger telegramMessenger,
	botUserRepo repository.BotUserRepository,
	inmemoryCache cache.Cache,
	cacheTTL time.Duration,
	operatorChatID string,
) *TelegramSender {
	s := &TelegramSender{
		log:         log,
		messenger:   messenger,
		botUserRepo: botUserRepo,
		cache:       inmemoryCache,
		cacheTTL:    cacheTTL,
	}
	if operatorChatID != "" {
		id, err := strconv.ParseInt(operatorChatID, 10, 64)
		if err != nil {
			log.Warn("Ignoring invalid telegram chat id", logger.StringField("chat_id", operatorChatID), logger.ErrorField(err))
		} else {
			s.operatorChatID = id
		}
	}
	return s
}

func (s *TelegramSender) Name() string {
	return "telegram"
}

func (s *TelegramSender) Send(ctx context.Context, event dto.CloseEvent) error {
	recipients, err := s.recipients(ctx)
	if err != nil {
		return fmt.Errorf("%w: load recipients: %v", dto.ErrNotifierFailed, err)
	}
	if len(recipients) == 0 {
		return nil
	}

	message := FormatCloseEvent(event)
	var failed []error
	for _, chatID := range recipients {
		err := s.messenger.SendMessageUser(ctx, message, chatID, telebot.ModeHTML)
		if err == nil {
			continue
		}
		if errors.Is(err, telebot.ErrBlockedByUser) || errors.Is(err, telebot.ErrUserIsDeactivated) {
			s.unsubscribe(ctx, chatID)
			continue
		}
		failed = append(failed, fmt.Errorf("chat %d: %w", chatID, err))
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d telegram deliveries failed: %v", dto.ErrNotifierFailed, len(failed), len(recipients), errors.Join(failed...))
	}
	return nil
}

func (s *TelegramSender) recipients(ctx context.Context) ([]int64, error) {
	if ids, ok := cache.GetFromCache[[]int64](s.cache, common.KEY_BOT_RECIPIENTS); ok {
		return ids, nil
	}

	users, err := s.botUserRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(users)+1)
	for _, u := range users {
		ids = append(ids, u.TelegramID)
	}
	if s.operatorChatID != 0 && !utils.ContainsInt64(ids, s.operatorChatID) {
		ids = append(ids, s.operatorChatID)
	}

	s.cache.Set(common.KEY_BOT_RECIPIENTS, ids, s.cacheTTL)
	return ids, nil
}

func (s *TelegramSender) unsubscribe(ctx context.Context, chatID int64) {
	s.log.InfoContext(ctx, "Bot blocked by user, unsubscribing", logger.Field("telegram_id", chatID))
	if err := s.botUserRepo.Deactivate(ctx, chatID); err != nil {
		s.log.ErrorContext(ctx, "Failed to unsubscribe bot user", logger.ErrorField(err), logger.Field("telegram_id", chatID))
	}
	s.cache.Delete(common.KEY_BOT_RECIPIENTS)
}

// FormatCloseEvent renders event as a Telegram HTML message.
func FormatCloseEvent(event dto.CloseEvent) string {
	alertType := telegram.ManualClose
	target := 0.0
	switch event.Reason {
	case dto.CloseReasonTakeProfit:
		alertType = telegram.TakeProfit
		target = event.TakeProfit
	case dto.CloseReasonStopLoss:
		alertType = telegram.StopLoss
		target = event.StopLoss
	}

	return telegram.FormatPositionClosedForTelegram(alertType, telegram.ClosedPosition{
		ID:           event.PositionID,
		Symbol:       event.Name,
		Direction:    string(event.Direction),
		Leverage:     event.Leverage,
		Percent:      event.Percent,
		EntryPrice:   event.EntryPrice,
		TriggerPrice: event.Price,
		TargetPrice:  target,
		PnL:          event.FinalPnL,
		ClosedAt:     event.ClosedAt,
	})
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisSender publishes close events as JSON on a Pub/Sub channel.
type RedisSender struct {
	publisher publisher
	channel   string
}

func NewRedisSender(p publisher, channel string) *RedisSender {
	return &RedisSender{publisher: p, channel: channel}
}

func (s *RedisSender) Name() string {
	return "redis"
}

func (s *RedisSender) Send(ctx context.Context, event dto.CloseEvent) error {
	payload, err := jsoniter.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode close event: %v", dto.ErrNotifierFailed, err)
	}
	if err := s.publisher.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("%w: %v", dto.ErrNotifierFailed, err)
	}
	return nil
}
