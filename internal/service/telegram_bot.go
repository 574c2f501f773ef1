package service

import (
	"context"
	"errors"

	"position-monitor/config"
	"position-monitor/internal/model"
	"position-monitor/internal/repository"
	"position-monitor/pkg/cache"
	"position-monitor/pkg/common"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/utils"

	"gopkg.in/telebot.v3"
)

type TelegramBotService interface {
	// Subscribe registers the sender for close notifications.
	Subscribe(ctx context.Context, user *telebot.User) error
	// Broadcast sends text to every subscriber and returns how many
	// deliveries succeeded and failed.
	Broadcast(ctx context.Context, text string) (sent int, failed int, err error)
	IsAdmin(telegramID int64) bool
}

type telegramBotService struct {
	log           *logger.Logger
	cfg           *config.Config
	messenger     telegramMessenger
	inmemoryCache cache.Cache
	botUserRepo   repository.BotUserRepository
}

func NewTelegramBotService(
	log *logger.Logger,
	cfg *config.Config,
	messenger telegramMessenger,
	inmemoryCache cache.Cache,
	botUserRepo repository.BotUserRepository,
) TelegramBotService {
	return &telegramBotService{
		log:           log,
		cfg:           cfg,
		messenger:     messenger,
		inmemoryCache: inmemoryCache,
		botUserRepo:   botUserRepo,
	}
}

func (s *telegramBotService) Subscribe(ctx context.Context, user *telebot.User) error {
	if user == nil {
		return errors.New("missing telegram sender")
	}

	err := s.botUserRepo.Upsert(ctx, &model.BotUser{
		TelegramID: user.ID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to subscribe bot user", logger.ErrorField(err))
		return err
	}

	s.inmemoryCache.Delete(common.KEY_BOT_RECIPIENTS)
	s.log.InfoContext(ctx, "Bot user subscribed")
	return nil
}

func (s *telegramBotService) Broadcast(ctx context.Context, text string) (int, int, error) {
	users, err := s.botUserRepo.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	var sent, failed int
	for _, u := range users {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		if err := s.messenger.SendMessageUser(ctx, text, u.TelegramID, telebot.ModeHTML); err != nil {
			failed++
			s.log.WarnContext(ctx, "Broadcast delivery failed", logger.Field("telegram_id", u.TelegramID), logger.ErrorField(err))
			continue
		}
		sent++
	}
	return sent, failed, nil
}

func (s *telegramBotService) IsAdmin(telegramID int64) bool {
	return utils.ContainsInt64(s.cfg.Telegram.AdminIDs, telegramID)
}
