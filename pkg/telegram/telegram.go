package telegram

import (
	"context"
	"sync"
	"time"

	"position-monitor/config"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/utils"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

type userLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// TelegramRateLimiter throttles outgoing bot messages globally and per chat so
// broadcasts stay under the Bot API limits.
type TelegramRateLimiter struct {
	cfg           *config.TelegramConfig
	log           *logger.Logger
	globalLimiter *rate.Limiter
	userLimiters  map[int64]*userLimiterEntry
	bot           *telebot.Bot
	mu            sync.Mutex
	wg            sync.WaitGroup
}

func NewTelegramRateLimiter(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) *TelegramRateLimiter {
	return &TelegramRateLimiter{
		cfg:           cfg,
		log:           log,
		bot:           bot,
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxGlobalRequestPerSecond), cfg.MaxGlobalRequestPerSecond),
		userLimiters:  make(map[int64]*userLimiterEntry),
	}
}

// Send replies in the chat of the incoming update.
func (t *TelegramRateLimiter) Send(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return nil, err
	}
	return t.bot.Send(c.Chat(), what, opts...)
}

// SendMessageUser delivers a message to an arbitrary chat id.
func (t *TelegramRateLimiter) SendMessageUser(ctx context.Context, message string, chatID int64, opts ...interface{}) error {
	if err := t.checkRateLimit(ctx, chatID); err != nil {
		return err
	}
	_, err := t.bot.Send(telebot.ChatID(chatID), message, opts...)
	return err
}

func (t *TelegramRateLimiter) Respond(ctx context.Context, c telebot.Context, resp ...*telebot.CallbackResponse) error {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return err
	}
	return c.Respond(resp...)
}

func (t *TelegramRateLimiter) Edit(ctx context.Context, c telebot.Context, msg *telebot.Message, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return nil, err
	}
	return t.bot.Edit(msg, what, opts...)
}

func (t *TelegramRateLimiter) Delete(ctx context.Context, c telebot.Context, msg *telebot.Message) error {
	if err := t.checkRateLimit(ctx, c.Chat().ID); err != nil {
		return err
	}
	return t.bot.Delete(msg)
}

func (t *TelegramRateLimiter) getUserLimiter(chatID int64) *userLimiterEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limiter, exists := t.userLimiters[chatID]; exists {
		limiter.lastAccess = time.Now()
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(t.cfg.MaxUserRequestPerSecond), t.cfg.MaxUserRequestPerSecond)
	t.userLimiters[chatID] = &userLimiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return t.userLimiters[chatID]
}

func (t *TelegramRateLimiter) checkRateLimit(ctx context.Context, chatID int64) error {
	userLimiter := t.getUserLimiter(chatID)

	if err := t.globalLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for global rate limit", logger.ErrorField(err))
		return err
	}
	if err := userLimiter.limiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for user rate limit", logger.ErrorField(err))
		return err
	}
	return nil
}

func (t *TelegramRateLimiter) StartCleanupExpired(ctx context.Context) {
	t.wg.Add(1)
	utils.GoSafe(func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.cfg.RateLimitCleanupDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.log.Info("Received signal to stop Telegram rate limiter cleanup expired")
				return
			case <-ticker.C:
				t.mu.Lock()
				now := time.Now()
				for chatID, entry := range t.userLimiters {
					if now.Sub(entry.lastAccess) > t.cfg.RatelimitExpireDuration {
						delete(t.userLimiters, chatID)
					}
				}
				t.mu.Unlock()
			}
		}
	})
}

func (t *TelegramRateLimiter) StopCleanupExpired() {
	t.wg.Wait()
	t.log.Info("Telegram rate limiter stopped")
}
