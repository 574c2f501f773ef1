package middleware

import (
	"context"
	"time"

	"position-monitor/pkg/logger"

	"gopkg.in/telebot.v3"
)

// WithContext adapts a context-aware bot handler. Each update gets its own
// timeout and a logger tagged with the sender.
func WithContext(rootCtx context.Context, log *logger.Logger, timeout time.Duration, handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(rootCtx, timeout)
		defer cancel()

		if sender := c.Sender(); sender != nil {
			ctx = logger.NewContext(ctx, log.With(
				logger.Field("telegram_id", sender.ID),
				logger.StringField("username", sender.Username),
			))
		}
		return handler(ctx, c)
	}
}
