package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"position-monitor/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap/zapcore"
)

// AlertCore tees entries flagged with SendAlertField to a Telegram chat.
type AlertCore struct {
	zapcore.Core
	client   *resty.Client
	token    string
	chatID   string
	minLevel zapcore.Level
}

// WithTelegramAlert returns an Option that forwards flagged entries at or above
// minLevel to chatID. It is a no-op when token or chatID is empty.
func WithTelegramAlert(token, chatID string, timeout time.Duration, minLevel zapcore.Level) Option {
	return func(core zapcore.Core) zapcore.Core {
		if token == "" || chatID == "" {
			return core
		}
		return &AlertCore{
			Core:     core,
			client:   resty.New().SetBaseURL("https://api.telegram.org").SetTimeout(timeout),
			token:    token,
			chatID:   chatID,
			minLevel: minLevel,
		}
	}
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		Core:     a.Core.With(fields),
		client:   a.client,
		token:    a.token,
		chatID:   a.chatID,
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && hasAlertFlag(fields) {
		go a.sendTelegramAlert(entry, fields)
	}
	return a.Core.Write(entry, fields)
}

func hasAlertFlag(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

func (a *AlertCore) sendTelegramAlert(entry zapcore.Entry, fields []zapcore.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("• %s: %v\n", k, enc.Fields[k]))
	}

	message := fmt.Sprintf(
		"🚨 %s alert\n\n%s\n\n%s\n%s",
		entry.Level.CapitalString(),
		entry.Message,
		sb.String(),
		entry.Time.UTC().Format("2006-01-02 15:04:05 UTC"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Delivery errors are dropped; logging them here would recurse into this core.
	_, _ = a.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id": a.chatID,
			"text":    message,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", a.token))
}
