package utils

import (
	"context"
	"fmt"
	"html"
	"log"
	"runtime"
	"strings"

	"position-monitor/pkg/logger"
)

// ContainsInt64 checks if a slice of int64 contains a specific value.
func ContainsInt64(slice []int64, v int64) bool {
	for _, item := range slice {
		if item == v {
			return true
		}
	}
	return false
}

// GoSafe runs the given function in a new goroutine and recovers from any panic.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Panic Recovered] %v", r)
			}
		}()
		fn()
	}()
}

func ToPointer[T any](value T) *T {
	return &value
}

func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		pc, _, _, ok := runtime.Caller(1)
		funcName := "unknown"
		if ok {
			fn := runtime.FuncForPC(pc)
			if fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}

		log.Warn("Context cancelled",
			logger.StringField("caller", funcName),
		)
		return false
	default:
		return true
	}
}

// EscapeHTML escapes text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

func FormatPercentage(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}

// FormatPrice trims trailing zeros so both 0.00001234 and 65000 read naturally.
func FormatPrice(value float64) string {
	s := fmt.Sprintf("%.8f", value)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
