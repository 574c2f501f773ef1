package cmd

import (
	"position-monitor/pkg/logger"
)

type shutdownStep struct {
	name string
	stop func() error
}

func noErr(fn func()) func() error {
	return func() error {
		fn()
		return nil
	}
}

// gracefulShutdown stops every producer of close events before the notifier
// drains its queue. Shared dependencies are released last.
func gracefulShutdown(log *logger.Logger, scheduler, bot, server, notifier, deps func() error) {
	steps := []shutdownStep{
		{"scheduler", scheduler},
		{"telegram bot", bot},
		{"HTTP server", server},
		{"notifier", notifier},
		{"app dependency", deps},
	}
	for _, step := range steps {
		if step.stop == nil {
			continue
		}
		if err := step.stop(); err != nil {
			log.Error("Failed to stop "+step.name, logger.ErrorField(err))
		}
	}
}
