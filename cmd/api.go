package cmd

import (
	"context"
	"errors"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"position-monitor/internal/delivery/http"
	"position-monitor/internal/delivery/telegram"
	"position-monitor/internal/repository"
	"position-monitor/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the position monitor, HTTP API and telegram bot",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo := repository.NewRepository(appDep.cfg, appDep.db.DB, appDep.log)

	services := service.NewService(
		appDep.cfg,
		appDep.log,
		repo,
		appDep.cache,
		appDep.telegram,
		appDep.redis,
		appDep.validator,
	)

	httpHandler := http.NewHttpAPIHandler(appDep.echo, appDep.log, services)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	apiServer.SetupRoutes()

	var telegramHandler *telegram.TelegramBotHandler
	if appDep.telegramBot != nil {
		telegramHandler = telegram.NewTelegramBotHandler(
			ctx,
			appDep.cfg,
			appDep.log,
			appDep.telegramBot,
			appDep.telegram,
			appDep.echo,
			services,
		)
		telegramHandler.Start()
		appDep.telegram.StartCleanupExpired(ctx)
	}

	services.NotifierService.Start(ctx)
	if err := services.SchedulerService.Start(ctx); err != nil {
		appDep.log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			appDep.log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appDep.log.Info("Shutting down gracefully...")

	var stopBot func() error
	if telegramHandler != nil {
		stopBot = noErr(func() {
			telegramHandler.Stop()
			appDep.telegram.StopCleanupExpired()
		})
	}
	gracefulShutdown(appDep.log,
		noErr(services.SchedulerService.Stop),
		stopBot,
		apiServer.Stop,
		noErr(services.NotifierService.Stop),
		appDep.Close,
	)
	_ = appDep.log.Sync()
}
