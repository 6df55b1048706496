package main

import (
	"context"
	"github.com/ariefcatur/stars-storefront/internal/config"
	"github.com/ariefcatur/stars-storefront/internal/dispatch"
	kafkax "github.com/ariefcatur/stars-storefront/internal/kafka"
	"github.com/ariefcatur/stars-storefront/internal/logging"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/ariefcatur/stars-storefront/internal/redisx"
	"github.com/ariefcatur/stars-storefront/internal/telegram"
	"github.com/joho/godotenv"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName+"-notifier")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Telegram
	if cfg.TelegramBotToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is required for the notifier")
	}
	bot, err := telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, cfg.TelegramTimeout)
	if err != nil {
		logger.Fatalw("telegram", "error", err)
	}

	svc := &dispatch.Service{
		Notifier:    telegram.NewNotifier(bot, cfg.TelegramChatID, cfg.TelegramTimezone, logger),
		Redis:       rdb,
		ServiceName: cfg.NotifierGroup,
		Log:         logger,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderNotify, cfg.NotifierWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Infow("notifier consumer started",
			"group", cfg.NotifierGroup, "topic", orders.TopicOrderNotify, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleNotification); err != nil {
			logger.Errorw("consumer exit", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer...")
	cancel()
	<-done
}
