package main

import (
	"context"
	"github.com/ariefcatur/stars-storefront/internal/config"
	"github.com/ariefcatur/stars-storefront/internal/cryptopay"
	"github.com/ariefcatur/stars-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/stars-storefront/internal/kafka"
	"github.com/ariefcatur/stars-storefront/internal/logging"
	"github.com/ariefcatur/stars-storefront/internal/lookup"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/ariefcatur/stars-storefront/internal/postgres"
	"github.com/ariefcatur/stars-storefront/internal/redisx"
	"github.com/ariefcatur/stars-storefront/internal/telegram"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, logger)
	if err != nil {
		logger.Fatalw("db connect", "error", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatalw("db migrate", "error", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Payment gateway
	pay := cryptopay.New(cryptopay.Config{
		Token:   cfg.CryptoPayToken,
		BaseURL: cfg.CryptoPayURL,
		Timeout: cfg.CryptoPayTimeout,
	}, redisx.NewJSONCache[[]cryptopay.Rate](rdb, redisx.KeyExchangeRates, redisx.TTLRates, logger), logger)
	if cfg.CryptoPayToken == "" {
		logger.Warn("CRYPTOPAY_TOKEN not set: crypto invoices and webhooks are disabled")
	}

	// Telegram
	var bot telegram.Bot
	if cfg.TelegramBotToken != "" {
		api, err := telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, cfg.TelegramTimeout)
		if err != nil {
			logger.Fatalw("telegram", "error", err)
		}
		bot = api
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set: operator notifications are disabled")
	}

	// Notifications: in-process or through Kafka
	var (
		notifier orders.Notifier
		prod     *kafkax.Producer
	)
	switch cfg.NotifyMode {
	case config.NotifyKafka:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderNotify, 1024, logger)
		prod.Start(ctx)
		notifier = &orders.EventNotifier{Producer: prod, Service: cfg.ServiceName}
	default:
		notifier = telegram.NewNotifier(bot, cfg.TelegramChatID, cfg.TelegramTimezone, logger)
	}

	statuses := redisx.NewJSONCache[orders.StatusView](rdb, redisx.KeyOrderStatus, redisx.TTLStatusCache, logger)
	svc := &orders.Service{
		Store:    &orders.Repo{DB: db},
		Gateway:  pay,
		Notifier: notifier,
		Cache:    statuses,
		Log:      logger,
	}

	profiles := lookup.New(
		lookup.WebDialer(cfg.LookupBaseURL, cfg.LookupTimeout),
		redisx.NewJSONCache[lookup.Profile](rdb, redisx.KeyProfile, redisx.TTLProfile, logger),
		logger,
	)
	defer profiles.Close()

	admin, err := httpx.NewAdminAuth(cfg.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		logger.Fatalw("admin auth", "error", err)
	}
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set: admin routes reject every request")
	}

	h := &httpx.Handler{
		Orders:          svc,
		Rates:           pay,
		Payments:        pay,
		Profiles:        profiles,
		Statuses:        statuses,
		Admin:           admin,
		Log:             logger,
		TelegramSecret:  cfg.TelegramWebhookSecret,
		AllowSimulation: cfg.AllowSimulation,
	}
	if bot != nil {
		h.Telegram = &telegram.CallbackHandler{Bot: bot, ChatID: cfg.TelegramChatID, Orders: svc, Log: logger}
	}
	if cfg.AllowSimulation {
		logger.Warn("payment simulation endpoint is enabled")
	}

	router := httpx.NewRouter(cfg.ServiceName)
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Infow("HTTP listening", "addr", cfg.HTTPAddr, "notify_mode", cfg.NotifyMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("listen", "error", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	cancel()
}
