package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"proxy-bot/internal/config"
	"proxy-bot/internal/db"
	"proxy-bot/internal/expiration"
	"proxy-bot/internal/gates/megapanel"
	"proxy-bot/internal/health"
	"proxy-bot/internal/metrics"
	"proxy-bot/internal/notify"
	"proxy-bot/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting expiration-service", "version", "1.0.0", "pid", os.Getpid())

	cfg := config.Load()
	slog.Info("Configuration loaded",
		"db_dsn", cfg.DBDsn,
		"panel_base_url", cfg.PanelBaseURL,
		"health_addr", cfg.HealthAddr,
		"has_smtp", cfg.SMTPHost != "",
		"has_bot_token", cfg.BotToken != "",
		"has_sms_gateway", cfg.SMSGatewayURL != "",
	)

	repo, err := db.NewRepository(cfg.DBDsn)
	if err != nil {
		slog.Error("Failed to initialize database repository", "error", err, "dsn", cfg.DBDsn)
		os.Exit(1)
	}
	slog.Info("Database repository initialized successfully")

	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed successfully")

	panel, err := megapanel.NewClient(megapanel.Config{
		BaseURL:  cfg.PanelBaseURL,
		Email:    cfg.PanelEmail,
		Password: cfg.PanelPassword,
	})
	if err != nil {
		slog.Error("Failed to create panel client", "error", err)
		os.Exit(1)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		slog.Error("Failed to create notification service", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	sweepMetrics := metrics.NewSweepMetrics(registry)

	engine := expiration.NewEngine(repo, panel, notifier, sweepMetrics)

	sched := scheduler.NewScheduler(engine)
	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer func() {
		slog.Info("Stopping scheduler")
		sched.Stop()
	}()

	healthServer := health.NewServer(cfg.HealthAddr, registry)
	slog.Info("Health server created", "addr", cfg.HealthAddr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := healthServer.Start(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Health server failed", "error", err)
			}
		}
	}()
	defer func() {
		slog.Info("Stopping health server")
		if err := healthServer.Stop(); err != nil {
			slog.Error("Failed to stop health server", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Expiration service shutdown completed")
}

// buildNotifier wires the transports that are configured; unconfigured
// channels stay nil and fail per-send, which keeps affected alerts pending.
func buildNotifier(cfg *config.Config) (*notify.Service, error) {
	var email *notify.EmailSender
	if cfg.SMTPHost != "" {
		email = notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}

	var telegram *notify.TelegramSender
	if cfg.BotToken != "" {
		var err error
		telegram, err = notify.NewTelegramSender(cfg.BotToken)
		if err != nil {
			return nil, err
		}
	}

	var sms *notify.SMSSender
	if cfg.SMSGatewayURL != "" {
		sms = notify.NewSMSSender(cfg.SMSGatewayURL, cfg.SMSGatewayKey)
	}

	return notify.NewService(email, telegram, sms), nil
}
