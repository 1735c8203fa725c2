package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broadcast"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/health"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/lifecycle"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/monitor"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/verification"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/config"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/graceful"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/logger"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	sentryEnabled := cfg.Sentry.Enabled && cfg.Sentry.DSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Error("failed to initialize sentry", slog.Any("error", err))
			sentryEnabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	log := logger.New(cfg.Log, sentryEnabled)
	log.Info("starting signal funnel bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.HTTPPort))

	documents, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		log.Error("failed to open document store", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := documents.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Error("document watcher exited", slog.Any("error", err))
		}
	}()

	reg := registry.New(documents, log)

	translations, err := i18n.Load(registry.DefaultLanguage)
	if err != nil {
		log.Error("failed to load translations", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := funnel.NewMemoryStorage()
	fsm := funnel.NewMachine(sessions, log)
	go funnel.NewCleaner(sessions, log, cfg.Session.TTL, cfg.Session.CleanupInterval).Run(ctx)
	go metrics.NewSessionCollector(fsm).Run(ctx)

	brokerAPI := broker.NewClient(broker.ClientConfig{
		BaseURL:   cfg.Partner.BaseURL,
		AuthToken: cfg.Partner.AuthToken,
		Timeout:   cfg.Partner.Timeout,
	}, log)

	verifier := verification.NewCoordinator(brokerAPI, reg, cfg.Partner.BypassUIDs, log)

	// The scheduler needs the bot as sender and the bot needs the scheduler
	// for the operator commands; the indirection breaks the cycle.
	sender := &deferredSender{}
	scheduler := broadcast.NewScheduler(documents, reg, sender, log)

	tgBot, err := bot.New(*cfg, log, documents, reg, fsm, verifier, brokerAPI, scheduler, translations)
	if err != nil {
		log.Error("failed to initialize telegram bot", slog.Any("error", err))
		os.Exit(1)
	}
	sender.Sender = tgBot

	go monitor.New(brokerAPI, tgBot, log,
		monitor.WithStartupDelay(cfg.Monitor.StartupDelay),
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithDaysThreshold(cfg.Monitor.ExpiryWarningDays),
	).Run(ctx)

	checker := health.NewChecker(log)
	checker.AddCheck("store", health.NewStoreChecker(documents))
	checker.AddCheck("broker", health.NewBrokerChecker(brokerAPI))
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))

	httpServer := buildHTTPServer(cfg.Server.HTTPPort, checker)
	server := graceful.NewServer(log, httpServer, shutdownTimeout)
	go func() {
		if err := server.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram-bot", func(context.Context) error {
		tgBot.Stop()
		return nil
	})
	shutdown.Register("document-store", func(context.Context) error {
		return documents.Flush()
	})

	go tgBot.Start()
	log.Info("bot is running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("bot stopped")
}

func buildHTTPServer(port string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		for name, result := range results {
			_, _ = w.Write([]byte(name + ": " + result + "\n"))
		}
	})

	return &http.Server{
		Addr:              ":" + port,
		Handler:           logger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// deferredSender lets the broadcast scheduler be constructed before the bot.
type deferredSender struct {
	broadcast.Sender
}

func (d *deferredSender) SendBroadcast(ctx context.Context, userID int64, message string) error {
	if d.Sender == nil {
		return nil
	}
	return d.Sender.SendBroadcast(ctx, userID, message)
}
