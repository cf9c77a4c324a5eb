// tanyad is the consultation bot daemon: it connects the Telegram front
// end, the shared tabular ticket store, the operator API, and the
// optional Slack mirror and digest scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiPkg "github.com/tanya-io/tanya/internal/api"
	"github.com/tanya-io/tanya/internal/bot"
	"github.com/tanya-io/tanya/internal/config"
	"github.com/tanya-io/tanya/internal/connector"
	"github.com/tanya-io/tanya/internal/connector/telegram"
	"github.com/tanya-io/tanya/internal/events"
	"github.com/tanya-io/tanya/internal/logbuf"
	"github.com/tanya-io/tanya/internal/notify"
	"github.com/tanya-io/tanya/internal/refdata"
	"github.com/tanya-io/tanya/internal/risk"
	"github.com/tanya-io/tanya/internal/scheduler"
	"github.com/tanya-io/tanya/internal/session"
	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/internal/ticket"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	ring := logbuf.NewRing(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, ring))

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("tanyad starting", "store", cfg.Store.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Shared tabular store
	tab, cleanup, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	// 2. Telegram connector. The dialog front end is built after the
	// connector, so the handler closes over a forward declaration.
	var front *bot.Front
	tgConn, err := telegram.New(
		telegram.Config{
			Token:        cfg.Bot.Token,
			PublicDomain: cfg.Bot.PublicDomain,
		},
		func(ctx context.Context, msg connector.InboundMessage) error {
			front.HandleInbound(ctx, msg)
			return nil
		},
		logger.With("connector", "telegram"),
	)
	if err != nil {
		logger.Error("failed to init telegram connector", "error", err)
		os.Exit(1)
	}

	// 3. Lifecycle engine: transport notifier, optional Slack mirror,
	// event bus, typed ticket store.
	bus := events.New(logger.With("component", "events"))
	var notifier ticket.Notifier = bot.NewNotifier(tgConn, cfg.Bot.AgentChatID)
	if cfg.Slack != nil {
		mirror := notify.NewSlackMirror(cfg.Slack.BotToken, cfg.Slack.Channel)
		notifier = notify.NewFanout(notifier, logger.With("component", "notify"), mirror)
		logger.Info("slack mirror enabled", "channel", cfg.Slack.Channel)
	}
	engine := ticket.NewEngine(ticket.NewStore(tab, cfg.Store.TicketSheet), notifier, bus, logger)

	// 4. Dialog front end
	sheets := refdata.DefaultSheets()
	front = bot.NewFront(
		tgConn,
		engine,
		session.NewResolver(cfg.Bot.AgentChatID),
		refdata.NewSource(tab, sheets),
		risk.NewRecorder(tab, sheets.RiskResults),
		cfg.Bot.AgentChatID,
		logger.With("component", "bot"),
	)

	go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
	logger.Info("telegram connector started", "mode", tgMode(cfg.Bot.PublicDomain))

	// 5. Digest scheduler
	if cfg.Digest.Schedule != "" {
		sched := scheduler.New(logger.With("component", "scheduler"))
		digester := scheduler.NewDigester(engine, tgConn, cfg.Bot.AgentChatID,
			time.Duration(cfg.Digest.StaleLockMinutes)*time.Minute,
			logger.With("component", "digest"))
		if err := sched.Add("digest", cfg.Digest.Schedule, func() { digester.Run(ctx) }); err != nil {
			logger.Error("failed to register digest schedule", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "scheduler", func() { sched.Start(ctx) })
	}

	// 6. Operator API, hosting the webhook in webhook mode
	var webhookPath string
	var webhook http.Handler
	if cfg.Bot.PublicDomain != "" {
		webhookPath = tgConn.WebhookPath()
		webhook = tgConn.WebhookHandler()
	}
	apiSrv := apiPkg.NewServer(engine, bus, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), ring, webhookPath, webhook)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 7. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	tgConn.Stop()
	logger.Info("tanyad stopped")
}

// openStore builds the configured tabular backend. The returned cleanup
// closes backend resources and may be nil.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (tabular.Store, func(), error) {
	switch cfg.Backend {
	case "sheets":
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, nil, err
		}
		st, err := tabular.NewSheetsStore(ctx, tabular.SheetsConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsJSON: creds,
			Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case "sqlite":
		st, err := tabular.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	case "memory":
		logger.Warn("memory store configured, tickets will not survive a restart")
		return tabular.NewMemStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func tgMode(publicDomain string) string {
	if publicDomain != "" {
		return "webhook"
	}
	return "polling"
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
