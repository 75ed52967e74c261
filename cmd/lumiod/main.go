// Package main contains the entrypoint for the lumiod service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/lumio-labs/lumiod/internal/api"
	"github.com/lumio-labs/lumiod/internal/app"
	"github.com/lumio-labs/lumiod/internal/assistant"
	"github.com/lumio-labs/lumiod/internal/config"
	"github.com/lumio-labs/lumiod/internal/database"
	"github.com/lumio-labs/lumiod/internal/discord"
	"github.com/lumio-labs/lumiod/internal/logger"
	"github.com/lumio-labs/lumiod/internal/moderation"
	"github.com/lumio-labs/lumiod/internal/oracle"
	"github.com/lumio-labs/lumiod/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles
// graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	oracleClient := oracle.NewClient(cfg.Oracle, log)
	ledger := moderation.NewLedger()

	var assistantClient assistant.Client
	if cfg.Assistant.APIKey != "" {
		assistantClient, err = assistant.NewClient(ctx, cfg.Assistant, log)
		if err != nil {
			log.Error("Failed to initialize assistant client", "error", err)
			return 1
		}
	} else {
		log.Warn("Assistant API key not configured, /ask will be unavailable")
	}

	enforcers := make(map[moderation.Platform]moderation.VerdictEnforcer)
	platforms := make(map[moderation.Platform]api.Platform)

	var tg *tgbot.Bot
	if cfg.Telegram.Token != "" {
		hDeps := telegram.HandlerDeps{
			Logger:    log,
			Store:     store,
			Assistant: assistantClient,
			Oracle:    oracleClient,
			Ledger:    ledger,
		}

		botOpts := []tgbot.Option{
			tgbot.WithMiddlewares(logger.Middleware(log)),
			tgbot.WithDefaultHandler(telegram.NewMessageTap(hDeps)),
		}
		tg, err = telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}

		if err := telegram.RegisterHandlers(tg, log, telegram.RegisterAllCommands(hDeps)); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return 1
		}

		tgActions := telegram.NewActions(tg, log)
		enforcers[moderation.PlatformTelegram] = moderation.NewEnforcer(
			tgActions, oracleClient, cfg.Moderation.BanDuration, log, moderation.PlatformTelegram)
		platforms[moderation.PlatformTelegram] = telegram.NewPlatform(tgActions)
	} else {
		log.Warn("Telegram token not configured, Telegram bridge disabled")
	}

	var dcBridge *discord.Bridge
	if cfg.Discord.Token != "" {
		dcBridge, err = discord.NewBridge(cfg.Discord.Token, discord.Deps{
			Logger:    log,
			Store:     store,
			Assistant: assistantClient,
			Oracle:    oracleClient,
			Ledger:    ledger,
		})
		if err != nil {
			log.Error("Failed to create Discord bridge", "error", err)
			return 1
		}

		dcActions := discord.NewActions(dcBridge.Session(), log)
		enforcers[moderation.PlatformDiscord] = moderation.NewEnforcer(
			dcActions, oracleClient, cfg.Moderation.BanDuration, log, moderation.PlatformDiscord)
		platforms[moderation.PlatformDiscord] = discord.NewPlatform(dcBridge.Session())
	} else {
		log.Warn("Discord token not configured, Discord bridge disabled")
	}

	poller := moderation.NewPoller(
		ledger, oracleClient, enforcers,
		cfg.Moderation.PollInterval, cfg.Moderation.MaxConcurrentFetches, log)

	apiHandler := api.NewHandler(store, oracleClient, platforms, log)
	apiServer := api.NewServer(cfg.API.Addr, apiHandler, log)

	service := app.New(log, tg, dcBridge, poller, apiServer)

	log.Info("Starting lumiod...")
	runErr := service.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
