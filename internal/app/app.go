// Package app implements lifecycle management and component
// orchestration for the lumiod service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/lumio-labs/lumiod/internal/api"
	"github.com/lumio-labs/lumiod/internal/discord"
	"github.com/lumio-labs/lumiod/internal/moderation"
)

// App owns the long-running components and manages their lifecycle.
// The Telegram bot and Discord bridge are optional; the poller and the
// management API always run.
type App struct {
	logger    *slog.Logger
	tgBot     *tgbot.Bot
	dcBridge  *discord.Bridge
	poller    *moderation.Poller
	apiServer *api.Server
}

// New creates the application orchestrator.
func New(logger *slog.Logger, tgBot *tgbot.Bot, dcBridge *discord.Bridge, poller *moderation.Poller, apiServer *api.Server) *App {
	return &App{
		logger:    logger.With("component", "orchestrator"),
		tgBot:     tgBot,
		dcBridge:  dcBridge,
		poller:    poller,
		apiServer: apiServer,
	}
}

// Run starts all components and blocks until the context is cancelled
// or a component fails. Shutdown is graceful: the poller stops taking
// sweeps, the bots disconnect, and the API server drains.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if a.tgBot != nil {
		g.Go(func() error {
			a.logger.Info("Starting Telegram bot listener...")
			a.tgBot.Start(gCtx)
			a.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	if a.dcBridge != nil {
		g.Go(func() error {
			a.logger.Info("Starting Discord bridge...")
			if err := a.dcBridge.Run(gCtx); err != nil {
				return fmt.Errorf("discord bridge failed: %w", err)
			}
			a.logger.Info("Discord bridge stopped.")
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info("Starting verdict poller...")
		if err := a.poller.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start poller: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping poller...")

		if err := a.poller.Stop(); err != nil {
			a.logger.Error("Error stopping poller", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.apiServer.Run(gCtx)
	})

	a.logger.Info("Orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
