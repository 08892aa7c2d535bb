package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helpdeck/helpdeck/internal/config"
	"github.com/helpdeck/helpdeck/internal/initialization"
	"github.com/helpdeck/helpdeck/internal/server"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the helpdeck API server",
		Long: `Start the HTTP API: ingestion, widget chat, analytics and the knowledge gap
scheduler. Configuration comes from the environment and an optional
helpdeck.yaml; see the README for the full list of variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	return cmd
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	deps, err := initialization.BuildAppDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application dependencies")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()

		if err := deps.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("Shutdown cleanup finished with errors")
		}
	}()

	deps.GapScheduler.Start(ctx)

	if deps.BlobWatcher != nil {
		if err := deps.BlobWatcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start blob watcher")
		}
	}

	app := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
		Config:              cfg,
		TokenIssuer:         deps.TokenIssuer,
		WidgetController:    deps.WidgetController,
		IngestionController: deps.IngestionController,
		ChatController:      deps.ChatController,
		AnalyticsController: deps.AnalyticsController,
	})

	log.Info().Str("address", cfg.HTTPAddress).Msg("Starting helpdeck API server")

	if err := app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Helpdeck API server stopped")

	return nil
}
