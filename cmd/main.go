package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/metrics"
	"github.com/desertthunder/tastemixer/internal/services"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// placeholderClientID is the client id shipped in the config template.
const placeholderClientID = "your_spotify_client_id"

func main() {
	logger := shared.NewLogger(nil)
	if os.Getenv("TASTEMIXER_DEBUG") != "" {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	configPath := os.Getenv("TASTEMIXER_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	config, err := shared.LoadOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Metrics:    metrics.New(),
		Logger:     logger,
	}

	if db, err := shared.OpenDatabase(config.Database); err != nil {
		logger.Debug("database unavailable", "path", config.Database.Path, "error", err)
	} else {
		defer db.Close()
		opts.DB = db
	}

	var spotifyService *services.SpotifyService
	if creds := config.Credentials.Spotify; creds.ClientID != "" && creds.ClientSecret != "" && creds.ClientID != placeholderClientID {
		if svc, err := services.NewSpotifyService(creds.Map(), services.WithMarket(config.Catalog.Market)); err != nil {
			logger.Warn("spotify disabled", "error", err)
		} else {
			if token := creds.Token(); token != nil {
				if err := svc.OAuthenticate(ctx, token); err != nil {
					logger.Warn("stored spotify token rejected", "error", err)
				}
			}
			spotifyService = svc
			opts.Spotify = svc
			opts.Catalog = services.NewGuardedCatalog(svc, services.GuardOptions{
				RequestsPerSecond: config.Catalog.RequestsPerSecond,
				Burst:             config.Catalog.Burst,
				BreakerFailures:   uint32(max(config.Catalog.BreakerFailures, 0)),
				BreakerCooldown:   time.Duration(config.Catalog.BreakerCooldown) * time.Second,
				Logger:            shared.WithLogger(logger, "component", "catalog"),
				Metrics:           opts.Metrics,
			})
		}
	}

	runner := NewRunner(opts)
	if spotifyService != nil {
		spotifyService.SetTokenRefreshCallback(func(token *oauth2.Token) {
			if err := runner.saveTokens(token); err != nil {
				logger.Warn("failed to persist refreshed token", "error", err)
			}
		})
	}

	app := &cli.Command{
		Name:     "tastemixer",
		Usage:    "Build playlists from your Spotify favorites and taste preferences",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
