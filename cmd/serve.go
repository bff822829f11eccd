package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/server"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the dashboard JSON API, the OAuth callback and the metrics endpoint under one supervisor, next to
// the graph loop that animates the favorites layout.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	cfg := r.config.Server

	loop := graph.NewLoop(r.newSimulation(0), r.config.Graph.FPS, shared.WithLogger(r.logger, "component", "graph"))
	thumbs := graph.NewThumbnails(ctx, r.httpClient, shared.WithLogger(r.logger, "component", "thumbs"))

	dashboard := server.NewDashboardHandler(server.DashboardDeps{
		Catalog:        r.catalog,
		Engine:         r.engine,
		Favorites:      r.favorites,
		Playlists:      r.playlists,
		Graph:          loop,
		Thumbs:         thumbs,
		Metrics:        r.metrics,
		Logger:         r.logger,
		AllowedOrigins: cfg.AllowedOrigins,
		StreamFPS:      cfg.StreamFPS,
	})
	if err := dashboard.Sync(ctx); err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	router := server.NewBasicRouter()
	router.Use(
		server.RequestID(),
		server.Logging(shared.WithLogger(r.logger, "component", "http")),
		server.Recover(r.logger),
		server.CORS(cfg.AllowedOrigins),
		server.RateLimit(cfg.RateLimit, cfg.RateWindow()),
		server.Metrics(r.metrics),
	)
	router.Handler(dashboard)
	router.Handle(http.MethodGet, "/metrics", r.metrics.Handler())
	r.serveOAuth(ctx, router)

	addr := cfg.Addr()
	if override := cmd.String("addr"); override != "" {
		addr = override
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := server.NewSupervisor(r.logger)
	sup.Add(server.NewHTTPService(httpServer, cfg.ShutdownTimeout()))
	sup.Add(loop)

	r.logger.Info("serving dashboard API", "addr", addr, "favorites", len(loop.Snapshot().Nodes))
	r.writePlain("→ Listening on http://%s (Ctrl+C to stop)\n", addr)

	err := sup.Serve(ctx)
	thumbs.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped: %w", err)
	}
	r.logger.Info("server stopped")
	return nil
}

// serveOAuth mounts the one-shot OAuth callback when the catalog has no credential yet, so the user can
// authorize from the browser while the server runs.
func (r *Runner) serveOAuth(ctx context.Context, router *server.BasicRouter) {
	if r.spotify == nil {
		return
	}
	if a, ok := r.spotify.(interface{ Authenticated() bool }); ok && a.Authenticated() {
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		r.logger.Warn("oauth callback disabled", "error", err)
		return
	}
	handler := server.NewOAuthHandler(r.spotify.OAuthConfig(), state)
	router.Handler(handler)
	r.logger.Warn("not authorized with Spotify; open this URL to connect", "url", r.spotify.GetAuthURL(state))

	go func() {
		select {
		case result := <-handler.Result():
			if err := result.Error(); err != nil {
				r.logger.Error("authorization failed", "error", err)
				return
			}
			if err := r.saveTokens(result.Token); err != nil {
				r.logger.Error("failed to save tokens", "error", err)
			}
			if err := r.spotify.OAuthenticate(ctx, result.Token); err != nil {
				r.logger.Error("failed to install token", "error", err)
				return
			}
			r.logger.Info("connected to Spotify")
		case <-ctx.Done():
		}
	}()
}
