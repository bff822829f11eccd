package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/ui"
	"github.com/urfave/cli/v3"
)

// Dashboard launches the interactive terminal dashboard.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	thumbs := graph.NewThumbnails(ctx, r.httpClient, shared.WithLogger(fileLogger, "component", "thumbs"))
	model := ui.NewModel(ctx, ui.Deps{
		Engine:    r.engine,
		Favorites: r.favorites,
		Playlists: r.playlists,
		Graph:     graph.NewLoop(r.newSimulation(0), r.config.Graph.FPS, fileLogger),
		Thumbs:    thumbs,
		Logger:    fileLogger,
		ExportDir: cmd.String("export-dir"),
		FPS:       cmd.Int("fps"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
