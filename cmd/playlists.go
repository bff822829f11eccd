package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints saved playlists, newest first.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	saved, err := r.playlists.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(saved, cmd.Bool("pretty"))
	}
	if len(saved) == 0 {
		return r.writePlain("No saved playlists. Generate one with: tastemixer generate favorites --save\n")
	}

	rows := make([][]string, len(saved))
	for i, s := range saved {
		rows[i] = []string{
			strconv.Itoa(s.Sequence),
			s.Playlist.Name,
			s.Playlist.Source,
			strconv.Itoa(s.Playlist.Len()),
			shared.FormatDuration(s.Playlist.Duration()),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
			s.Playlist.ID,
		}
	}
	return r.writeTable([]string{"#", "Name", "Source", "Tracks", "Length", "Updated", "ID"}, rows)
}

// PlaylistsShow renders one saved playlist in the requested format.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: a playlist id is required", shared.ErrMissingArgument)
	}

	saved, err := r.playlists.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := formatter.Render(saved.Playlist, cmd.String("format"))
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// PlaylistsDelete soft deletes a saved playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: a playlist id is required", shared.ErrMissingArgument)
	}
	if err := r.playlists.Delete(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

// PlaylistsExport writes saved playlists to a directory with a manifest. Without ids every saved playlist is exported.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	ids := cmd.StringSlice("id")
	if len(ids) == 0 {
		saved, err := r.playlists.List(ctx, 0)
		if err != nil {
			return err
		}
		for _, s := range saved {
			ids = append(ids, s.Playlist.ID)
		}
	}
	if len(ids) == 0 {
		return r.writePlain("No saved playlists to export.\n")
	}

	load := func(ctx context.Context, id string) (*models.Playlist, error) {
		saved, err := r.playlists.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return saved.Playlist, nil
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, load, ids, tasks.BulkExportOpts{
		Format:        cmd.String("format"),
		OutputDir:     cmd.String("output"),
		NumWorkers:    cmd.Int("workers"),
		GetCoverImage: tasks.CoverFromTracks,
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("✓ Exported %d of %d playlists to %s\n", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	for _, res := range result.Results {
		if !res.Success {
			r.writePlain("  ✗ %s: %s\n", res.PlaylistName, res.ErrorMessage)
		}
	}
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return nil
}
