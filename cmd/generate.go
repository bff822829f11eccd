package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
	"github.com/urfave/cli/v3"
)

// synthesize runs fn with a progress channel, logging every update until fn returns.
func (r *Runner) synthesize(fn func(progress chan<- tasks.ProgressUpdate) ([]models.Track, error)) ([]models.Track, error) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase.String(), "step", update.Step, "total", update.Total)
		}
	}()

	tracks, err := fn(progress)
	close(progress)
	<-done
	return tracks, err
}

// engineFor returns the runner's engine, or a freshly seeded one when --seed is set.
func (r *Runner) engineFor(cmd *cli.Command) *tasks.PlaylistEngine {
	if seed := cmd.Int("seed"); seed != 0 {
		return r.newEngine(uint64(seed))
	}
	return r.engine
}

// GenerateFavorites builds a playlist from the stored favorites.
func (r *Runner) GenerateFavorites(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	set, err := r.favorites.Load(ctx)
	if err != nil {
		return err
	}

	engine := r.engineFor(cmd)
	start := time.Now()
	var tracks []models.Track
	err = r.withReauth(ctx, func() error {
		tracks, err = r.synthesize(func(progress chan<- tasks.ProgressUpdate) ([]models.Track, error) {
			return engine.FromFavorites(ctx, set.Tracks(), progress)
		})
		return err
	})
	r.metrics.ObserveSynthesis(models.SourceFavorites, time.Since(start), len(tracks), err)
	if err != nil {
		var insufficient *tasks.InsufficientFavoritesError
		if errors.As(err, &insufficient) {
			return fmt.Errorf("%w: add at least %d favorites first (you have %d)", shared.ErrInsufficientFavorites, insufficient.Required, insufficient.Count)
		}
		return err
	}
	if len(tracks) < engine.Target() {
		r.logger.Warn("catalog exhausted before target", "found", len(tracks), "target", engine.Target())
	}

	return r.emitPlaylist(ctx, cmd, models.SourceFavorites, tracks)
}

// GeneratePreferences builds a playlist from preference flags.
func (r *Runner) GeneratePreferences(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}

	engine := r.engineFor(cmd)
	start := time.Now()
	var tracks []models.Track
	err := r.withReauth(ctx, func() error {
		sel, err := r.selection(ctx, cmd)
		if err != nil {
			return err
		}
		tracks, err = r.synthesize(func(progress chan<- tasks.ProgressUpdate) ([]models.Track, error) {
			return engine.FromPreferences(ctx, sel, progress)
		})
		return err
	})
	r.metrics.ObserveSynthesis(models.SourcePreferences, time.Since(start), len(tracks), err)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		r.writePlain("No tracks matched the selection.\n")
		return nil
	}

	return r.emitPlaylist(ctx, cmd, models.SourcePreferences, tracks)
}

// emitPlaylist renders tracks in the requested format, optionally saving the playlist and writing to a file.
func (r *Runner) emitPlaylist(ctx context.Context, cmd *cli.Command, source string, tracks []models.Track) error {
	p := models.NewPlaylist(cmd.String("name"))
	p.Source = source
	p.Replace(tracks)

	if cmd.Bool("save") {
		if err := r.requireStore(); err != nil {
			return err
		}
		saved, err := r.playlists.Create(ctx, p)
		if err != nil {
			return err
		}
		r.logger.Info("playlist saved", "id", p.ID, "sequence", saved.Sequence)
	}

	data, err := formatter.Render(p, cmd.String("format"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		return r.writePlain("✓ Wrote %d tracks to %s\n", p.Len(), path)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// selection assembles a widget selection from flags. Artist names are resolved to their best catalog match.
func (r *Runner) selection(ctx context.Context, cmd *cli.Command) (models.Selection, error) {
	sel := models.Selection{
		Genres:  cmd.StringSlice("genre"),
		Decades: cmd.IntSlice("decade"),
	}

	for _, name := range cmd.StringSlice("artist") {
		artists, err := r.engine.SearchArtists(ctx, name)
		if err != nil {
			return sel, err
		}
		if len(artists) == 0 {
			return sel, fmt.Errorf("%w: no artist matches %q", shared.ErrInvalidSelection, name)
		}
		if err := sel.ToggleArtist(artists[0]); err != nil {
			return sel, err
		}
	}

	if label := cmd.String("popularity"); label != "" {
		pr, err := popularityRange(label)
		if err != nil {
			return sel, err
		}
		sel.Popularity = &pr
	}

	if label := cmd.String("mood"); label != "" {
		mood, ok := models.LookupMood(label)
		if !ok {
			return sel, fmt.Errorf("%w: unknown mood %q", shared.ErrInvalidSelection, label)
		}
		sel.Mood = &mood
	}

	return sel, sel.Validate()
}

// popularityRange resolves a category label (case-insensitive) or a "min-max" range.
func popularityRange(label string) (models.PopularityRange, error) {
	for _, c := range models.PopularityCategories {
		if strings.EqualFold(c.Label, label) {
			return c.PopularityRange, nil
		}
	}
	var r models.PopularityRange
	if _, err := fmt.Sscanf(label, "%d-%d", &r.Min, &r.Max); err != nil {
		return r, fmt.Errorf("%w: unknown popularity %q", shared.ErrInvalidSelection, label)
	}
	return r, nil
}

// Preview prints the live preview of one preference widget.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}

	kind := cmd.StringArg("kind")
	limit, offset := cmd.Int("limit"), cmd.Int("offset")

	var tracks []models.Track
	err := r.withReauth(ctx, func() error {
		sel, err := r.selection(ctx, cmd)
		if err != nil {
			return err
		}

		switch kind {
		case "artists":
			tracks, err = r.engine.PreviewArtists(ctx, sel.ArtistIDs(), limit)
		case "genres":
			tracks, err = r.engine.PreviewGenres(ctx, sel.Genres, limit, offset)
		case "decades":
			tracks, err = r.engine.PreviewDecades(ctx, sel.Decades, limit, offset)
		case "popularity":
			if sel.Popularity == nil {
				return fmt.Errorf("%w: --popularity is required", shared.ErrMissingArgument)
			}
			tracks, err = r.engine.PreviewPopularity(ctx, *sel.Popularity, limit, offset)
		case "mood":
			if sel.Mood == nil {
				return fmt.Errorf("%w: --mood is required", shared.ErrMissingArgument)
			}
			tracks, err = r.engine.PreviewMood(ctx, *sel.Mood, limit)
		default:
			return fmt.Errorf("%w: unknown preview %q (want artists, genres, decades, popularity or mood)", shared.ErrInvalidArgument, kind)
		}
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if tracks == nil {
			tracks = []models.Track{}
		}
		return r.writeJSON(tracks, true)
	}
	if len(tracks) == 0 {
		return r.writePlain("No preview tracks.\n")
	}
	return r.writeTable(trackHeader, trackRows(tracks))
}
