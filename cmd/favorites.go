package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/urfave/cli/v3"
)

// trackRows formats tracks as table rows numbered from 1.
func trackRows(tracks []models.Track) [][]string {
	rows := make([][]string, len(tracks))
	for i, t := range tracks {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			t.Name,
			t.ArtistNames(),
			t.Album.Name,
			shared.FormatDuration(t.DurationMS),
			t.PopularityLabel(),
			t.ID,
		}
	}
	return rows
}

var trackHeader = []string{"#", "Title", "Artists", "Album", "Length", "Popularity", "ID"}

// FavoritesList prints the stored favorites.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	set, err := r.favorites.Load(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(set, cmd.Bool("pretty"))
	}
	if set.Len() == 0 {
		return r.writePlain("No favorites yet. Add one with: tastemixer favorites add \"<search>\"\n")
	}
	return r.writeTable(trackHeader, trackRows(set.Tracks()))
}

// FavoritesAdd searches the catalog and favorites the chosen result.
func (r *Runner) FavoritesAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}

	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: a search query is required", shared.ErrMissingArgument)
	}
	pick := cmd.Int("pick")

	var results []models.Track
	err := r.withReauth(ctx, func() error {
		var err error
		results, err = r.engine.SearchTracks(ctx, query)
		return err
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("%w: no tracks match %q", shared.ErrTrackNotFound, query)
	}

	if pick == 0 {
		r.writePlain("Results for %q (re-run with --pick N to favorite one):\n", query)
		return r.writeTable(trackHeader, trackRows(results))
	}
	if pick < 1 || pick > len(results) {
		return fmt.Errorf("%w: --pick must be between 1 and %d", shared.ErrInvalidArgument, len(results))
	}

	track := results[pick-1]
	_, added, err := r.favorites.Add(ctx, track)
	if err != nil {
		return err
	}
	if !added {
		return r.writePlain("%q is already a favorite\n", track.Name)
	}
	return r.writePlain("✓ Added %q by %s\n", track.Name, track.ArtistNames())
}

// FavoritesRemove removes a favorite by track id.
func (r *Runner) FavoritesRemove(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: a track id is required", shared.ErrMissingArgument)
	}

	_, removed, err := r.favorites.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s is not a favorite", shared.ErrTrackNotFound, id)
	}
	return r.writePlain("✓ Removed %s\n", id)
}

// FavoritesImport merges favorites from a JSON file holding an array of tracks.
func (r *Runner) FavoritesImport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: a file path is required", shared.ErrMissingArgument)
	}

	incoming := models.NewFavoriteSet()
	if err := readJSONFile(path, incoming); err != nil {
		return err
	}

	set, err := r.favorites.Load(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("replace") {
		set = models.NewFavoriteSet()
	}

	added := 0
	for _, t := range incoming.Tracks() {
		if t.ID == "" {
			r.logger.Warn("skipping track without id", "name", t.Name)
			continue
		}
		if set.Add(t) {
			added++
		}
	}
	if err := r.favorites.Save(ctx, set); err != nil {
		return err
	}

	r.logger.Info("favorites imported", "path", path, "added", added, "total", set.Len())
	return r.writePlain("✓ Imported %d new favorites (%d total)\n", added, set.Len())
}

// FavoritesExport writes the favorites as a JSON array to a file, or to stdout when no path is given.
func (r *Runner) FavoritesExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	set, err := r.favorites.Load(ctx)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		return r.writeJSON(set, true)
	}

	data, err := shared.MarshalJSON(set, true)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return r.writePlain("✓ Exported %d favorites to %s\n", set.Len(), path)
}
