package tasks

import (
	"context"
	"strings"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/services"
)

const (
	DefaultPreviewLimit = 8
	widgetSearchLimit   = 10
	previewSources      = 2
	sampleSize          = 50
)

// PreviewArtists samples top tracks of the first two selected artists.
func (e *PlaylistEngine) PreviewArtists(ctx context.Context, artistIDs []string, limit int) ([]models.Track, error) {
	limit = previewLimit(limit)
	ids := artistIDs[:min(previewSources, len(artistIDs))]
	fetches := make([]fetchFunc, len(ids))
	for i, id := range ids {
		fetches[i] = e.topTracks(id)
	}
	return e.preview(ctx, fetches, limit, nil)
}

// PreviewGenres samples the first two selected genres. The per-genre limit and offset are split across all
// selected genres so paging through previews advances every genre evenly.
func (e *PlaylistEngine) PreviewGenres(ctx context.Context, genres []string, limit, offset int) ([]models.Track, error) {
	if len(genres) == 0 {
		return nil, nil
	}
	limit = previewLimit(limit)
	n := len(genres)
	perGenre := (limit + n - 1) / n

	var fetches []fetchFunc
	for _, g := range genres[:min(previewSources, n)] {
		fetches = append(fetches, e.search(services.GenreQuery(g), perGenre, offset/n))
	}
	return e.preview(ctx, fetches, limit, nil)
}

// PreviewDecades samples every selected decade through a year range search.
func (e *PlaylistEngine) PreviewDecades(ctx context.Context, decades []int, limit, offset int) ([]models.Track, error) {
	if len(decades) == 0 {
		return nil, nil
	}
	limit = previewLimit(limit)
	n := len(decades)
	perDecade := (limit + n - 1) / n

	fetches := make([]fetchFunc, n)
	for i, d := range decades {
		fetches[i] = e.search(services.DecadeQuery(d), perDecade, offset/n)
	}
	return e.preview(ctx, fetches, limit, nil)
}

// PreviewPopularity fetches one broad, unranked sample and keeps the tracks inside r.
//
// Coverage depends on catalog ordering: tracks matching r that are not in the sample are never seen.
func (e *PlaylistEngine) PreviewPopularity(ctx context.Context, r models.PopularityRange, limit, offset int) ([]models.Track, error) {
	limit = previewLimit(limit)
	fetchLimit := min(max(3*limit, sampleSize), sampleSize)
	fetches := []fetchFunc{e.search(services.WildcardQuery, fetchLimit, offset)}
	return e.preview(ctx, fetches, limit, func(tracks []models.Track) []models.Track {
		return FilterTracks(tracks, nil, &r)
	})
}

// PreviewMood returns a shuffled broad sample. The catalog offers no audio features the engine can match the
// mood against, so the mood only identifies the request.
func (e *PlaylistEngine) PreviewMood(ctx context.Context, _ models.Mood, limit int) ([]models.Track, error) {
	limit = previewLimit(limit)
	fetches := []fetchFunc{e.search(services.WildcardQuery, sampleSize, 0)}
	return e.preview(ctx, fetches, limit, nil)
}

// SearchTracks backs the track widget's free text search.
func (e *PlaylistEngine) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	tracks, err := e.fetch(ctx, e.search(query, widgetSearchLimit, 0))
	if err != nil {
		if abort(ctx, err) {
			return nil, err
		}
		e.logger.Debug("track search failed", "query", query, "err", err)
		return nil, nil
	}
	return tracks, nil
}

// SearchArtists backs the artist widget's free text search.
func (e *PlaylistEngine) SearchArtists(ctx context.Context, query string) ([]models.Artist, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var artists []models.Artist
	err := e.call(ctx, func(ctx context.Context) (err error) {
		artists, err = e.catalog.SearchArtists(ctx, query, widgetSearchLimit)
		return err
	})
	if err != nil {
		if abort(ctx, err) {
			return nil, err
		}
		e.logger.Debug("artist search failed", "query", query, "err", err)
		return nil, nil
	}
	return artists, nil
}

// preview runs fetches, optionally filters the merged result, then dedups, shuffles and cuts it to limit.
func (e *PlaylistEngine) preview(ctx context.Context, fetches []fetchFunc, limit int, filter func([]models.Track) []models.Track) ([]models.Track, error) {
	var all []models.Track
	err := e.stage(ctx, Sample, nil, fetches, e.concurrency, never, func(_ int, tracks []models.Track) {
		all = append(all, tracks...)
	})
	if err != nil {
		return nil, err
	}
	if filter != nil {
		all = filter(all)
	}

	out := Dedup(all)
	e.shuffle(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func previewLimit(limit int) int {
	if limit <= 0 {
		return DefaultPreviewLimit
	}
	return limit
}
