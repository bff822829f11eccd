package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/services"
	"github.com/desertthunder/tastemixer/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Engine defaults.
const (
	DefaultTarget       = 30
	DefaultMinFavorites = 5
	DefaultTimeout      = 10 * time.Second

	searchLimit        = 20
	albumSearchLimit   = 10
	albumSearchSources = 10
	relatedPerArtist   = 3
	maxRelatedLookups  = 20
)

// InsufficientFavoritesError reports a favorites-driven synthesis attempted with too few favorites.
type InsufficientFavoritesError struct {
	Count    int
	Required int
}

func (e *InsufficientFavoritesError) Error() string {
	return fmt.Sprintf("%v: need at least %d favorite tracks, have %d", shared.ErrInsufficientFavorites, e.Required, e.Count)
}

func (e *InsufficientFavoritesError) Is(target error) bool {
	return target == shared.ErrInsufficientFavorites
}

// Synthesizer builds candidate playlists from the catalog.
type Synthesizer interface {
	// FromPreferences merges top tracks of the selected artists with genre searches, then filters by decade and
	// popularity.
	FromPreferences(ctx context.Context, sel models.Selection, progress chan<- ProgressUpdate) ([]models.Track, error)

	// FromFavorites expands the favorite set through a staged fallback chain and samples the result.
	FromFavorites(ctx context.Context, favorites []models.Track, progress chan<- ProgressUpdate) ([]models.Track, error)
}

// PlaylistEngine implements [Synthesizer] and the widget previews on top of a [services.Catalog].
type PlaylistEngine struct {
	catalog      services.Catalog
	target       int
	minFavorites int
	concurrency  int
	timeout      time.Duration
	logger       *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// EngineOption configures a [PlaylistEngine].
type EngineOption func(*PlaylistEngine)

// WithTarget sets the output size of favorites-driven synthesis and the cap of preference-driven synthesis.
func WithTarget(n int) EngineOption {
	return func(e *PlaylistEngine) {
		if n > 0 {
			e.target = n
		}
	}
}

func WithMinFavorites(n int) EngineOption {
	return func(e *PlaylistEngine) {
		if n > 0 {
			e.minFavorites = n
		}
	}
}

// WithConcurrency sets how many queries of one stage may be in flight at once. 1 is strictly sequential.
func WithConcurrency(n int) EngineOption {
	return func(e *PlaylistEngine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout bounds every individual catalog query.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *PlaylistEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) EngineOption {
	return func(e *PlaylistEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRand injects the random source used for shuffling, making sampling reproducible.
func WithRand(r *rand.Rand) EngineOption {
	return func(e *PlaylistEngine) {
		if r != nil {
			e.rng = r
		}
	}
}

// NewPlaylistEngine creates a new PlaylistEngine querying catalog.
func NewPlaylistEngine(catalog services.Catalog, opts ...EngineOption) *PlaylistEngine {
	e := &PlaylistEngine{
		catalog:      catalog,
		target:       DefaultTarget,
		minFavorites: DefaultMinFavorites,
		concurrency:  1,
		timeout:      DefaultTimeout,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

func (e *PlaylistEngine) Target() int { return e.target }

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FromPreferences implements [Synthesizer]. Tracks and mood in sel do not take part in synthesis.
func (e *PlaylistEngine) FromPreferences(ctx context.Context, sel models.Selection, progress chan<- ProgressUpdate) ([]models.Track, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var all []models.Track
	collect := func(_ int, tracks []models.Track) { all = append(all, tracks...) }

	artists := sel.ArtistIDs()
	fetches := make([]fetchFunc, len(artists))
	for i, id := range artists {
		fetches[i] = e.topTracks(id)
	}
	if err := e.stage(ctx, TopTracks, progress, fetches, e.concurrency, never, collect); err != nil {
		return nil, err
	}

	fetches = make([]fetchFunc, len(sel.Genres))
	for i, g := range sel.Genres {
		fetches[i] = e.search(services.GenreQuery(g), searchLimit, 0)
	}
	if err := e.stage(ctx, GenreSearch, progress, fetches, e.concurrency, never, collect); err != nil {
		return nil, err
	}

	before := len(all)
	all = FilterTracks(all, sel.Decades, sel.Popularity)
	e.sendProgress(progress, filterUpdate(before, len(all)))

	out := Dedup(all)
	if len(out) > e.target {
		out = out[:e.target]
	}
	e.sendProgress(progress, sampleUpdate(out, e.target))
	return out, nil
}

// FromFavorites implements [Synthesizer].
//
// Stages run in a fixed order, each skipped once enough candidates exist: top tracks of every favorite artist,
// related-artist expansion, search by primary artist name, search by album name, and an offset backfill. Tracks
// already in favorites never enter the pool. A query that fails contributes nothing, except a rejected credential
// which aborts synthesis with [shared.ErrCredentialInvalid].
func (e *PlaylistEngine) FromFavorites(ctx context.Context, favorites []models.Track, progress chan<- ProgressUpdate) ([]models.Track, error) {
	if len(favorites) < e.minFavorites {
		return nil, &InsufficientFavoritesError{Count: len(favorites), Required: e.minFavorites}
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	exclude := make(map[string]bool, len(favorites))
	for _, f := range favorites {
		exclude[f.ID] = true
	}
	p := newPool(exclude)
	artists := distinctArtists(favorites)

	full := func() bool { return p.Len() >= 2*e.target }
	low := func() bool { return float64(p.Len()) < 1.5*float64(e.target) }
	merge := func(_ int, tracks []models.Track) { p.add(tracks) }

	fetches := make([]fetchFunc, len(artists))
	for i, a := range artists {
		fetches[i] = e.topTracks(a.ID)
	}
	if err := e.stage(ctx, TopTracks, progress, fetches, e.concurrency, never, merge); err != nil {
		return nil, err
	}

	if err := e.expandRelated(ctx, p, artists, progress); err != nil {
		return nil, err
	}

	if low() {
		var fetches []fetchFunc
		for _, f := range favorites {
			if a, ok := f.PrimaryArtist(); ok && a.Name != "" {
				fetches = append(fetches, e.search(services.ArtistQuery(a.Name), searchLimit, 0))
			}
		}
		if err := e.stage(ctx, ArtistSearch, progress, fetches, e.concurrency, full, merge); err != nil {
			return nil, err
		}
	}

	if low() {
		var fetches []fetchFunc
		for _, f := range favorites[:min(albumSearchSources, len(favorites))] {
			if f.Album.Name != "" {
				fetches = append(fetches, e.search(services.AlbumQuery(f.Album.Name), albumSearchLimit, 0))
			}
		}
		if err := e.stage(ctx, AlbumSearch, progress, fetches, e.concurrency, full, merge); err != nil {
			return nil, err
		}
	}

	if p.Len() < e.target {
		// The offset of each backfill query depends on the pool size left by the previous one.
		fetches := make([]fetchFunc, 0, len(artists))
		for _, a := range artists {
			if a.Name == "" {
				continue
			}
			fetches = append(fetches, func(ctx context.Context) ([]models.Track, error) {
				return e.catalog.SearchTracks(ctx, services.ArtistQuery(a.Name), searchLimit, p.Len())
			})
		}
		enough := func() bool { return p.Len() >= e.target }
		if err := e.stage(ctx, Backfill, progress, fetches, 1, enough, merge); err != nil {
			return nil, err
		}
	}

	out := p.tracks
	e.shuffle(out)
	if len(out) < e.target {
		e.logger.Warn("catalog returned fewer candidates than requested", "found", len(out), "target", e.target)
	} else {
		out = out[:e.target]
	}
	e.sendProgress(progress, sampleUpdate(out, e.target))
	return out, nil
}

// expandRelated fetches top tracks of up to three related artists per favorite artist, capped globally at
// min(3×artists, 20) successful lookups.
func (e *PlaylistEngine) expandRelated(ctx context.Context, p *pool, artists []models.Artist, progress chan<- ProgressUpdate) error {
	maxLookups := min(relatedPerArtist*len(artists), maxRelatedLookups)
	processed := 0
	capped := func() bool { return processed >= maxLookups }

	for i, a := range artists {
		if p.Len() >= 2*e.target || capped() {
			break
		}
		e.sendProgress(progress, stageUpdate(RelatedArtists, i+1, len(artists), p.Len()))

		var related []models.Artist
		err := e.call(ctx, func(ctx context.Context) (err error) {
			related, err = e.catalog.RelatedArtists(ctx, a.ID)
			return err
		})
		if err != nil {
			if abort(ctx, err) {
				return err
			}
			e.logger.Debug("related artists query failed", "artist", a.ID, "err", err)
			continue
		}

		related = related[:min(relatedPerArtist, len(related))]
		fetches := make([]fetchFunc, len(related))
		for j, r := range related {
			fetches[j] = e.topTracks(r.ID)
		}
		err = e.stage(ctx, RelatedArtists, nil, fetches, e.concurrency, capped, func(_ int, tracks []models.Track) {
			p.add(tracks)
			processed++
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchFunc is one catalog query yielding tracks.
type fetchFunc func(ctx context.Context) ([]models.Track, error)

type outcome struct {
	tracks []models.Track
	err    error
}

func never() bool { return false }

func (e *PlaylistEngine) topTracks(artistID string) fetchFunc {
	return func(ctx context.Context) ([]models.Track, error) {
		return e.catalog.ArtistTopTracks(ctx, artistID)
	}
}

func (e *PlaylistEngine) search(query string, limit, offset int) fetchFunc {
	return func(ctx context.Context) ([]models.Track, error) {
		return e.catalog.SearchTracks(ctx, query, limit, offset)
	}
}

// stage runs fetches in batches of width queries. done is consulted before each batch starts and before each
// result is merged; once it reports true the rest of the stage is dropped, so the merged pool matches a
// sequential run whatever the width. Failed queries are logged and skipped.
func (e *PlaylistEngine) stage(
	ctx context.Context,
	phase Phase,
	progress chan<- ProgressUpdate,
	fetches []fetchFunc,
	width int,
	done func() bool,
	merge func(i int, tracks []models.Track),
) error {
	width = max(width, 1)
	for start := 0; start < len(fetches); start += width {
		if done() {
			return nil
		}
		end := min(start+width, len(fetches))
		outcomes, err := e.batch(ctx, fetches[start:end])
		if err != nil {
			return err
		}

		for i, o := range outcomes {
			if done() {
				return nil
			}
			n := start + i + 1
			if o.err != nil {
				e.logger.Debug("catalog query failed", "phase", phase, "query", n, "err", o.err)
			} else {
				merge(start+i, o.tracks)
			}
			e.sendProgress(progress, ProgressUpdate{
				Phase:   phase,
				Step:    n,
				Total:   len(fetches),
				Message: fmt.Sprintf("[%d/%d] %s", n, len(fetches), phase),
			})
		}
	}
	return nil
}

// batch runs fetches concurrently and returns their outcomes in order.
func (e *PlaylistEngine) batch(ctx context.Context, fetches []fetchFunc) ([]outcome, error) {
	out := make([]outcome, len(fetches))
	if len(fetches) == 1 {
		tracks, err := e.fetch(ctx, fetches[0])
		if abort(ctx, err) {
			return nil, err
		}
		out[0] = outcome{tracks: tracks, err: err}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(fetches))
	for i, fetch := range fetches {
		g.Go(func() error {
			tracks, err := e.fetch(gctx, fetch)
			if abort(ctx, err) {
				return err
			}
			out[i] = outcome{tracks: tracks, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *PlaylistEngine) fetch(ctx context.Context, fn fetchFunc) (tracks []models.Track, err error) {
	err = e.call(ctx, func(ctx context.Context) error {
		tracks, err = fn(ctx)
		return err
	})
	return tracks, err
}

// call runs fn under the per-request timeout.
func (e *PlaylistEngine) call(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return fn(ctx)
}

// abort reports whether err ends synthesis instead of being absorbed as an empty contribution: a missing or
// rejected credential, or cancellation of the caller's context.
func abort(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrCredentialInvalid) || errors.Is(err, shared.ErrNotAuthenticated) {
		return true
	}
	return ctx.Err() != nil
}

func (e *PlaylistEngine) shuffle(tracks []models.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
}

// pool is the deduplicated candidate set of one synthesis call.
type pool struct {
	exclude map[string]bool
	seen    map[string]bool
	tracks  []models.Track
}

func newPool(exclude map[string]bool) *pool {
	return &pool{exclude: exclude, seen: map[string]bool{}}
}

func (p *pool) add(tracks []models.Track) {
	for _, t := range tracks {
		if t.ID == "" || p.exclude[t.ID] || p.seen[t.ID] {
			continue
		}
		p.seen[t.ID] = true
		p.tracks = append(p.tracks, t)
	}
}

func (p *pool) Len() int { return len(p.tracks) }

// distinctArtists lists every artist credited across favorites in order of first appearance.
func distinctArtists(favorites []models.Track) []models.Artist {
	seen := map[string]bool{}
	var out []models.Artist
	for _, f := range favorites {
		for _, a := range f.Artists {
			if a.ID == "" || seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

// Dedup keeps the first track of every id, preserving order.
func Dedup(tracks []models.Track) []models.Track {
	p := newPool(nil)
	p.add(tracks)
	return p.tracks
}

// FilterTracks keeps tracks released within any of decades and with popularity inside r. An empty decade list or
// nil range disables that filter.
func FilterTracks(tracks []models.Track, decades []int, r *models.PopularityRange) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if len(decades) > 0 && !models.InDecades(t.Year(), decades) {
			continue
		}
		if r != nil && !r.Contains(t.Popularity) {
			continue
		}
		out = append(out, t)
	}
	return out
}
