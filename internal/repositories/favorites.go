package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
)

// FavoritesKey is the namespaced key holding the favorite set.
const FavoritesKey = "tastemixer:spotify_favorites"

// FavoriteRepository persists the favorite set as a single JSON array. Every mutation rewrites the whole
// array.
type FavoriteRepository struct {
	mu     sync.Mutex
	store  *KVStore
	key    string
	logger *log.Logger
}

// NewFavoriteRepository creates a repository over store using [FavoritesKey].
func NewFavoriteRepository(store *KVStore, logger *log.Logger) *FavoriteRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &FavoriteRepository{store: store, key: FavoritesKey, logger: logger}
}

// Load reads the favorite set. A missing key and an unparseable value both yield an empty set; the latter is
// logged and never returned as an error.
func (r *FavoriteRepository) Load(ctx context.Context) (*models.FavoriteSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *FavoriteRepository) load(ctx context.Context) (*models.FavoriteSet, error) {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return models.NewFavoriteSet(), nil
	}

	set := models.NewFavoriteSet()
	if err := json.Unmarshal([]byte(raw), set); err != nil {
		r.logger.Warn("discarding persisted favorites", "key", r.key, "error", fmt.Errorf("%w: %v", shared.ErrMalformedState, err))
		return models.NewFavoriteSet(), nil
	}
	return set, nil
}

// Save replaces the stored favorites with set.
func (r *FavoriteRepository) Save(ctx context.Context, set *models.FavoriteSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, set)
}

func (r *FavoriteRepository) save(ctx context.Context, set *models.FavoriteSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}
	return r.store.Put(ctx, r.key, string(data))
}

// mutate loads, applies fn and saves when fn reports a change.
func (r *FavoriteRepository) mutate(ctx context.Context, fn func(*models.FavoriteSet) bool) (*models.FavoriteSet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, err := r.load(ctx)
	if err != nil {
		return nil, false, err
	}
	if !fn(set) {
		return set, false, nil
	}
	if err := r.save(ctx, set); err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// Add stores t as a favorite. added is false when it was already present.
func (r *FavoriteRepository) Add(ctx context.Context, t models.Track) (set *models.FavoriteSet, added bool, err error) {
	if t.ID == "" {
		return nil, false, fmt.Errorf("%w: track without id", shared.ErrInvalidInput)
	}
	return r.mutate(ctx, func(s *models.FavoriteSet) bool { return s.Add(t) })
}

// Remove drops the favorite with id. removed is false when it was not a favorite.
func (r *FavoriteRepository) Remove(ctx context.Context, id string) (set *models.FavoriteSet, removed bool, err error) {
	return r.mutate(ctx, func(s *models.FavoriteSet) bool { return s.Remove(id) })
}

// Toggle flips t's membership and reports whether it is a favorite afterwards.
func (r *FavoriteRepository) Toggle(ctx context.Context, t models.Track) (*models.FavoriteSet, bool, error) {
	if t.ID == "" {
		return nil, false, fmt.Errorf("%w: track without id", shared.ErrInvalidInput)
	}
	var now bool
	set, _, err := r.mutate(ctx, func(s *models.FavoriteSet) bool {
		now = s.Toggle(t)
		return true
	})
	return set, now, err
}
