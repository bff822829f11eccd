package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func track(id string) models.Track {
	return models.Track{
		ID:         id,
		Name:       "Track " + id,
		Artists:    []models.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
		DurationMS: 180000,
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "playlists")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(ctx, db, "nope"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get missing", func(t *testing.T) {
		store := NewKVStore(setupTestDB(t))
		_, ok, err := store.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ok {
			t.Error("expected key to be absent")
		}
	})

	t.Run("Put and overwrite", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewKVStore(db)

		if err := store.Put(ctx, "k", "one"); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := store.Put(ctx, "k", "two"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}

		v, ok, err := store.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("expected key to exist, got ok=%v err=%v", ok, err)
		}
		if v != "two" {
			t.Errorf("expected 'two', got %q", v)
		}

		var count int
		db.QueryRow("SELECT COUNT(*) FROM kv_store").Scan(&count)
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}
	})

}

func TestFavoriteRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*FavoriteRepository, *KVStore) {
		store := NewKVStore(setupTestDB(t))
		return NewFavoriteRepository(store, shared.NewLogger(nil)), store
	}

	t.Run("Load empty", func(t *testing.T) {
		repo, _ := setup(t)
		set, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if set.Len() != 0 {
			t.Errorf("expected empty set, got %d", set.Len())
		}
	})

	t.Run("Malformed state loads empty", func(t *testing.T) {
		repo, store := setup(t)
		store.Put(ctx, FavoritesKey, "{not json")

		set, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("expected malformed state to be swallowed, got %v", err)
		}
		if set.Len() != 0 {
			t.Errorf("expected empty set, got %d", set.Len())
		}
	})

	t.Run("Add persists whole array", func(t *testing.T) {
		repo, store := setup(t)

		if _, added, err := repo.Add(ctx, track("a")); err != nil || !added {
			t.Fatalf("expected add, got added=%v err=%v", added, err)
		}
		if _, added, _ := repo.Add(ctx, track("a")); added {
			t.Error("expected duplicate add to be ignored")
		}
		repo.Add(ctx, track("b"))

		raw, ok, _ := store.Get(ctx, FavoritesKey)
		if !ok {
			t.Fatal("expected favorites key to be written")
		}
		if !strings.HasPrefix(raw, "[") || !strings.Contains(raw, `"id":"a"`) || !strings.Contains(raw, `"id":"b"`) {
			t.Errorf("expected JSON array with both tracks, got %s", raw)
		}

		set, _ := repo.Load(ctx)
		if strings.Join(set.IDs(), ",") != "a,b" {
			t.Errorf("expected [a b], got %v", set.IDs())
		}
	})

	t.Run("Remove", func(t *testing.T) {
		repo, _ := setup(t)
		repo.Add(ctx, track("a"))
		repo.Add(ctx, track("b"))

		set, removed, err := repo.Remove(ctx, "a")
		if err != nil || !removed {
			t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
		}
		if set.Contains("a") {
			t.Error("expected a to be removed")
		}
		if _, removed, _ := repo.Remove(ctx, "zzz"); removed {
			t.Error("expected removing unknown id to report false")
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		repo, _ := setup(t)

		_, on, err := repo.Toggle(ctx, track("a"))
		if err != nil || !on {
			t.Fatalf("expected toggle on, got %v %v", on, err)
		}
		set, on, _ := repo.Toggle(ctx, track("a"))
		if on || set.Contains("a") {
			t.Error("expected toggle off")
		}
	})

	t.Run("Save replaces", func(t *testing.T) {
		repo, _ := setup(t)
		repo.Add(ctx, track("a"))

		if err := repo.Save(ctx, models.NewFavoriteSet(track("x"), track("y"))); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		set, _ := repo.Load(ctx)
		if strings.Join(set.IDs(), ",") != "x,y" {
			t.Errorf("expected [x y], got %v", set.IDs())
		}
	})

	t.Run("Rejects track without id", func(t *testing.T) {
		repo, _ := setup(t)
		if _, _, err := repo.Add(ctx, models.Track{Name: "no id"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	build := func(name string, ids ...string) *models.Playlist {
		p := models.NewPlaylist(name)
		p.Source = models.SourceFavorites
		for _, id := range ids {
			p.Add(track(id))
		}
		return p
	}

	t.Run("Create and Get", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		p := build("mix", "a", "b", "c")

		saved, err := repo.Create(ctx, p)
		if err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
		if saved.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", saved.Sequence)
		}

		got, err := repo.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Playlist.Name != "mix" || got.Playlist.Source != models.SourceFavorites {
			t.Errorf("unexpected playlist %+v", got.Playlist)
		}
		if got.Playlist.Len() != 3 || got.Playlist.Tracks()[2].ID != "c" {
			t.Errorf("expected tracks a,b,c, got %v", models.TrackIDs(got.Playlist.Tracks()))
		}
	})

	t.Run("Create requires a name", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		if _, err := repo.Create(ctx, build("")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		p := build("mix", "a", "b")
		repo.Create(ctx, p)

		p.Name = "renamed"
		p.Remove("a")
		if err := repo.Update(ctx, p); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, _ := repo.Get(ctx, p.ID)
		if got.Playlist.Name != "renamed" || got.Playlist.Len() != 1 {
			t.Errorf("unexpected playlist after update %+v", got.Playlist)
		}
	})

	t.Run("Delete and List", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		first := build("first", "a")
		second := build("second", "b")
		repo.Create(ctx, first)
		repo.Create(ctx, second)

		list, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 2 || list[0].Playlist.Name != "second" {
			t.Fatalf("expected newest first, got %d playlists", len(list))
		}

		if err := repo.Delete(ctx, first.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, first.ID); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound on second delete, got %v", err)
		}

		list, _ = repo.List(ctx, 0)
		if len(list) != 1 || list[0].Playlist.ID != second.ID {
			t.Errorf("expected only second playlist, got %d", len(list))
		}

		limited, _ := repo.List(ctx, 1)
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})
}
