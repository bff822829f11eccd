package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
)

// SavedPlaylist is a stored playlist with its bookkeeping columns.
type SavedPlaylist struct {
	Sequence  int              `json:"sequence"`
	Playlist  *models.Playlist `json:"playlist"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PlaylistRepository stores generated and edited playlists.
//
// Handles playlist CRUD operations with soft delete support.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts p with the next sequence number. A playlist without an id gets a generated one.
func (r *PlaylistRepository) Create(ctx context.Context, p *models.Playlist) (*SavedPlaylist, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	if p.ID == "" {
		p.ID = shared.GenerateID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	source := p.Source
	if source == "" {
		source = models.SourceManual
	}

	tracks, err := encodeTracks(p)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
		INSERT INTO playlists (id, sequence, name, source, track_count, duration_ms, tracks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, p.ID, sequence, p.Name, source, p.Len(), p.Duration(), tracks, p.CreatedAt, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}

	return &SavedPlaylist{Sequence: sequence, Playlist: p, UpdatedAt: now}, nil
}

// Get retrieves a playlist by id, excluding soft-deleted playlists.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*SavedPlaylist, error) {
	query := `
		SELECT id, sequence, name, source, tracks, created_at, updated_at
		FROM playlists
		WHERE id = ? AND deleted_at IS NULL
	`
	saved, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return saved, err
}

// Update rewrites the name and tracks of an existing playlist.
func (r *PlaylistRepository) Update(ctx context.Context, p *models.Playlist) error {
	tracks, err := encodeTracks(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE playlists
		SET name = ?, track_count = ?, duration_ms = ?, tracks = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, p.Name, p.Len(), p.Duration(), tracks, time.Now(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireRow(result, p.ID)
}

// Delete soft-deletes a playlist by id.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE playlists
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return requireRow(result, id)
}

// List returns saved playlists newest first. limit ≤ 0 returns all of them.
func (r *PlaylistRepository) List(ctx context.Context, limit int) ([]*SavedPlaylist, error) {
	query := `
		SELECT id, sequence, name, source, tracks, created_at, updated_at
		FROM playlists
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*SavedPlaylist
	for rows.Next() {
		saved, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row scanner) (*SavedPlaylist, error) {
	var (
		p         models.Playlist
		sequence  int
		tracks    string
		updatedAt time.Time
	)
	if err := row.Scan(&p.ID, &sequence, &p.Name, &p.Source, &tracks, &p.CreatedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	var items []models.Track
	if err := json.Unmarshal([]byte(tracks), &items); err != nil {
		return nil, fmt.Errorf("%w: playlist %s tracks: %v", shared.ErrMalformedState, p.ID, err)
	}
	p.Replace(items)

	return &SavedPlaylist{Sequence: sequence, Playlist: &p, UpdatedAt: updatedAt}, nil
}

func encodeTracks(p *models.Playlist) (string, error) {
	tracks := p.Tracks()
	if tracks == nil {
		tracks = []models.Track{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to encode tracks: %w", err)
	}
	return string(data), nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return nil
}
