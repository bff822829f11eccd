package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/tastemixer/internal/shared"
)

// Playlist sources.
const (
	SourceFavorites   = "favorites"
	SourcePreferences = "preferences"
	SourceManual      = "manual"
)

// Playlist is an ordered, editable sequence of tracks.
type Playlist struct {
	ID        string
	Name      string
	Source    string
	CreatedAt time.Time
	tracks    []Track
}

// NewPlaylist creates an empty playlist with a generated id.
func NewPlaylist(name string) *Playlist {
	return &Playlist{
		ID:        shared.GenerateID(),
		Name:      name,
		Source:    SourceManual,
		CreatedAt: time.Now(),
	}
}

// Replace swaps the whole contents for tracks, as done when a synthesis result arrives.
func (p *Playlist) Replace(tracks []Track) {
	p.tracks = make([]Track, len(tracks))
	copy(p.tracks, tracks)
}

// Add appends t unless a track with the same id is already present.
func (p *Playlist) Add(t Track) bool {
	if p.Index(t.ID) >= 0 {
		return false
	}
	p.tracks = append(p.tracks, t)
	return true
}

// Remove deletes the track with id.
func (p *Playlist) Remove(id string) bool {
	i := p.Index(id)
	if i < 0 {
		return false
	}
	p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
	return true
}

// Move takes the track at from out of the sequence and reinserts it at to.
func (p *Playlist) Move(from, to int) error {
	n := len(p.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d with %d tracks", shared.ErrInvalidArgument, from, to, n)
	}
	if from == to {
		return nil
	}

	t := p.tracks[from]
	p.tracks = append(p.tracks[:from], p.tracks[from+1:]...)
	p.tracks = append(p.tracks[:to], append([]Track{t}, p.tracks[to:]...)...)
	return nil
}

func (p *Playlist) Clear() { p.tracks = nil }

// Index returns the position of id, or -1.
func (p *Playlist) Index(id string) int {
	for i, t := range p.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of the playlist contents.
func (p *Playlist) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

func (p *Playlist) Len() int { return len(p.tracks) }

// Duration is the total running time in milliseconds.
func (p *Playlist) Duration() int {
	total := 0
	for _, t := range p.tracks {
		total += t.DurationMS
	}
	return total
}

type playlistJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMS int       `json:"duration_ms"`
	Tracks     []Track   `json:"tracks"`
}

func (p *Playlist) MarshalJSON() ([]byte, error) {
	tracks := p.tracks
	if tracks == nil {
		tracks = []Track{}
	}
	return json.Marshal(playlistJSON{
		ID:         p.ID,
		Name:       p.Name,
		Source:     p.Source,
		CreatedAt:  p.CreatedAt,
		DurationMS: p.Duration(),
		Tracks:     tracks,
	})
}
