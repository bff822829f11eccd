package models

import "encoding/json"

// FavoriteSet is the user's collection of liked tracks, keyed by track id and kept in insertion order.
//
// The zero value is not usable; create one with [NewFavoriteSet].
type FavoriteSet struct {
	tracks []Track
	index  map[string]int
}

// NewFavoriteSet builds a set from tracks, keeping the first occurrence of each id.
func NewFavoriteSet(tracks ...Track) *FavoriteSet {
	s := &FavoriteSet{index: make(map[string]int, len(tracks))}
	for _, t := range tracks {
		s.Add(t)
	}
	return s
}

// Add inserts t and reports whether it was new. Tracks without an id are ignored.
func (s *FavoriteSet) Add(t Track) bool {
	if t.ID == "" {
		return false
	}
	if _, ok := s.index[t.ID]; ok {
		return false
	}
	s.index[t.ID] = len(s.tracks)
	s.tracks = append(s.tracks, t)
	return true
}

// Remove deletes the track with id and reports whether it was present.
func (s *FavoriteSet) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.tracks); j++ {
		s.index[s.tracks[j].ID] = j
	}
	return true
}

// Toggle removes t when present and adds it otherwise. Returns true when t is a favorite afterwards.
func (s *FavoriteSet) Toggle(t Track) bool {
	if s.Remove(t.ID) {
		return false
	}
	return s.Add(t)
}

func (s *FavoriteSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Get returns the snapshot stored for id.
func (s *FavoriteSet) Get(id string) (Track, bool) {
	i, ok := s.index[id]
	if !ok {
		return Track{}, false
	}
	return s.tracks[i], true
}

// Tracks returns a copy of the favorites in insertion order.
func (s *FavoriteSet) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *FavoriteSet) IDs() []string { return TrackIDs(s.tracks) }
func (s *FavoriteSet) Len() int      { return len(s.tracks) }

// MarshalJSON encodes the set as a JSON array of track snapshots.
func (s *FavoriteSet) MarshalJSON() ([]byte, error) {
	if s.tracks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.tracks)
}

// UnmarshalJSON decodes a JSON array of track snapshots, dropping duplicate ids.
func (s *FavoriteSet) UnmarshalJSON(data []byte) error {
	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return err
	}
	*s = *NewFavoriteSet(tracks...)
	return nil
}
