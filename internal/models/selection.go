package models

import (
	"fmt"
	"slices"

	"github.com/desertthunder/tastemixer/internal/shared"
)

// Selection caps enforced by the preference widgets.
const (
	MaxArtists = 5
	MaxGenres  = 5
	MaxDecades = 3
	MaxTracks  = 10
)

// Genres is the fixed genre vocabulary offered by the genre widget.
var Genres = []string{
	"acoustic", "afrobeat", "alt-rock", "alternative", "ambient",
	"anime", "black-metal", "bluegrass", "blues", "bossanova",
	"brazil", "breakbeat", "british", "cantopop", "chicago-house",
	"children", "chill", "classical", "club", "comedy",
	"country", "dance", "dancehall", "death-metal", "deep-house",
	"detroit-techno", "disco", "disney", "drum-and-bass", "dub",
	"dubstep", "edm", "electro", "electronic", "emo",
	"folk", "forro", "french", "funk", "garage",
	"german", "gospel", "goth", "grindcore", "groove",
	"grunge", "guitar", "happy", "hard-rock", "hardcore",
	"hardstyle", "heavy-metal", "hip-hop", "house", "idm",
	"indian", "indie", "indie-pop", "industrial", "iranian",
	"j-dance", "j-idol", "j-pop", "j-rock", "jazz",
	"k-pop", "kids", "latin", "latino", "malay",
	"mandopop", "metal", "metal-misc", "metalcore", "minimal-techno",
	"movies", "mpb", "new-age", "new-release", "opera",
	"pagode", "party", "philippines-opm", "piano", "pop",
	"pop-film", "post-dubstep", "power-pop", "progressive-house", "psych-rock",
	"punk", "punk-rock", "r-n-b", "rainy-day", "reggae",
	"reggaeton", "road-trip", "rock", "rock-n-roll", "rockabilly",
	"romance", "sad", "salsa", "samba", "sertanejo",
	"show-tunes", "singer-songwriter", "ska", "sleep", "songwriter",
	"soul", "soundtracks", "spanish", "study", "summer",
	"swedish", "synth-pop", "tango", "techno", "trance",
	"trip-hop", "turkish", "work-out", "world-music",
}

// Decades lists the selectable decade start years.
var Decades = []int{1950, 1960, 1970, 1980, 1990, 2000, 2010, 2020}

// PopularityRange is an inclusive popularity filter.
type PopularityRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether p lies within the inclusive range.
func (r PopularityRange) Contains(p int) bool {
	return p >= r.Min && p <= r.Max
}

// PopularityCategory is a named popularity range preset.
type PopularityCategory struct {
	Label string `json:"label"`
	PopularityRange
}

var PopularityCategories = []PopularityCategory{
	{Label: "Mainstream", PopularityRange: PopularityRange{Min: 80, Max: 100}},
	{Label: "Popular", PopularityRange: PopularityRange{Min: 50, Max: 80}},
	{Label: "Underground", PopularityRange: PopularityRange{Min: 0, Max: 50}},
}

// Mood is a point in energy/valence/danceability space, each in [0,1].
type Mood struct {
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Danceability float64 `json:"danceability"`
}

// MoodPreset is a named [Mood].
type MoodPreset struct {
	Label string `json:"label"`
	Mood
}

var MoodPresets = []MoodPreset{
	{Label: "Happy", Mood: Mood{Energy: 0.7, Valence: 0.8, Danceability: 0.7}},
	{Label: "Sad", Mood: Mood{Energy: 0.3, Valence: 0.2, Danceability: 0.3}},
	{Label: "Energetic", Mood: Mood{Energy: 0.9, Valence: 0.7, Danceability: 0.9}},
	{Label: "Calm", Mood: Mood{Energy: 0.2, Valence: 0.5, Danceability: 0.3}},
	{Label: "Party", Mood: Mood{Energy: 0.95, Valence: 0.85, Danceability: 0.95}},
	{Label: "Chill", Mood: Mood{Energy: 0.4, Valence: 0.6, Danceability: 0.5}},
}

// LookupMood finds a preset by case-sensitive label.
func LookupMood(label string) (Mood, bool) {
	for _, p := range MoodPresets {
		if p.Label == label {
			return p.Mood, true
		}
	}
	return Mood{}, false
}

// Selection holds the current choice of every preference widget. Every field is optional.
type Selection struct {
	Artists    []Artist         `json:"artists,omitempty"`
	Genres     []string         `json:"genres,omitempty"`
	Decades    []int            `json:"decades,omitempty"`
	Popularity *PopularityRange `json:"popularity,omitempty"`
	Tracks     []Track          `json:"tracks,omitempty"`
	Mood       *Mood            `json:"mood,omitempty"`
}

// Validate checks caps, vocabularies and ranges.
func (s Selection) Validate() error {
	if len(s.Artists) > MaxArtists {
		return fmt.Errorf("%w: at most %d artists, got %d", shared.ErrInvalidSelection, MaxArtists, len(s.Artists))
	}
	if len(s.Genres) > MaxGenres {
		return fmt.Errorf("%w: at most %d genres, got %d", shared.ErrInvalidSelection, MaxGenres, len(s.Genres))
	}
	for _, g := range s.Genres {
		if !IsGenre(g) {
			return fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidSelection, g)
		}
	}
	if len(s.Decades) > MaxDecades {
		return fmt.Errorf("%w: at most %d decades, got %d", shared.ErrInvalidSelection, MaxDecades, len(s.Decades))
	}
	for _, d := range s.Decades {
		if !slices.Contains(Decades, d) {
			return fmt.Errorf("%w: unknown decade %d", shared.ErrInvalidSelection, d)
		}
	}
	if r := s.Popularity; r != nil && (r.Min < 0 || r.Max > 100 || r.Min > r.Max) {
		return fmt.Errorf("%w: popularity range %d-%d", shared.ErrInvalidSelection, r.Min, r.Max)
	}
	if len(s.Tracks) > MaxTracks {
		return fmt.Errorf("%w: at most %d tracks, got %d", shared.ErrInvalidSelection, MaxTracks, len(s.Tracks))
	}
	if m := s.Mood; m != nil {
		for _, v := range []float64{m.Energy, m.Valence, m.Danceability} {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: mood values must be within [0,1]", shared.ErrInvalidSelection)
			}
		}
	}
	return nil
}

// IsGenre reports whether g is part of the genre vocabulary.
func IsGenre(g string) bool {
	return slices.Contains(Genres, g)
}

// ToggleArtist deselects a, or selects it when below the cap.
func (s *Selection) ToggleArtist(a Artist) error {
	if i := slices.IndexFunc(s.Artists, func(x Artist) bool { return x.ID == a.ID }); i >= 0 {
		s.Artists = slices.Delete(s.Artists, i, i+1)
		return nil
	}
	if len(s.Artists) >= MaxArtists {
		return fmt.Errorf("%w: at most %d artists", shared.ErrInvalidSelection, MaxArtists)
	}
	s.Artists = append(s.Artists, a)
	return nil
}

// ToggleGenre deselects g, or selects it when it is a known genre and below the cap.
func (s *Selection) ToggleGenre(g string) error {
	if i := slices.Index(s.Genres, g); i >= 0 {
		s.Genres = slices.Delete(s.Genres, i, i+1)
		return nil
	}
	if !IsGenre(g) {
		return fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidSelection, g)
	}
	if len(s.Genres) >= MaxGenres {
		return fmt.Errorf("%w: at most %d genres", shared.ErrInvalidSelection, MaxGenres)
	}
	s.Genres = append(s.Genres, g)
	return nil
}

// ToggleDecade deselects d, or selects it when it is a known decade and below the cap.
func (s *Selection) ToggleDecade(d int) error {
	if i := slices.Index(s.Decades, d); i >= 0 {
		s.Decades = slices.Delete(s.Decades, i, i+1)
		return nil
	}
	if !slices.Contains(Decades, d) {
		return fmt.Errorf("%w: unknown decade %d", shared.ErrInvalidSelection, d)
	}
	if len(s.Decades) >= MaxDecades {
		return fmt.Errorf("%w: at most %d decades", shared.ErrInvalidSelection, MaxDecades)
	}
	s.Decades = append(s.Decades, d)
	return nil
}

// ToggleTrack deselects t, or selects it when below the cap.
func (s *Selection) ToggleTrack(t Track) error {
	if i := slices.IndexFunc(s.Tracks, func(x Track) bool { return x.ID == t.ID }); i >= 0 {
		s.Tracks = slices.Delete(s.Tracks, i, i+1)
		return nil
	}
	if len(s.Tracks) >= MaxTracks {
		return fmt.Errorf("%w: at most %d tracks", shared.ErrInvalidSelection, MaxTracks)
	}
	s.Tracks = append(s.Tracks, t)
	return nil
}

// ArtistIDs returns the selected artist ids in selection order.
func (s Selection) ArtistIDs() []string {
	ids := make([]string, len(s.Artists))
	for i, a := range s.Artists {
		ids[i] = a.ID
	}
	return ids
}

// InDecades reports whether year falls in any of decades' ten-year spans.
func InDecades(year int, decades []int) bool {
	for _, d := range decades {
		if year >= d && year < d+10 {
			return true
		}
	}
	return false
}
