package graph

import (
	"math"
	"strings"

	"github.com/desertthunder/tastemixer/internal/models"
)

// EdgeThreshold is the strength a pair must exceed to be linked.
const EdgeThreshold = 0.08

// Connection criteria, in evaluation order.
const (
	CriterionArtist      = "artist"
	CriterionAlbum       = "album"
	CriterionPopularity  = "popularity"
	CriterionYear        = "year"
	CriterionDuration    = "duration"
	CriterionGenre       = "genre"
	CriterionPosition    = "position"
	CriterionExplicit    = "explicit"
	CriterionAlbumName   = "album-name"
	CriterionNameLength  = "name-length"
	CriterionLabel       = "label"
	CriterionTier        = "tier"
	CriterionDecade      = "decade"
	CriterionArtistCount = "artist-count"
)

// Contribution is one criterion's share of a connection's strength.
type Contribution struct {
	Criterion string  `json:"criterion"`
	Weight    float64 `json:"weight"`
}

// Connection is the similarity between two tracks.
type Connection struct {
	Strength      float64        `json:"strength"`
	Type          string         `json:"type"`
	Types         []string       `json:"types"`
	Contributions []Contribution `json:"contributions"`
}

// Linked reports whether the connection is strong enough to become an edge.
func (c Connection) Linked() bool {
	return c.Strength > EdgeThreshold
}

func (c *Connection) add(criterion string, weight float64) {
	if weight <= 0 {
		return
	}
	if c.Type == "" {
		c.Type = criterion
	}
	c.Strength += weight
	c.Types = append(c.Types, criterion)
	c.Contributions = append(c.Contributions, Contribution{Criterion: criterion, Weight: weight})
}

// Score evaluates every similarity criterion for a and b.
//
// Criteria that need a value missing from either snapshot (zero popularity, duration or track number,
// unknown release year, empty album id, name or label) do not contribute.
func Score(a, b models.Track) Connection {
	var c Connection

	if sharesArtist(a, b) {
		c.add(CriterionArtist, 0.8)
	}

	sameAlbum := a.Album.ID != "" && a.Album.ID == b.Album.ID
	if sameAlbum {
		c.add(CriterionAlbum, 0.6)
	}

	if a.Popularity > 0 && b.Popularity > 0 {
		if d := absInt(a.Popularity - b.Popularity); d < 30 {
			c.add(CriterionPopularity, 0.5*(1-float64(d)/30))
		}
	}

	yearA, yearB := a.Year(), b.Year()
	if yearA > 0 && yearB > 0 {
		if d := absInt(yearA - yearB); d <= 5 {
			c.add(CriterionYear, 0.4*(1-float64(d)/5))
		}
	}

	if a.DurationMS > 0 && b.DurationMS > 0 {
		if d := absInt(a.DurationMS - b.DurationMS); d < 60000 {
			c.add(CriterionDuration, 0.3*(1-float64(d)/60000))
		}
	}

	if sharesAny(a.Album.Genres, b.Album.Genres) {
		c.add(CriterionGenre, 0.35)
	}

	if sameAlbum && a.TrackNumber > 0 && b.TrackNumber > 0 {
		if d := absInt(a.TrackNumber - b.TrackNumber); d <= 5 {
			c.add(CriterionPosition, 0.25*(1-float64(d)/5))
		}
	}

	if a.Explicit == b.Explicit {
		c.add(CriterionExplicit, 0.15)
	}

	if sharesAny(albumWords(a.Album.Name), albumWords(b.Album.Name)) {
		c.add(CriterionAlbumName, 0.2)
	}

	if la, lb := len([]rune(a.Name)), len([]rune(b.Name)); la > 0 && lb > 0 {
		avg := float64(la+lb) / 2
		if math.Abs(float64(la-lb))/avg < 0.3 {
			c.add(CriterionNameLength, 0.1)
		}
	}

	if a.Album.Label != "" && a.Album.Label == b.Album.Label {
		c.add(CriterionLabel, 0.25)
	}

	if a.Popularity > 0 && b.Popularity > 0 && a.Tier() == b.Tier() {
		c.add(CriterionTier, 0.2)
	}

	if yearA > 0 && yearB > 0 && yearA/10 == yearB/10 {
		c.add(CriterionDecade, 0.25)
	}

	if absInt(len(a.Artists)-len(b.Artists)) <= 1 {
		c.add(CriterionArtistCount, 0.1)
	}

	return c
}

func sharesArtist(a, b models.Track) bool {
	for _, x := range a.Artists {
		if x.ID == "" {
			continue
		}
		for _, y := range b.Artists {
			if x.ID == y.ID {
				return true
			}
		}
	}
	return false
}

func sharesAny(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			return true
		}
	}
	return false
}

// albumWords splits an album name into lowercase words longer than two characters.
func albumWords(name string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
