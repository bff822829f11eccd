// package models defines the catalog entities and the in-memory collections built from them:
// tracks, the favorite set, the editable playlist and the widget selection state.
package models

import (
	"strconv"
	"strings"
)

// Popularity tiers used by the similarity graph.
const (
	TierMainstream  = "mainstream"
	TierPopular     = "popular"
	TierUnderground = "underground"
)

// Track is a snapshot of a catalog track. JSON names follow the catalog wire format so a persisted
// snapshot and a fetched payload decode the same way.
type Track struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []Artist          `json:"artists"`
	Album        Album             `json:"album"`
	DurationMS   int               `json:"duration_ms"`
	Popularity   int               `json:"popularity"`
	Explicit     bool              `json:"explicit"`
	TrackNumber  int               `json:"track_number"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	PreviewURL   string            `json:"preview_url,omitempty"`
	URI          string            `json:"uri,omitempty"`
}

// Artist is a catalog artist. Genres, popularity and images are only present on full artist payloads.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	Images     []Image  `json:"images,omitempty"`
}

// Album is the album a track belongs to.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ReleaseDate string   `json:"release_date"`
	Label       string   `json:"label,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	TotalTracks int      `json:"total_tracks,omitempty"`
	Images      []Image  `json:"images,omitempty"`
}

// Image is an artwork reference.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// User is the authenticated user's profile.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
	Country     string  `json:"country,omitempty"`
	Product     string  `json:"product,omitempty"`
	Followers   int     `json:"followers"`
	Images      []Image `json:"images,omitempty"`
}

// Year returns the release year parsed from the album release date, or 0 when unknown.
//
// Release dates come with year, month or day precision ("1999", "1999-05", "1999-05-21").
func (t Track) Year() int {
	date := t.Album.ReleaseDate
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// Decade returns the decade start year (1994 → 1990), or 0 when the year is unknown.
func (t Track) Decade() int {
	y := t.Year()
	return y - y%10
}

// Tier buckets popularity into mainstream, popular and underground.
func (t Track) Tier() string {
	return PopularityTier(t.Popularity)
}

// PopularityTier buckets a 0–100 popularity score.
func PopularityTier(p int) string {
	switch {
	case p >= 70:
		return TierMainstream
	case p >= 40:
		return TierPopular
	default:
		return TierUnderground
	}
}

// PopularityLabel is the human readable popularity shown on the inspection view.
func (t Track) PopularityLabel() string {
	switch p := t.Popularity; {
	case p >= 80:
		return "Very Popular"
	case p >= 60:
		return "Popular"
	case p >= 40:
		return "Moderate"
	case p >= 20:
		return "Niche"
	default:
		return "Underground"
	}
}

// PrimaryArtist returns the first credited artist.
func (t Track) PrimaryArtist() (Artist, bool) {
	if len(t.Artists) == 0 {
		return Artist{}, false
	}
	return t.Artists[0], true
}

// ArtistNames joins artist names with commas.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// ExternalURL returns the catalog web link for the track.
func (t Track) ExternalURL() string {
	return t.ExternalURLs["spotify"]
}

// Thumbnail returns the smallest album image URL, or "" when the album has no artwork.
func (t Track) Thumbnail() string {
	best := ""
	bestArea := -1
	for _, img := range t.Album.Images {
		area := img.Width * img.Height
		if bestArea == -1 || area < bestArea {
			best, bestArea = img.URL, area
		}
	}
	return best
}

// TrackIDs extracts identifiers in order.
func TrackIDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
