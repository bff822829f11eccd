package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tastemixer/internal/models"
	"golang.org/x/oauth2"
)

// Catalog is the read-only music catalog used to build playlists and previews.
type Catalog interface {
	// CurrentUser returns the authenticated user's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// ArtistTopTracks returns the artist's most popular tracks in the configured market.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)

	// RelatedArtists returns artists similar to the given one.
	RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error)

	// SearchTracks runs a track search. Query may use field filters (see [GenreQuery]).
	SearchTracks(ctx context.Context, query string, limit, offset int) ([]models.Track, error)

	// SearchArtists runs an artist search.
	SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error)
}

// OAuthService is implemented by catalogs that authenticate with the authorization code flow.
type OAuthService interface {
	// GetAuthURL returns the URL the user visits to grant access; state is echoed back to the callback.
	GetAuthURL(state string) string

	// OAuthConfig exposes the client configuration used to exchange authorization codes.
	OAuthConfig() *oauth2.Config

	// OAuthenticate installs a stored token, refreshing it as needed.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// GenreQuery filters tracks by genre.
func GenreQuery(genre string) string {
	return fmt.Sprintf("genre:%q", genre)
}

// YearRangeQuery filters tracks released in the inclusive year range.
func YearRangeQuery(from, to int) string {
	return fmt.Sprintf("year:%d-%d", from, to)
}

// DecadeQuery filters tracks released in the ten years starting at decade.
func DecadeQuery(decade int) string {
	return YearRangeQuery(decade, decade+9)
}

// ArtistQuery filters tracks by artist name.
func ArtistQuery(name string) string {
	return "artist:" + strings.TrimSpace(name)
}

// AlbumQuery filters tracks by album name.
func AlbumQuery(name string) string {
	return "album:" + strings.TrimSpace(name)
}

// WildcardQuery matches any track; used for broad samples.
const WildcardQuery = "*"
