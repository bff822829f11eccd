// Spotify Web API implementation of [Catalog]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1/"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	defaultMarket      = "US"
	maxSearchLimit     = 50
)

// Scopes requested during authorization.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SpotifyService implements [Catalog] and [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	mu             sync.RWMutex
	config         *oauth2.Config
	token          *oauth2.Token
	client         *spotify.Client
	baseClient     *http.Client
	apiURL         string
	market         string
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithAPIURL points catalog requests at a different API root.
func WithAPIURL(u string) SpotifyOption {
	return func(s *SpotifyService) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		s.apiURL = u
	}
}

// WithEndpoint overrides the OAuth authorize and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = endpoint }
}

// WithMarket sets the market used for top-track lookups.
func WithMarket(market string) SpotifyOption {
	return func(s *SpotifyService) {
		if market != "" {
			s.market = market
		}
	}
}

// WithHTTPClient sets the client used underneath the OAuth transport.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.baseClient = c }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		apiURL: spotifyBaseURL,
		market: defaultMarket,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to receive every token the transport obtains after the initial one.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Authenticate expects either an "access_token" or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(s.oauthContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token. Expired tokens are refreshed on first use through the oauth2 token source.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: no stored token", shared.ErrMissingCredentials)
	}

	ctx = s.oauthContext(context.WithoutCancel(ctx))
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.tokenRefreshed,
		last:     token.AccessToken,
	}
	client := spotify.New(oauth2.NewClient(ctx, source), spotify.WithBaseURL(s.apiURL))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.client = client
	return nil
}

// Authenticated reports whether a token has been installed.
func (s *SpotifyService) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	if s.baseClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	}
	return ctx
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	s.mu.Lock()
	s.token = token
	fn := s.onTokenRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(token)
	}
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: %w: authorize with `tastemixer auth` first", shared.ErrCredentialInvalid, shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, classify("current user", err)
	}
	u := convertUser(user)
	return &u, nil
}

// ArtistTopTracks retrieves the artist's top tracks in the service market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: empty artist id", shared.ErrInvalidInput)
	}
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	tracks, err := client.GetArtistsTopTracks(ctx, spotify.ID(artistID), s.market)
	if err != nil {
		return nil, classify("top tracks "+artistID, err)
	}
	return convertTracks(tracks), nil
}

// RelatedArtists retrieves artists similar to artistID.
func (s *SpotifyService) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: empty artist id", shared.ErrInvalidInput)
	}
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	artists, err := client.GetRelatedArtists(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, classify("related artists "+artistID, err)
	}
	return convertArtists(artists), nil
}

// SearchTracks searches tracks. limit is clamped to 1..50.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit, offset int) ([]models.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	result, err := client.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(clampLimit(limit)), spotify.Offset(max(offset, 0)))
	if err != nil {
		return nil, classify("search tracks", err)
	}
	if result.Tracks == nil {
		return nil, nil
	}
	return convertTracks(result.Tracks.Tracks), nil
}

// SearchArtists searches artists. limit is clamped to 1..50.
func (s *SpotifyService) SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	result, err := client.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, classify("search artists", err)
	}
	if result.Artists == nil {
		return nil, nil
	}
	return convertArtists(result.Artists.Artists), nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxSearchLimit:
		return maxSearchLimit
	}
	return limit
}

// classify maps a client error onto the catalog error sentinels.
func classify(op string, err error) error {
	var (
		apiErr    spotify.Error
		apiErrPtr *spotify.Error
		tokenErr  *oauth2.RetrieveError
	)
	switch {
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized,
		errors.As(err, &apiErrPtr) && apiErrPtr.Status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: %v", shared.ErrCredentialInvalid, op, err)
	case errors.As(err, &tokenErr):
		return fmt.Errorf("%w: %s: token refresh failed: %v", shared.ErrCredentialInvalid, op, err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrQueryFailure, op, err)
}

// refreshableTokenSource reports tokens that differ from the last one seen.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
