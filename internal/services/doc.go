// Package services defines the [Catalog] the synthesis engine queries and implements it against the Spotify
// Web API.
//
// # Catalog
//
// The engine only needs five read operations: the current profile, an artist's top tracks, related artists,
// and track or artist search. Query strings for field-filtered search are built with [GenreQuery],
// [YearRangeQuery], [ArtistQuery] and [AlbumQuery].
//
// # Spotify
//
// [SpotifyService] authenticates through [oauth2] (authorization code flow with refresh) and issues catalog
// requests with github.com/zmb3/spotify/v2. Refreshed tokens are reported through a callback so the CLI can
// persist them.
//
// # Error Handling
//
// Catalog errors are classified into two sentinels:
//   - [shared.ErrCredentialInvalid] : the token was rejected (HTTP 401) or could not be refreshed
//   - [shared.ErrQueryFailure] : any other transport or non-2xx failure
//
// Nothing is retried here.
//
// # Guarding
//
// [GuardedCatalog] decorates any Catalog with request pacing (golang.org/x/time/rate) and a circuit breaker
// (github.com/sony/gobreaker/v2) so a failing upstream is not hammered by a synthesis fan-out.
package services
