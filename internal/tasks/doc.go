// Package tasks synthesizes candidate playlists from the music catalog with real-time progress reporting.
//
// # Synthesis
//
// [PlaylistEngine] implements [Synthesizer] on top of a [services.Catalog]:
//
//  1. [PlaylistEngine.FromPreferences] : widget driven synthesis
//     - Top tracks of each selected artist, then a genre search per selected genre
//     - Decade and popularity applied as post-hoc filters
//     - Deduplicated and capped at the target size, in catalog order
//
//  2. [PlaylistEngine.FromFavorites] : favorites driven synthesis
//     - Fails with [InsufficientFavoritesError] below the minimum, without touching the catalog
//     - Staged expansion: top tracks, related artists, artist search, album search, backfill
//     - Favorites never appear in the output
//     - Shuffled with the injected random source and cut to the target size
//
// A failed query contributes no tracks and synthesis continues. A rejected credential stops synthesis so the caller
// can re-authenticate.
//
// # Fan-out
//
// Queries within a stage run sequentially unless [WithConcurrency] raises the width. Results are merged in query
// order and the stage stop conditions are checked before each merge, so the candidate set does not depend on the
// width. Every query runs under its own timeout.
//
// # Previews
//
// The widget previews ([PlaylistEngine.PreviewGenres] and friends) sample a handful of tracks for each widget.
//
// # Progress Reporting
//
// All long operations accept an optional channel of [ProgressUpdate]. Updates use select with default to prevent
// blocking.
//
// # Bulk export
//
// [PlaylistEngine.BulkExport] writes saved playlists to disk with a worker pool and records a manifest.
package tasks
