// Package repositories implements SQLite persistence for the dashboard state.
//
// Key Implementations:
//   - [KVStore] : namespaced key/value documents in a single table
//   - [FavoriteRepository] : the favorite set, stored as one JSON array under a namespaced key
//   - [PlaylistRepository] : saved playlists with soft deletes
//
// Sequence numbers give saved playlists a stable, human-readable ordering (playlist #15) independent of UUIDs
// and creation timestamps. [NextSequence] atomically increments per-table counters in dedicated sequence
// tables.
package repositories
