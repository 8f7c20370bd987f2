// Package models defines the records persisted by the playlist sync service.
//
// Playlists and tracks are never stored: each run fetches them fresh and discards them. The only persisted entity
// is the optional run history:
//   - [Run] : one sync run with its outcome, counts and error text
//
// All persistent entities implement [Model]. The [Repository] interface defines the storage operations; run records
// are append-only.
package models
