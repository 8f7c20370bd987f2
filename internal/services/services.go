// package services defines the capability interfaces plsync needs from its external collaborators
//
// Spotify (playlist reads and writes), Google Cloud Storage (token cache mirror)
package services

import (
	"context"
)

// PlaylistAPI is the subset of the streaming provider used by a sync run: paginated playlist reads and batched
// playlist additions. Token refresh happens underneath, in the HTTP client the implementation was built with.
type PlaylistAPI interface {
	// PlaylistTracks fetches the first page of a playlist's items.
	PlaylistTracks(ctx context.Context, playlistID string) (*TrackPage, error)

	// NextTracks fetches the page after the given one. It returns a nil page and nil error when there is none.
	NextTracks(ctx context.Context, page *TrackPage) (*TrackPage, error)

	// AddTracks appends up to [MaxTracksPerRequest] tracks to a playlist in a single call.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// CacheStore mirrors the token cache file to remote storage.
type CacheStore interface {
	// Exists reports whether the remote object is present.
	Exists(ctx context.Context) (bool, error)

	// Download writes the remote object to the local file at path.
	Download(ctx context.Context, path string) error

	// Upload overwrites the remote object with the local file at path.
	Upload(ctx context.Context, path string) error
}

// TrackPage is one page of playlist items reduced to track identifiers, in provider order.
type TrackPage struct {
	TrackIDs []string
	Next     string // URL of the following page, empty on the last page
	Total    int
}

// HasNext reports whether the provider advertised a following page.
func (p *TrackPage) HasNext() bool {
	return p != nil && p.Next != ""
}
