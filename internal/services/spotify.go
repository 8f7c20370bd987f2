// Spotify implementation of [PlaylistAPI]
//
// Backed by github.com/zmb3/spotify/v2, see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
)

// MaxTracksPerRequest is the most items Spotify accepts in one add-items call.
const MaxTracksPerRequest = 100

// SpotifyService implements [PlaylistAPI] on top of a [spotify.Client].
//
// The http.Client it is built with carries authentication, see [ConnectSpotify].
type SpotifyService struct {
	client *spotify.Client
}

// NewSpotifyService creates a Spotify service that sends requests with httpClient.
func NewSpotifyService(httpClient *http.Client, opts ...spotify.ClientOption) *SpotifyService {
	return &SpotifyService{client: spotify.New(httpClient, opts...)}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// PlaylistTracks retrieves the first page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) (*TrackPage, error) {
	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, fmt.Errorf("get playlist items %s: %w", playlistID, err)
	}
	return toTrackPage(page), nil
}

// NextTracks follows the next link of page.
func (s *SpotifyService) NextTracks(ctx context.Context, page *TrackPage) (*TrackPage, error) {
	if !page.HasNext() {
		return nil, nil
	}

	next := &spotify.PlaylistItemPage{}
	next.Next = page.Next

	err := s.client.NextPage(ctx, next)
	if errors.Is(err, spotify.ErrNoMorePages) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("playlist pagination error: %w", err)
	}
	return toTrackPage(next), nil
}

// AddTracks adds at most [MaxTracksPerRequest] tracks to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > MaxTracksPerRequest {
		return fmt.Errorf("maximum %d track IDs allowed per request, got %d", MaxTracksPerRequest, len(trackIDs))
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("add tracks to playlist %s: %w", playlistID, err)
	}
	return nil
}

// toTrackPage keeps the ids of track items. Episodes and local files without an id are skipped.
func toTrackPage(page *spotify.PlaylistItemPage) *TrackPage {
	out := &TrackPage{
		TrackIDs: make([]string, 0, len(page.Items)),
		Next:     page.Next,
		Total:    int(page.Total),
	}
	for _, item := range page.Items {
		if item.Track.Track == nil || item.Track.Track.ID == "" {
			continue
		}
		out.TrackIDs = append(out.TrackIDs, string(item.Track.Track.ID))
	}
	return out
}
