package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zmb3/spotify/v2"
)

// fakeSpotifyAPI serves the two playlist endpoints the service uses.
type fakeSpotifyAPI struct {
	pages   [][]string // track ids per page
	added   [][]string
	failAdd bool
	srv     *httptest.Server
}

func newFakeSpotifyAPI(t *testing.T, pages ...[]string) *fakeSpotifyAPI {
	t.Helper()
	f := &fakeSpotifyAPI{pages: pages}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSpotifyAPI) service() *SpotifyService {
	return NewSpotifyService(f.srv.Client(), spotify.WithBaseURL(f.srv.URL+"/"))
}

func (f *fakeSpotifyAPI) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/playlists/") || !strings.HasSuffix(r.URL.Path, "/tracks") {
		http.NotFound(w, r)
		return
	}
	playlistID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/playlists/"), "/tracks")

	switch r.Method {
	case http.MethodGet:
		if playlistID == "missing" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found."}}`)
			return
		}

		index := 0
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &index)
		}

		items := []map[string]any{}
		if index < len(f.pages) {
			for _, id := range f.pages[index] {
				if id == "" {
					items = append(items, map[string]any{
						"is_local": true,
						"track":    map[string]any{"type": "track", "id": nil, "name": "local file"},
					})
					continue
				}
				items = append(items, map[string]any{
					"added_at": "2024-01-01T00:00:00Z",
					"track":    map[string]any{"type": "track", "id": id, "name": "song " + id},
				})
			}
		}

		next := ""
		if index+1 < len(f.pages) {
			next = fmt.Sprintf("%s/playlists/%s/tracks?page=%d", f.srv.URL, playlistID, index+1)
		}

		total := 0
		for _, p := range f.pages {
			total += len(p)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"href":  r.URL.String(),
			"items": items,
			"limit": 100,
			"total": total,
			"next":  next,
		})

	case http.MethodPost:
		if f.failAdd {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"status":403,"message":"Forbidden"}}`)
			return
		}

		var body struct {
			URIs []string `json:"uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.added = append(f.added, body.URIs)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"snapshot_id":"snap"}`)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("Service Interface", func(t *testing.T) {
		var _ PlaylistAPI = NewSpotifyService(http.DefaultClient)
	})

	t.Run("Name", func(t *testing.T) {
		if got := NewSpotifyService(http.DefaultClient).Name(); got != "Spotify" {
			t.Errorf("expected service name 'Spotify', got %s", got)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		api := newFakeSpotifyAPI(t, []string{"a", "b"}, []string{"c"})
		srv := api.service()

		page, err := srv.PlaylistTracks(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if strings.Join(page.TrackIDs, ",") != "a,b" {
			t.Errorf("expected first page a,b, got %v", page.TrackIDs)
		}
		if !page.HasNext() {
			t.Error("expected a next page")
		}
		if page.Total != 3 {
			t.Errorf("expected total 3, got %d", page.Total)
		}
	})

	t.Run("NextTracks", func(t *testing.T) {
		api := newFakeSpotifyAPI(t, []string{"a"}, []string{"b", "c"})
		srv := api.service()
		ctx := context.Background()

		page, err := srv.PlaylistTracks(ctx, "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		next, err := srv.NextTracks(ctx, page)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Join(next.TrackIDs, ",") != "b,c" {
			t.Errorf("expected second page b,c, got %v", next.TrackIDs)
		}
		if next.HasNext() {
			t.Error("expected last page")
		}

		last, err := srv.NextTracks(ctx, next)
		if err != nil || last != nil {
			t.Errorf("expected nil page and nil error after last page, got %v, %v", last, err)
		}
	})

	t.Run("skips items without a track id", func(t *testing.T) {
		api := newFakeSpotifyAPI(t, []string{"a", "", "b"})

		page, err := api.service().PlaylistTracks(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Join(page.TrackIDs, ",") != "a,b" {
			t.Errorf("expected a,b, got %v", page.TrackIDs)
		}
	})

	t.Run("PlaylistTracks error", func(t *testing.T) {
		api := newFakeSpotifyAPI(t)

		_, err := api.service().PlaylistTracks(context.Background(), "missing")
		if err == nil {
			t.Fatal("expected error for missing playlist")
		}
		if !strings.Contains(err.Error(), "missing") {
			t.Errorf("expected playlist id in error, got %v", err)
		}
	})

	t.Run("AddTracks", func(t *testing.T) {
		api := newFakeSpotifyAPI(t)

		if err := api.service().AddTracks(context.Background(), "dest", []string{"x", "y"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(api.added) != 1 {
			t.Fatalf("expected one request, got %d", len(api.added))
		}
		want := "spotify:track:x,spotify:track:y"
		if got := strings.Join(api.added[0], ","); got != want {
			t.Errorf("expected uris %s, got %s", want, got)
		}
	})

	t.Run("AddTracks empty is a no-op", func(t *testing.T) {
		api := newFakeSpotifyAPI(t)

		if err := api.service().AddTracks(context.Background(), "dest", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(api.added) != 0 {
			t.Errorf("expected no requests, got %d", len(api.added))
		}
	})

	t.Run("AddTracks rejects oversized batch", func(t *testing.T) {
		api := newFakeSpotifyAPI(t)

		ids := make([]string, MaxTracksPerRequest+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}
		if err := api.service().AddTracks(context.Background(), "dest", ids); err == nil {
			t.Error("expected error for more than 100 tracks")
		}
		if len(api.added) != 0 {
			t.Errorf("expected no requests, got %d", len(api.added))
		}
	})

	t.Run("AddTracks error", func(t *testing.T) {
		api := newFakeSpotifyAPI(t)
		api.failAdd = true

		if err := api.service().AddTracks(context.Background(), "dest", []string{"x"}); err == nil {
			t.Error("expected error from rejected request")
		}
	})
}
