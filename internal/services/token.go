package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// NewOAuthConfig builds the oauth2 configuration for the Spotify accounts service.
func NewOAuthConfig(c shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// NewAuthenticator builds the authorization code flow helper used to bootstrap the token cache.
func NewAuthenticator(c shared.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(c.ClientID),
		spotifyauth.WithClientSecret(c.ClientSecret),
		spotifyauth.WithRedirectURL(c.RedirectURI),
		spotifyauth.WithScopes(c.Scopes()...),
	)
}

// FileTokenCache persists an [oauth2.Token] as JSON at a fixed path.
type FileTokenCache struct {
	path string
}

// NewFileTokenCache returns a cache backed by the file at path.
func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

// Path returns the cache file location.
func (c *FileTokenCache) Path() string {
	return c.path
}

// Load reads the cached token. A missing file yields [shared.ErrNoCachedToken].
func (c *FileTokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", shared.ErrNoCachedToken, c.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token cache %s: %w", c.path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s holds no access or refresh token", shared.ErrNoCachedToken, c.path)
	}
	return &token, nil
}

// Save writes token to the cache file, creating its directory if needed.
func (c *FileTokenCache) Save(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

// NewCachedTokenSource returns a token source seeded from cache that writes refreshed tokens back to it.
//
// The token is fetched once up front so an expired access token is refreshed, and a revoked refresh token is
// reported, before any API call is made.
func NewCachedTokenSource(ctx context.Context, config *oauth2.Config, cache *FileTokenCache, logger *log.Logger) (oauth2.TokenSource, error) {
	cached, err := cache.Load()
	if err != nil {
		return nil, err
	}

	source := &refreshableTokenSource{
		source: config.TokenSource(ctx, cached),
		last:   cached.AccessToken,
		callback: func(token *oauth2.Token) {
			if err := cache.Save(token); err != nil {
				logger.Warn("failed to write refreshed token", "path", cache.Path(), "err", err)
				return
			}
			logger.Info("refreshed token written to cache", "path", cache.Path())
		},
	}

	if _, err := source.Token(); err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return source, nil
}

// ConnectSpotify authenticates against Spotify from the token cache selected by config, without a browser.
//
// Failures are reported as [shared.ErrAuthentication].
func ConnectSpotify(ctx context.Context, config *shared.Config, logger *log.Logger) (*SpotifyService, error) {
	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %w: set %s and %s", shared.ErrAuthentication, shared.ErrMissingCredentials,
			shared.EnvClientID, shared.EnvClientSecret)
	}

	cache := NewFileTokenCache(config.CachePath())
	source, err := NewCachedTokenSource(ctx, NewOAuthConfig(config.Spotify), cache, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
	}

	return NewSpotifyService(oauth2.NewClient(ctx, source)), nil
}
