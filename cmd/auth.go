package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/plsync/internal/server"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth performs the one-time OAuth2 authorization code flow and writes the token cache.
//
// The authorization URL is printed rather than opened, so the flow also works over SSH. The callback is served on
// the host and path of the configured redirect URI. In cloud mode the new cache is uploaded to the bucket.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: set %s and %s or spotify.client_id and spotify.client_secret",
			shared.ErrMissingCredentials, shared.EnvClientID, shared.EnvClientSecret)
	}

	redirect, err := url.Parse(config.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid spotify.redirect_uri %q", shared.ErrInvalidConfig, config.Spotify.RedirectURI)
	}

	auth := services.NewAuthenticator(config.Spotify)
	state := shared.GenerateID()
	handler := server.NewOAuthHandler(auth, state, callbackPath(redirect))

	token, err := r.awaitCallback(ctx, callbackAddr(redirect), handler, auth.AuthURL(state))
	if err != nil {
		return err
	}

	if err := r.storeToken(ctx, config, token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token cache saved to %s\n", config.CachePath())
	return nil
}

// awaitCallback serves handler on addr until the callback fires, the timeout elapses or ctx is cancelled.
func (r *Runner) awaitCallback(ctx context.Context, addr string, handler *server.OAuthHandler, authURL string) (*oauth2.Token, error) {
	router := server.NewBasicRouter()
	router.Handler(handler)
	httpServer := server.NewServer(addr, router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("Open this URL in your browser to authorize plsync:\n\n%s\n\n", authURL)
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback server: %v", shared.ErrAuthentication, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrAuthentication, authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthentication, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthentication)
	}
	return result.Token, nil
}

// storeToken writes token to the cache file for the configured mode and mirrors it to the bucket in cloud mode.
func (r *Runner) storeToken(ctx context.Context, config *shared.Config, token *oauth2.Token) error {
	path := config.CachePath()
	if err := services.NewFileTokenCache(path).Save(token); err != nil {
		return err
	}
	r.logger.Info("token cache written", "path", path)

	if !config.Environment.CloudMode {
		return nil
	}

	store := r.store
	if store == nil {
		bucket, err := services.NewBucketStore(ctx, config.Environment.BucketName, config.CacheObjectKey())
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrUpload, err)
		}
		store = bucket
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	if err := store.Upload(ctx, path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpload, err)
	}
	r.writePlain("✓ Token cache uploaded to gs://%s/%s\n", config.Environment.BucketName, config.CacheObjectKey())
	return nil
}

// callbackPath is the path Spotify redirects to; a redirect URI without one lands on the root.
func callbackPath(redirect *url.URL) string {
	if redirect.Path == "" {
		return "/"
	}
	return redirect.Path
}

// callbackAddr is the listen address for the redirect URI's host.
func callbackAddr(redirect *url.URL) string {
	port := redirect.Port()
	if port == "" {
		port = "80"
		if redirect.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(redirect.Hostname(), port)
}
