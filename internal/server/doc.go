// Package server provides HTTP routing, middleware, the sync trigger and OAuth handling.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in registration order: the first added sees the request first.
//
// The [BasicRouter] implementation registers [http.ServeMux] method patterns such as "POST /sync".
//
// # Sync Trigger
//
// [SyncHandler] serves POST /sync for schedulers and serverless hosts. The origin label is read from the
// X-Plsync-Origin header. [HealthHandler] serves GET /health.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow used once to bootstrap the token cache.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
