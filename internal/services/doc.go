// Package services wraps the two external collaborators of a sync run behind small interfaces.
//
// # Playlist API
//
// [PlaylistAPI] covers paginated playlist reads and batched additions. [SpotifyService] implements it with
// github.com/zmb3/spotify/v2.
//
// # Token Cache
//
// OAuth tokens live in a JSON file ([FileTokenCache]). [ConnectSpotify] seeds an [oauth2.TokenSource] from that
// file and writes every refreshed token back to it, so later runs authenticate without a browser. The file is
// bootstrapped once with the authorization code flow (see the auth command).
//
// # Cloud Mode
//
// [CacheStore] mirrors the token cache file to object storage so the process can run statelessly.
// [BucketStore] implements it with cloud.google.com/go/storage.
//
// # Session
//
// [Session] ties both together:
//   - [NewSession] : download cached token (cloud mode), then authenticate
//   - [Session.RetrieveTracksFromPlaylist] : follow every page, sleeping between pages
//   - [Session.AddTracksToPlaylist] : chunks of [MaxTracksPerRequest], sleeping after each chunk
//   - [Session.UploadRefreshedCacheToken] : push the refreshed cache back to the bucket
//
// # Error Handling
//
// Session operations wrap failures with sentinel errors from the shared package:
//   - [shared.ErrInitialization] : storage client, bucket or object could not be resolved
//   - [shared.ErrAuthentication] : missing credentials, missing cache, failed refresh
//   - [shared.ErrAPIRead] : playlist fetch failed
//   - [shared.ErrAPIWrite] : a batch was rejected (earlier batches stay applied)
//   - [shared.ErrUpload] : cache upload failed
package services
