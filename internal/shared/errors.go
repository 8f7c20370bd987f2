package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Session errors
	ErrInitialization = fmt.Errorf("session initialization failed")
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrNoCachedToken  = fmt.Errorf("no cached token")

	// API and storage errors
	ErrAPIRead  = fmt.Errorf("playlist read failed")
	ErrAPIWrite = fmt.Errorf("playlist write failed")
	ErrUpload   = fmt.Errorf("cache upload failed")

	ErrHistoryDisabled = fmt.Errorf("run history is not configured")
)

// PlaylistCapacityError reports a destination playlist that already holds the configured maximum number of tracks.
type PlaylistCapacityError struct {
	PlaylistID string
	Count      int
	Max        int
}

func (e *PlaylistCapacityError) Error() string {
	return fmt.Sprintf("playlist %s exceeds maximum allowed tracks (%d >= %d)", e.PlaylistID, e.Count, e.Max)
}
