package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	OpenSession Phase = iota
	FetchDest
	FetchSource
	Compare
	AddTracks
	UploadCache
	Complete
)

func (p Phase) String() string {
	switch p {
	case OpenSession:
		return "open_session"
	case FetchDest:
		return "fetch_dest"
	case FetchSource:
		return "fetch_source"
	case Compare:
		return "compare"
	case AddTracks:
		return "add_tracks"
	case UploadCache:
		return "upload_cache"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// State is a step of the per-run state machine.
type State int

const (
	StateInit State = iota
	StateDestinationFetched
	StateSourcesFetched
	StateDiffComputed
	StateWritten
	StateWriteSkipped
	StateCacheUploaded
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDestinationFetched:
		return "destination_fetched"
	case StateSourcesFetched:
		return "sources_fetched"
	case StateDiffComputed:
		return "diff_computed"
	case StateWritten:
		return "written"
	case StateWriteSkipped:
		return "write_skipped"
	case StateCacheUploaded:
		return "cache_uploaded"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

func openSessionUpdate(cloud bool) ProgressUpdate {
	msg := "Authenticating with Spotify..."
	if cloud {
		msg = "Restoring token cache and authenticating with Spotify..."
	}
	return ProgressUpdate{Phase: OpenSession, Step: 1, Total: 1, Message: msg}
}

func fetchDestUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching destination playlist (%s)...", id),
	}
}

func fetchSourceUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching source playlist (%s)...", step, total, id),
	}
}

func skippedSourceUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}

func compareUpdate(newTracks []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d new tracks", len(newTracks)),
		Data:    newTracks,
	}
}

func addTracksUpdate(count, batches int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    0,
		Total:   batches,
		Message: fmt.Sprintf("Adding %d tracks in %d batches...", count, batches),
	}
}

func uploadCacheUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: UploadCache, Step: 1, Total: 1, Message: "Uploading token cache..."}
}

func completeUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run %s finished: %s", result.RunID, result.State),
		Data:    result,
	}
}
