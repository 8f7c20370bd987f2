package models

import (
	"errors"
	"time"
)

// Run is the history record of one sync run.
type Run struct {
	id               string
	origin           string
	state            string
	cloudMode        bool
	destinationID    string
	destinationCount int
	sourceCount      int
	failedSources    int
	addedCount       int
	writeError       string
	uploadError      string
	errorMessage     string
	startedAt        time.Time
	finishedAt       time.Time
}

// NewRun creates a run record for the destination playlist, started at startedAt.
func NewRun(id, origin, destinationID string, cloudMode bool, startedAt time.Time) *Run {
	return &Run{
		id:            id,
		origin:        origin,
		destinationID: destinationID,
		cloudMode:     cloudMode,
		startedAt:     startedAt,
		finishedAt:    startedAt,
	}
}

func (r *Run) ID() string { return r.id }
func (r *Run) CreatedAt() time.Time { return r.startedAt }
func (r *Run) Origin() string { return r.origin }
func (r *Run) State() string { return r.state }
func (r *Run) CloudMode() bool { return r.cloudMode }
func (r *Run) DestinationID() string { return r.destinationID }
func (r *Run) DestinationCount() int { return r.destinationCount }
func (r *Run) SourceCount() int { return r.sourceCount }
func (r *Run) FailedSources() int { return r.failedSources }
func (r *Run) AddedCount() int { return r.addedCount }
func (r *Run) WriteError() string { return r.writeError }
func (r *Run) UploadError() string { return r.uploadError }
func (r *Run) ErrorMessage() string { return r.errorMessage }
func (r *Run) StartedAt() time.Time { return r.startedAt }
func (r *Run) FinishedAt() time.Time { return r.finishedAt }
func (r *Run) Duration() time.Duration { return r.finishedAt.Sub(r.startedAt) }

func (r *Run) SetID(id string) { r.id = id }
func (r *Run) SetState(state string) { r.state = state }
func (r *Run) SetErrorMessage(msg string) { r.errorMessage = msg }
func (r *Run) SetFinishedAt(t time.Time) { r.finishedAt = t }
func (r *Run) SetWriteError(msg string) { r.writeError = msg }
func (r *Run) SetUploadError(msg string) { r.uploadError = msg }
func (r *Run) SetCounts(destination, source, failedSources, added int) {
	r.destinationCount = destination
	r.sourceCount = source
	r.failedSources = failedSources
	r.addedCount = added
}

// Succeeded reports whether the run reached the final state.
func (r *Run) Succeeded() bool {
	return r.state == "done"
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.id == "" {
		return errors.New("run id is required")
	}
	if r.destinationID == "" {
		return errors.New("destination playlist id is required")
	}
	if r.state == "" {
		return errors.New("run state is required")
	}
	if r.finishedAt.Before(r.startedAt) {
		return errors.New("run cannot finish before it starts")
	}
	return nil
}
