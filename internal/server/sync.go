package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/tasks"
)

// OriginHeader carries the origin label of a triggered run.
const OriginHeader = "X-Plsync-Origin"

// InvokeFunc runs one sync, see [tasks.Invoke].
type InvokeFunc func(ctx context.Context, origin string) (tasks.Response, error)

// SyncHandler triggers a sync run per POST request.
//
// Runs are serialized: a request arriving while another run is in progress gets 503.
type SyncHandler struct {
	invoke InvokeFunc
	logger *log.Logger
	mu     sync.Mutex
}

// NewSyncHandler creates a handler that calls invoke for every accepted request.
func NewSyncHandler(invoke InvokeFunc, logger *log.Logger) *SyncHandler {
	return &SyncHandler{invoke: invoke, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"/sync"}
}

// ServeHTTP runs the sync and maps the outcome to a status code: 200 on completion, 409 when the destination is
// full, 500 on any other failure.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.mu.TryLock() {
		writeJSON(w, http.StatusServiceUnavailable, tasks.Response{Message: "sync already running"})
		return
	}
	defer h.mu.Unlock()

	origin := r.Header.Get(OriginHeader)
	if origin == "" {
		origin = "http"
	}

	// Client disconnects do not cancel the run.
	resp, err := h.invoke(context.WithoutCancel(r.Context()), origin)
	switch {
	case err != nil && tasks.IsCapacityError(err):
		h.logger.Error("sync refused", "origin", origin, "err", err)
		writeJSON(w, http.StatusConflict, tasks.Response{Message: err.Error(), StatusCode: http.StatusConflict})
	case err != nil:
		h.logger.Error("sync failed", "origin", origin, "err", err)
		writeJSON(w, http.StatusInternalServerError, tasks.Response{Message: err.Error(), StatusCode: http.StatusInternalServerError})
	case !resp.OK:
		writeJSON(w, http.StatusInternalServerError, tasks.Response{Message: "sync failed", StatusCode: http.StatusInternalServerError})
	default:
		writeJSON(w, resp.StatusCode, resp)
	}
}

// HealthHandler answers liveness checks.
type HealthHandler struct{}

func (HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
