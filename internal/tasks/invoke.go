package tasks

import (
	"context"
	"net/http"
)

// CompleteMessage is the fixed success marker returned by [Invoke].
const CompleteMessage = "Complete."

// Response is the outcome reported to the process entry point (CLI, HTTP trigger or serverless host).
type Response struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Invoke runs one sync and reduces its outcome to a [Response].
//
// A run that got past the destination read and the capacity guard reports success, even when the batched add or
// the cache upload failed. Any other fatal failure reports OK false with a nil error. A capacity error is the one
// failure returned as an error, so hosts can surface it distinctly.
func Invoke(ctx context.Context, engine SyncEngine, origin string) (Response, error) {
	_, err := engine.Run(ctx, origin)
	if err != nil {
		if IsCapacityError(err) {
			return Response{}, err
		}
		return Response{OK: false}, nil
	}
	return Response{OK: true, Message: CompleteMessage, StatusCode: http.StatusOK}, nil
}
