package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/attest-network/attestor/server/api/middleware"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
	Details   any    `json:"details,omitempty"`
}

// WriteError emits the standard error envelope. Details carries
// whatever partial result the handler wants to surface, such as an
// attestation outcome that failed mid-pipeline.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)
	WriteJSON(w, status, map[string]errorBody{"error": {
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	}})
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
