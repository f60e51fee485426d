package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"docbucket/bucket"
)

// StatusHandlers handles status-related requests
type StatusHandlers struct {
	container *Container
}

// BucketStatus represents the status of the served bucket
type BucketStatus struct {
	Name        string       `json:"name"`
	State       bucket.State `json:"state"`
	Backend     string       `json:"backend"`
	LastUpdated time.Time    `json:"last_updated"`
}

// NewStatusHandlers creates a new StatusHandlers instance
func NewStatusHandlers(container *Container) *StatusHandlers {
	return &StatusHandlers{container: container}
}

// HandleStatus reports the bucket name and lifecycle state. A bucket that is
// not open answers 503 so that load balancers can take the node out.
func (h *StatusHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := BucketStatus{
		Name:        h.container.Bucket.Name(),
		State:       h.container.Bucket.State(),
		LastUpdated: time.Now(),
	}
	if h.container.Config != nil {
		status.Backend = h.container.Config.Bucket.Backend
	}

	code := http.StatusOK
	if status.State != bucket.StateOpen {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// writeJSON encodes v as the response body with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
