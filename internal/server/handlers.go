package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	ActiveProvider string            `json:"active_provider"`
	Checks         map[string]string `json:"checks"`
}

var serverStartTime = time.Now()

// maxBodyBytes bounds request bodies; entries are capped well below this.
const maxBodyBytes = 1 << 20

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "ok",
		Uptime:         time.Since(serverStartTime).Round(time.Second).String(),
		ActiveProvider: s.insights.Registry().Active().ID,
		Checks:         map[string]string{"database": "ok"},
	}

	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}
