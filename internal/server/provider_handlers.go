package server

import (
	"net/http"
)

// ProviderInfo describes a configured provider without its credential.
type ProviderInfo struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	Reasoning  bool   `json:"reasoning"`
	Configured bool   `json:"configured"`
	Active     bool   `json:"active"`
}

// SetActiveProviderRequest is the body of PUT /api/providers/active
type SetActiveProviderRequest struct {
	ID string `json:"id"`
}

// handleListProviders handles GET /api/providers
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	registry := s.insights.Registry()
	active := registry.Active().ID

	var list []ProviderInfo
	for _, p := range registry.List() {
		list = append(list, ProviderInfo{
			ID:         p.ID,
			Model:      p.Model,
			Reasoning:  p.Reasoning,
			Configured: p.HasCredential(),
			Active:     p.ID == active,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"active":    active,
		"providers": list,
	})
}

// handleSetActiveProvider handles PUT /api/providers/active. The switch is
// process-wide and applies to the next call.
func (s *Server) handleSetActiveProvider(w http.ResponseWriter, r *http.Request) {
	var req SetActiveProviderRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	registry := s.insights.Registry()
	if !registry.Has(req.ID) {
		s.respondError(w, http.StatusBadRequest, "unknown provider: "+req.ID)
		return
	}
	registry.SetActive(req.ID)
	s.log.Info("Active provider changed", "provider", req.ID)

	s.respondJSON(w, http.StatusOK, map[string]string{"active": req.ID})
}
