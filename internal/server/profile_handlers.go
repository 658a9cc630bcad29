package server

import (
	"errors"
	"net/http"

	"innersight/internal/auth"
	"innersight/internal/core"
	"innersight/internal/persistence"
)

// ProfileRequest replaces the caller's profile.
type ProfileRequest struct {
	DisplayName     string                      `json:"display_name"`
	Personalization core.PersonalizationContext `json:"personalization"`
}

// handleGetProfile handles GET /api/profile. Users without a stored profile
// get an empty one.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	profile, err := s.db.Profiles().Get(r.Context(), userID)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondJSON(w, http.StatusOK, core.Profile{UserID: userID})
		return
	}
	if err != nil {
		s.log.Error("Failed to load profile", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

// handleSaveProfile handles PUT /api/profile
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	profile := &core.Profile{
		UserID:          auth.UserID(r.Context()),
		DisplayName:     req.DisplayName,
		Personalization: req.Personalization,
	}
	profile.Personalization.Goals = core.NonBlank(profile.Personalization.Goals)
	profile.Personalization.Challenges = core.NonBlank(profile.Personalization.Challenges)

	if err := s.db.Profiles().Save(r.Context(), profile); err != nil {
		s.log.Error("Failed to save profile", "user_id", profile.UserID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}
