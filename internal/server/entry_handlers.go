package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"innersight/internal/auth"
	"innersight/internal/core"
	"innersight/internal/insights"
	"innersight/internal/persistence"
)

// SaveEntryRequest creates an entry, or replaces it when ID is set.
type SaveEntryRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
}

// AnalyzeEntryResponse is returned by POST /api/entries/{id}/analyze
type AnalyzeEntryResponse struct {
	Entry      *core.Entry     `json:"entry"`
	Analysis   InsightResponse `json:"analysis"`
	Reflection InsightResponse `json:"reflection"`
}

// handleListEntries handles GET /api/entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	opts := persistence.ListOptions{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	entries, err := s.db.Entries().ListByUser(r.Context(), userID, opts)
	if err != nil {
		s.log.Error("Failed to list entries", "user_id", userID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list entries")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleSaveEntry handles PUT /api/entries. A missing title is generated.
func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	var req SaveEntryRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	opts, ok := s.callOptions(w, req.Provider)
	if !ok {
		return
	}

	ctx := r.Context()
	userID := auth.UserID(ctx)
	entry := &core.Entry{UserID: userID, Title: strings.TrimSpace(req.Title), Content: req.Content}

	status := http.StatusCreated
	if req.ID != "" {
		existing, err := s.db.Entries().Get(ctx, userID, req.ID)
		switch {
		case err == nil:
			entry = existing
			// Earlier insights describe the old content.
			if existing.Content != req.Content {
				entry.Analysis = nil
				entry.Insight = ""
			}
			entry.Content = req.Content
			if t := strings.TrimSpace(req.Title); t != "" {
				entry.Title = t
			}
			status = http.StatusOK
		case errors.Is(err, persistence.ErrNotFound):
			entry.ID = req.ID
		default:
			s.log.Error("Failed to load entry", "id", req.ID, "error", err)
			s.respondError(w, http.StatusInternalServerError, "Failed to save entry")
			return
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Title == "" {
		entry.Title = s.insights.Title(ctx, entry.Content, opts...)
	}

	if err := s.db.Entries().Save(ctx, entry); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Entry not found")
			return
		}
		s.log.Error("Failed to save entry", "id", entry.ID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save entry")
		return
	}
	s.respondJSON(w, status, entry)
}

// handleGetEntry handles GET /api/entries/{id}
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.loadEntry(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

// handleDeleteEntry handles DELETE /api/entries/{id}
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.db.Entries().Delete(r.Context(), auth.UserID(r.Context()), id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	if err != nil {
		s.log.Error("Failed to delete entry", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyzeEntry handles POST /api/entries/{id}/analyze. Fallback
// results are returned but never stored on the entry.
func (s *Server) handleAnalyzeEntry(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.callOptions(w, r.URL.Query().Get("provider"))
	if !ok {
		return
	}
	entry, ok := s.loadEntry(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	analysis, reflection := s.insights.Insights(ctx, entry.Content, opts...)

	changed := false
	if analysis.Source != insights.SourceFallback {
		a := analysis.Analysis
		entry.Analysis = &a
		changed = true
	}
	if reflection.Source != insights.SourceFallback {
		entry.Insight = reflection.Text
		changed = true
	}
	if changed {
		if err := s.db.Entries().Save(ctx, entry); err != nil {
			s.log.Error("Failed to store entry insights", "id", entry.ID, "error", err)
			s.respondError(w, http.StatusInternalServerError, "Failed to store insights")
			return
		}
	}

	s.respondJSON(w, http.StatusOK, AnalyzeEntryResponse{
		Entry:      entry,
		Analysis:   newInsightResponse(analysis),
		Reflection: newInsightResponse(reflection),
	})
}

func (s *Server) loadEntry(w http.ResponseWriter, r *http.Request) (*core.Entry, bool) {
	id := chi.URLParam(r, "id")
	entry, err := s.db.Entries().Get(r.Context(), auth.UserID(r.Context()), id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("Failed to load entry", "id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to load entry")
		return nil, false
	}
	return entry, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
