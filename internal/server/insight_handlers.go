package server

import (
	"net/http"
	"strings"

	"innersight/internal/core"
	"innersight/internal/insights"
)

// InsightRequest is the body of every /api/insights call.
type InsightRequest struct {
	Content         string                       `json:"content"`
	Provider        string                       `json:"provider,omitempty"`
	Personalization *core.PersonalizationContext `json:"personalization,omitempty"`
}

// InsightResponse reports one task result and how it was produced.
type InsightResponse struct {
	Task     core.TaskKind        `json:"task"`
	Provider string               `json:"provider"`
	Source   insights.Source      `json:"source"`
	Text     string               `json:"text,omitempty"`
	Analysis *core.AnalysisResult `json:"analysis,omitempty"`
	Notes    []string             `json:"notes,omitempty"`
	Stage    string               `json:"failed_stage,omitempty"`
}

// FullInsightResponse pairs the structured analysis with a reflection.
type FullInsightResponse struct {
	Analysis   InsightResponse `json:"analysis"`
	Reflection InsightResponse `json:"reflection"`
}

func newInsightResponse(r insights.Report) InsightResponse {
	resp := InsightResponse{
		Task:     r.Task,
		Provider: r.Provider,
		Source:   r.Source,
		Text:     r.Text,
		Stage:    r.Stage,
	}
	if r.Task.IsStructured() {
		a := r.Analysis
		resp.Analysis = &a
	}
	for _, n := range r.Notes {
		resp.Notes = append(resp.Notes, n.String())
	}
	return resp
}

// readInsightRequest decodes and validates the body, writing a 400 on failure.
func (s *Server) readInsightRequest(w http.ResponseWriter, r *http.Request) (InsightRequest, []insights.CallOption, bool) {
	var req InsightRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return req, nil, false
	}
	if strings.TrimSpace(req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return req, nil, false
	}

	opts, ok := s.callOptions(w, req.Provider)
	if !ok {
		return req, nil, false
	}
	if req.Personalization != nil {
		opts = append(opts, insights.WithPersonalizationContext(req.Personalization))
	}
	return req, opts, true
}

func (s *Server) callOptions(w http.ResponseWriter, providerID string) ([]insights.CallOption, bool) {
	if providerID == "" {
		return nil, true
	}
	if !s.insights.Registry().Has(providerID) {
		s.respondError(w, http.StatusBadRequest, "unknown provider: "+providerID)
		return nil, false
	}
	return []insights.CallOption{insights.WithProvider(providerID)}, true
}

// handleAnalyze handles POST /api/insights/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.readInsightRequest(w, r)
	if !ok {
		return
	}
	report := s.insights.Run(r.Context(), core.TaskAnalysis, req.Content, opts...)
	s.respondJSON(w, http.StatusOK, newInsightResponse(report))
}

// handleNarrative serves the free-text tasks.
func (s *Server) handleNarrative(kind core.TaskKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, opts, ok := s.readInsightRequest(w, r)
		if !ok {
			return
		}
		report := s.insights.Run(r.Context(), kind, req.Content, opts...)
		s.respondJSON(w, http.StatusOK, newInsightResponse(report))
	}
}

// handleFullInsights handles POST /api/insights/full
func (s *Server) handleFullInsights(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.readInsightRequest(w, r)
	if !ok {
		return
	}
	analysis, reflection := s.insights.Insights(r.Context(), req.Content, opts...)
	s.respondJSON(w, http.StatusOK, FullInsightResponse{
		Analysis:   newInsightResponse(analysis),
		Reflection: newInsightResponse(reflection),
	})
}
