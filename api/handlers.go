package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"deskresearch/repository"

	"go.uber.org/zap"
)

const MinQueryLength = 10

type ResearchRequest struct {
	Query string `json:"query"`
	Email string `json:"email"`
}

type ResearchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"qdrant": pick(s.components.IndexConnected, "connected", "disconnected"),
		"groq":   pick(s.components.LLMConfigured, "configured", "not configured"),
		"resend": pick(s.components.MailConfigured, "configured", "not configured"),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     AppName,
		"version": AppVersion,
		"components": map[string]string{
			"research_engine": pick(s.submitter != nil, "active", "inactive"),
			"qdrant":          pick(s.components.IndexConnected, "connected", "disconnected"),
			"groq_api":        pick(s.components.LLMConfigured, "configured", "missing"),
			"resend_api":      pick(s.components.MailConfigured, "configured", "missing"),
		},
	})
}

func (s *Server) researchHandler(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "Research engine not available. Check Qdrant configuration.")
		return
	}

	var req ResearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	query := strings.TrimSpace(req.Query)
	if len([]rune(query)) < MinQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Query must be at least %d characters", MinQueryLength))
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	runID, err := s.submitter.Submit(r.Context(), query, addr.Address)
	if err != nil {
		s.logger.Error("failed to start research run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, ResearchResponse{
		Status:  "processing",
		Message: fmt.Sprintf("Your research is being processed. You will receive an email at %s in 1-3 minutes.", addr.Address),
		RunID:   runID,
	})
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
