// Package http exposes the JSON API and the websocket endpoint. Routing and
// validation are intentionally thin; authorization inputs arrive as explicit
// identity fields supplied by the auth collaborator upstream.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/domain"
)

// APIHandler serves the solo attempt lifecycle and competition management.
type APIHandler struct {
	attempts     *app.AttemptService
	competitions *app.CompetitionService
}

func NewAPIHandler(attempts *app.AttemptService, competitions *app.CompetitionService) *APIHandler {
	return &APIHandler{attempts: attempts, competitions: competitions}
}

// Register mounts all routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/attempts", h.startAttempt)
	mux.HandleFunc("POST /api/attempts/{id}/progress", h.saveProgress)
	mux.HandleFunc("GET /api/attempts/{id}/progress", h.getProgress)
	mux.HandleFunc("POST /api/attempts/{id}/submit", h.submitAttempt)
	mux.HandleFunc("GET /api/attempts/{id}/result", h.getResult)
	mux.HandleFunc("GET /api/attempts/{id}/export", h.exportAttempt)
	mux.HandleFunc("POST /api/answers/{id}/review", h.reviewAnswer)
	mux.HandleFunc("POST /api/competitions", h.createCompetition)
	mux.HandleFunc("GET /api/competitions/{code}", h.getCompetition)
}

func (h *APIHandler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		TestID string `json:"testId"`
		Mode   string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	attempt, err := h.attempts.Start(r.Context(), req.UserID, req.TestID, domain.AttemptMode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *APIHandler) saveProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string          `json:"userId"`
		Answer app.AnswerInput `json:"answer"`
	}
	if !decode(w, r, &req) {
		return
	}
	hasNext, err := h.attempts.SaveProgress(r.Context(), req.UserID, r.PathValue("id"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasNext": hasNext})
}

func (h *APIHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	view, err := h.attempts.Progress(r.Context(), r.URL.Query().Get("userId"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string            `json:"userId"`
		Answers []app.AnswerInput `json:"answers"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := h.attempts.Submit(r.Context(), req.UserID, r.PathValue("id"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) getResult(w http.ResponseWriter, r *http.Request) {
	view, err := h.attempts.Result(r.Context(), r.URL.Query().Get("userId"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) exportAttempt(w http.ResponseWriter, r *http.Request) {
	snap, err := h.attempts.ExportSnapshot(r.Context(), r.URL.Query().Get("userId"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) reviewAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeacherID string `json:"teacherId"`
		IsCorrect *bool  `json:"isCorrect"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.IsCorrect == nil {
		writeError(w, domain.Invalid("isCorrect is required"))
		return
	}
	result, err := h.attempts.Review(r.Context(), req.TeacherID, r.PathValue("id"), *req.IsCorrect)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) createCompetition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreatorID string `json:"creatorId"`
		TestID    string `json:"testId"`
		MaxTeams  int    `json:"maxTeams"`
	}
	if !decode(w, r, &req) {
		return
	}
	competition, teams, err := h.competitions.Create(r.Context(), req.CreatorID, req.TestID, req.MaxTeams)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"competition": competition, "teams": teams})
}

func (h *APIHandler) getCompetition(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.competitions.Snapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, domain.Invalid("malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error kinds onto stable response categories.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalid):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
