package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/service"
)

// SitHandler manages journal entry CRUD and the entry detail page with its
// next/previous navigation.
type SitHandler struct {
	sits   *service.SitService
	logger *slog.Logger
}

func NewSitHandler(sits *service.SitService, logger *slog.Logger) *SitHandler {
	return &SitHandler{sits: sits, logger: logger}
}

// sitRequest is the JSON body for create and update. CustomDate, when
// present, backdates the entry ("2024-01-05T21:30:00Z").
type sitRequest struct {
	Type       model.SitType `json:"type"`
	Duration   int           `json:"duration"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	Private    bool          `json:"private"`
	CustomDate *time.Time    `json:"customDate,omitempty"`
}

func (r sitRequest) toInput() service.CreateSitInput {
	return service.CreateSitInput{
		Type:       r.Type,
		Duration:   r.Duration,
		Title:      r.Title,
		Body:       r.Body,
		Private:    r.Private,
		CustomDate: r.CustomDate,
	}
}

// HandleCreate logs a new entry for the authenticated user.
//
// HTTP: POST /api/sits (RequireAuth)
func (h *SitHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req sitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	sit, err := h.sits.Create(r.Context(), userID, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sit)
}

// sitDetail is the entry page payload: the entry plus its neighbours for
// navigation (nil at either boundary).
type sitDetail struct {
	Sit      *model.Sit `json:"sit"`
	Next     *model.Sit `json:"next,omitempty"`
	Previous *model.Sit `json:"previous,omitempty"`
}

// HandleGet shows one entry, subject to the per-entry visibility check.
// External reads bump the view counter.
//
// HTTP: GET /api/sits/{id} (OptionalAuth)
func (h *SitHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	viewerID, _ := auth.UserIDFromContext(r.Context())

	sit, err := h.sits.Get(r.Context(), id, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	detail := sitDetail{Sit: sit}

	// Navigation is best-effort; a failed neighbour lookup shouldn't sink
	// the page.
	if next, err := h.sits.Next(r.Context(), sit, viewerID); err == nil {
		detail.Next = next
	} else {
		h.logger.Warn("next sit lookup failed", slog.String("sitID", id), slog.String("error", err.Error()))
	}
	if prev, err := h.sits.Prev(r.Context(), sit, viewerID); err == nil {
		detail.Previous = prev
	} else {
		h.logger.Warn("previous sit lookup failed", slog.String("sitID", id), slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, detail)
}

// HandleUpdate edits an entry. Owner only.
//
// HTTP: PUT /api/sits/{id} (RequireAuth)
func (h *SitHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req sitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	sit, err := h.sits.Update(r.Context(), chi.URLParam(r, "id"), userID, req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sit)
}

// HandleDelete removes an entry. Owner only.
//
// HTTP: DELETE /api/sits/{id} (RequireAuth)
func (h *SitHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if err := h.sits.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
