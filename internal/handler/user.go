package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/service"
)

// UserHandler serves journal pages and summaries, the follow graph, and
// the privacy settings endpoints.
type UserHandler struct {
	users    *service.UserService
	journals *service.JournalService
	logger   *slog.Logger
}

func NewUserHandler(users *service.UserService, journals *service.JournalService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		journals: journals,
		logger:   logger,
	}
}

// journalPage is one month of a journal as seen by the requesting viewer.
// Viewable=false carries no entry data at all — a denied viewer cannot tell
// a busy month from an empty one.
type journalPage struct {
	Viewable bool                  `json:"viewable"`
	Username string                `json:"username,omitempty"`
	Sits     []model.Sit           `json:"sits,omitempty"`
	Stats    *service.MonthlyStats `json:"stats,omitempty"`
	Next     *model.MonthActivity  `json:"next,omitempty"`
	Previous *model.MonthActivity  `json:"previous,omitempty"`
}

// HandleJournal shows one month of a user's journal. Defaults to the
// current month; ?year= and ?month= navigate.
//
// HTTP: GET /api/users/{username} (OptionalAuth)
func (h *UserHandler) HandleJournal(w http.ResponseWriter, r *http.Request) {
	owner, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	journal := h.journals.For(owner, viewerID)

	viewable, err := journal.Viewable(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !viewable {
		writeJSON(w, http.StatusOK, journalPage{Viewable: false, Username: owner.Username})
		return
	}

	curYear, curMonth := h.journals.CurrentMonth()
	year := queryInt(r, "year", curYear)
	month := time.Month(queryInt(r, "month", int(curMonth)))
	if month < time.January || month > time.December {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "month must be between 1 and 12",
		})
		return
	}

	page := journalPage{Viewable: true, Username: owner.Username}

	if page.Sits, err = journal.SitsByMonth(r.Context(), year, month); err != nil {
		writeError(w, err)
		return
	}
	if page.Stats, err = journal.StatsForMonth(r.Context(), year, month); err != nil {
		writeError(w, err)
		return
	}
	if page.Next, err = journal.NextMonth(r.Context(), year, month); err != nil {
		writeError(w, err)
		return
	}
	if page.Previous, err = journal.PreviousMonth(r.Context(), year, month); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleSummary returns the journal overview (first/latest entry, sparse
// month index, streak, current month stats) for an (owner, viewer) pair.
//
// HTTP: GET /api/users/{username}/summary (OptionalAuth)
func (h *UserHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	owner, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	summary, err := h.journals.For(owner, viewerID).Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleFollow makes the authenticated user follow {username}.
//
// HTTP: POST /api/users/{username}/follow (RequireAuth)
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, true)
}

// HandleUnfollow removes the follow edge.
//
// HTTP: DELETE /api/users/{username}/follow (RequireAuth)
func (h *UserHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, false)
}

func (h *UserHandler) handleFollowChange(w http.ResponseWriter, r *http.Request, follow bool) {
	viewerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	target, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}

	if follow {
		err = h.users.Follow(r.Context(), viewerID, target.ID)
	} else {
		err = h.users.Unfollow(r.Context(), viewerID, target.ID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleFollowers lists the accounts following {username}.
//
// HTTP: GET /api/users/{username}/followers
func (h *UserHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	h.handleFollowList(w, r, h.users.Followers)
}

// HandleFollowing lists the accounts {username} follows.
//
// HTTP: GET /api/users/{username}/following
func (h *UserHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	h.handleFollowList(w, r, h.users.Following)
}

func (h *UserHandler) handleFollowList(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID string) ([]model.User, error),
) {
	user, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := list(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	writeJSON(w, http.StatusOK, users)
}

type privacyRequest struct {
	PrivacySetting string `json:"privacySetting"`
}

// HandleSetPrivacy changes the authenticated user's account tier. Moving to
// or from 'private' bulk-updates the private flag on every existing entry
// as part of the same change.
//
// HTTP: PUT /api/settings/privacy (RequireAuth)
func (h *UserHandler) HandleSetPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req privacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.users.SetPrivacyTier(r.Context(), userID, req.PrivacySetting); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"privacySetting": req.PrivacySetting})
}

type selectedUsersRequest struct {
	UserIDs []string `json:"userIds"`
}

// HandleSetSelectedUsers replaces the authenticated user's whole
// selected-users whitelist.
//
// HTTP: PUT /api/settings/selected-users (RequireAuth)
func (h *UserHandler) HandleSetSelectedUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req selectedUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.users.ReplaceSelectedUsers(r.Context(), userID, req.UserIDs); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
