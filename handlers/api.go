// forgeboard/handlers/api.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"forgeboard/models"
	"forgeboard/store"

	"github.com/go-chi/chi/v5"
)

type ideaPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Author      string `json:"author"`
}

type statusPayload struct {
	Status string `json:"status"`
	// DevNote is left unchanged when omitted.
	DevNote *string `json:"devNote"`
}

type ideaResponse struct {
	Idea     models.Idea `json:"idea"`
	HasVoted bool        `json:"hasVoted"`
}

type notificationResponse struct {
	Kind      models.NotificationKind `json:"kind"`
	MessageID string                  `json:"messageId"`
	Text      string                  `json:"text"`
}

type sessionResponse struct {
	User         *models.User          `json:"user"`
	AuthState    models.AuthState      `json:"authState"`
	IsAdmin      bool                  `json:"isAdmin"`
	VotedIDs     []string              `json:"votedIds"`
	AuthMode     string                `json:"authMode"`
	Notification *notificationResponse `json:"notification"`
}

// invalidReason strips the store's wrapping from a validation error.
func invalidReason(err error) string {
	return strings.TrimPrefix(err.Error(), store.ErrInvalidIdea.Error()+": ")
}

func apiError(w http.ResponseWriter, r *http.Request, app App, status int, msgID string, data map[string]string) {
	respondJSON(w, status, map[string]string{"error": localize(r, app, msgID, data)}, app)
}

// HandleAPIIdeas returns the ranking for ?category (All by default).
func HandleAPIIdeas(w http.ResponseWriter, r *http.Request, app App) {
	filter, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, app)
		return
	}
	respondJSON(w, http.StatusOK, sessionStore(r, app).Rank(filter), app)
}

func HandleAPIIdea(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	idea, ok := st.Idea(chi.URLParam(r, "id"))
	if !ok {
		apiError(w, r, app, http.StatusNotFound, "error.not_found", nil)
		return
	}
	respondJSON(w, http.StatusOK, ideaResponse{Idea: idea, HasVoted: st.HasVoted(idea.ID)}, app)
}

func HandleAPIAnalytics(w http.ResponseWriter, r *http.Request, app App) {
	respondJSON(w, http.StatusOK, sessionStore(r, app).Analytics(), app)
}

// HandleAPISession describes the caller's session, including the live notification.
func HandleAPISession(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	resp := sessionResponse{
		AuthState: st.AuthState(),
		IsAdmin:   st.IsAdmin(),
		VotedIDs:  st.VotedIDs(),
		AuthMode:  app.Auth().Mode(),
	}
	if u, ok := st.User(); ok {
		resp.User = &u
	}
	if n, ok := st.Notification(); ok {
		resp.Notification = &notificationResponse{
			Kind:      n.Kind,
			MessageID: n.MessageID,
			Text:      localize(r, app, n.MessageID, n.Data),
		}
	}
	respondJSON(w, http.StatusOK, resp, app)
}

// HandleAPISubmit adds an idea from a JSON body. Attachments are only accepted by the form.
func HandleAPISubmit(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)

	var p ideaPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body."}, app)
		return
	}
	category := models.Category(p.Category)
	if c, err := models.ParseCategory(p.Category); err == nil {
		category = c
	}
	input := models.IdeaInput{Title: p.Title, Description: p.Description, Category: category, Author: p.Author}
	if u, ok := st.User(); ok {
		input.Author = u.Username
	}

	idea, err := st.AddIdea(input)
	if err != nil {
		apiError(w, r, app, http.StatusBadRequest, "error.invalid_idea", map[string]string{"Reason": invalidReason(err)})
		return
	}
	app.Metrics().IdeasSubmitted.WithLabelValues(string(idea.Category)).Inc()
	respondJSON(w, http.StatusCreated, ideaResponse{Idea: idea, HasVoted: false}, app)
}

func HandleAPIVote(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	idea, cast, err := st.VoteIdea(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrUnauthorized):
		apiError(w, r, app, http.StatusUnauthorized, store.MsgVoteLoginRequired, nil)
		return
	case errors.Is(err, store.ErrNotFound):
		apiError(w, r, app, http.StatusNotFound, "error.not_found", nil)
		return
	case err != nil:
		reportError(r, app.Logger().With("handler", "HandleAPIVote"), "Vote failed", err)
		apiError(w, r, app, http.StatusInternalServerError, "error.internal", nil)
		return
	}

	app.Metrics().Votes.WithLabelValues(voteAction(cast)).Inc()
	respondJSON(w, http.StatusOK, ideaResponse{Idea: idea, HasVoted: cast}, app)
}

func HandleAPIStatus(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	if !st.IsAdmin() {
		apiError(w, r, app, http.StatusForbidden, "admin.required", nil)
		return
	}

	var p statusPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body."}, app)
		return
	}
	status, err := models.ParseStatus(p.Status)
	if err != nil {
		apiError(w, r, app, http.StatusBadRequest, "error.invalid_status", map[string]string{"Status": p.Status})
		return
	}

	idea, err := st.UpdateStatus(chi.URLParam(r, "id"), status, p.DevNote)
	if errors.Is(err, store.ErrNotFound) {
		apiError(w, r, app, http.StatusNotFound, "error.not_found", nil)
		return
	}
	if err != nil {
		reportError(r, app.Logger().With("handler", "HandleAPIStatus"), "Status update failed", err)
		apiError(w, r, app, http.StatusInternalServerError, "error.internal", nil)
		return
	}
	app.Metrics().StatusChanges.WithLabelValues(string(idea.Status)).Inc()
	respondJSON(w, http.StatusOK, ideaResponse{Idea: idea, HasVoted: st.HasVoted(idea.ID)}, app)
}

func HandleAPIAdminToggle(w http.ResponseWriter, r *http.Request, app App) {
	enabled := sessionStore(r, app).ToggleAdmin()
	respondJSON(w, http.StatusOK, map[string]bool{"isAdmin": enabled}, app)
}
