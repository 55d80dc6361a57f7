// forgeboard/handlers/handlers.go

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"forgeboard/auth"
	"forgeboard/database"
	"forgeboard/locales"
	"forgeboard/media"
	"forgeboard/metrics"
	"forgeboard/models"
	"forgeboard/store"
	"forgeboard/utils"

	"github.com/getsentry/sentry-go"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	Sessions() *store.Registry
	Auth() *auth.Flow
	Provider() *auth.MockProvider
	Attachments() *media.Attachments
	DB() *database.DatabaseService
	RateLimiter() *utils.RateLimiter
	Locales() *locales.Catalog
	Metrics() *metrics.Metrics
	Logger() *slog.Logger
	// UploadDir is the local attachment directory, empty when attachments live in S3.
	UploadDir() string
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// MakeHandler adapts a handler that needs the App to http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// sessionStore returns the state of the requesting client's application run.
func sessionStore(r *http.Request, app App) *store.Store {
	return app.Sessions().Get(clientID(r))
}

func clientID(r *http.Request) string {
	id, _ := r.Context().Value(ClientIDKey).(string)
	return id
}

// reportError logs an unexpected failure and forwards it to Sentry when configured.
func reportError(r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// returnPath is where a form intent sends the browser back to. Only local paths are honored.
func returnPath(r *http.Request) string {
	p := r.FormValue("return")
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}

// HandleRankings serves the rankings view. ?category filters, ?idea opens the detail modal.
func HandleRankings(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleRankings")
	st := sessionStore(r, app)

	filter, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		logger.Info("Unknown category filter, showing all", "category", r.URL.Query().Get("category"))
		filter = models.CategoryAll
	}
	ranking := st.Rank(filter)

	data := pageData(r, app, st, "Rankings")
	data["Ranking"] = ranking
	data["Filter"] = filter
	data["Categories"] = models.Categories()
	data["TotalIdeas"] = len(st.Ideas())
	data["VotedIDs"] = votedSet(st)

	// The selection is resolved against the live collection on every render.
	if id := r.URL.Query().Get("idea"); id != "" {
		if idea, ok := st.Idea(id); ok {
			data["Selected"] = idea
			data["SelectedVoted"] = st.HasVoted(id)
			data["Statuses"] = models.Statuses()
		}
	}

	render(w, r, app, "layout.html", "rankings.html", data)
}

// HandleSubmitForm serves the idea submission form.
func HandleSubmitForm(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	data := pageData(r, app, st, "Submit an Idea")
	data["Categories"] = models.Categories()
	data["Form"] = submitForm{Category: models.CategoryImprovements}
	if u, ok := st.User(); ok {
		data["Form"] = submitForm{Category: models.CategoryImprovements, Author: u.Username}
	}
	render(w, r, app, "layout.html", "submit.html", data)
}

// HandleAnalytics serves the analytics view.
func HandleAnalytics(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	data := pageData(r, app, st, "Analytics")
	data["Analytics"] = st.Analytics()
	render(w, r, app, "layout.html", "analytics.html", data)
}

func votedSet(st *store.Store) map[string]bool {
	ids := st.VotedIDs()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
