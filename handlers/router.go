package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)
	mux.Use(MetricsMiddleware(app))
	mux.Use(RateLimitMiddleware(app))

	// Static file servers
	if app.UploadDir() != "" {
		mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))
	}
	mux.Handle("/metrics", app.Metrics().Handler())

	// Pages
	mux.Get("/", MakeHandler(app, HandleRankings))
	mux.Get("/submit", MakeHandler(app, HandleSubmitForm))
	mux.Get("/analytics", MakeHandler(app, HandleAnalytics))

	// Form intents
	mux.Post("/submit", MakeHandler(app, HandleSubmit))
	mux.Post("/ideas/{id}/vote", MakeHandler(app, HandleVote))
	mux.Post("/ideas/{id}/status", MakeHandler(app, HandleStatus))
	mux.Post("/notification/dismiss", MakeHandler(app, HandleDismiss))
	mux.Post("/dev/toggle", MakeHandler(app, HandleDevToggle))

	// Login
	mux.Post("/auth/login", MakeHandler(app, HandleLogin))
	mux.Get(callbackPath, MakeHandler(app, HandleCallback))
	mux.Post("/auth/logout", MakeHandler(app, HandleLogout))

	// Mock identity provider
	mux.Get("/oauth/authorize", MakeHandler(app, HandleAuthorize))
	mux.Post("/oauth/authorize", MakeHandler(app, HandleAuthorizeDecision))

	mux.Route("/api", func(r chi.Router) {
		r.Get("/ideas", MakeHandler(app, HandleAPIIdeas))
		r.Post("/ideas", MakeHandler(app, HandleAPISubmit))
		r.Get("/ideas/{id}", MakeHandler(app, HandleAPIIdea))
		r.Post("/ideas/{id}/vote", MakeHandler(app, HandleAPIVote))
		r.Post("/ideas/{id}/status", MakeHandler(app, HandleAPIStatus))
		r.Get("/analytics", MakeHandler(app, HandleAPIAnalytics))
		r.Get("/session", MakeHandler(app, HandleAPISession))
		r.Post("/admin/toggle", MakeHandler(app, HandleAPIAdminToggle))
	})

	mux.With(RequireLAN).Post("/dev/backup", MakeHandler(app, HandleDatabaseBackup))

	mux.NotFound(MakeHandler(app, HandleNotFound))

	return mux
}

// HandleNotFound renders the not-found page, or a JSON error under /api.
func HandleNotFound(w http.ResponseWriter, r *http.Request, app App) {
	if isAPI(r) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Not found."}, app)
		return
	}
	st := sessionStore(r, app)
	data := pageData(r, app, st, "Not Found")
	data["Status"] = http.StatusNotFound
	data["Message"] = "The page you are looking for does not exist."
	renderStatus(w, r, app, http.StatusNotFound, "layout.html", "error.html", data)
}
