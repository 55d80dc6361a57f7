// forgeboard/handlers/auth.go

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"forgeboard/auth"
	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/store"
)

const callbackPath = "/auth/callback"

// HandleLogin starts a login. In local mode the verification runs inside this request;
// in redirect mode the browser is sent to the provider.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogin")
	st := sessionStore(r, app)
	flow := app.Auth()

	if flow.Mode() == auth.ModeLocal {
		// A client that navigates away mid-verification still ends up logged in.
		err := flow.Login(context.WithoutCancel(r.Context()), st)
		switch {
		case err == nil:
			app.Metrics().Logins.WithLabelValues("success").Inc()
		case errors.Is(err, store.ErrLoginInProgress):
			st.Notify(models.NotifyInfo, "auth.in_progress", nil)
		case errors.Is(err, store.ErrAlreadyLoggedIn):
		default:
			app.Metrics().Logins.WithLabelValues("aborted").Inc()
			logger.Info("Login did not finish", "error", err)
		}
		http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
		return
	}

	authorizeURL, state, err := flow.Begin(st, callbackPath)
	if err != nil {
		if errors.Is(err, store.ErrLoginInProgress) {
			st.Notify(models.NotifyInfo, "auth.in_progress", nil)
		}
		http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     config.OAuthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(config.LoginStaleAfter.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authorizeURL, http.StatusSeeOther)
}

// HandleCallback receives the provider's answer and finishes the redirect login.
func HandleCallback(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCallback")
	st := sessionStore(r, app)

	var expected string
	if c, err := r.Cookie(config.OAuthStateCookie); err == nil {
		expected = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     config.OAuthStateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	err := app.Auth().Complete(context.WithoutCancel(r.Context()), st, r.URL.Query(), expected)
	switch {
	case err == nil:
		app.Metrics().Logins.WithLabelValues("success").Inc()
	case errors.Is(err, store.ErrAlreadyLoggedIn):
	case errors.Is(err, auth.ErrWrongMode):
		http.NotFound(w, r)
		return
	default:
		app.Metrics().Logins.WithLabelValues("failure").Inc()
		logger.Info("Login callback rejected", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the identity. Voted ideas stay marked.
func HandleLogout(w http.ResponseWriter, r *http.Request, app App) {
	st := sessionStore(r, app)
	if err := app.Auth().Logout(st); err != nil {
		reportError(r, app.Logger().With("handler", "HandleLogout"), "Failed to clear stored user", err)
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// HandleAuthorize shows the mock provider's consent page.
func HandleAuthorize(w http.ResponseWriter, r *http.Request, app App) {
	req, err := app.Provider().ParseAuthorizeRequest(r.URL.Query())
	if err != nil {
		app.Logger().Info("Rejected authorize request", "handler", "HandleAuthorize", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := map[string]interface{}{
		"Title":   "Authorize",
		"AppName": config.AppName,
		"Request": req,
		"Scopes":  strings.Fields(req.Scope),
		"Account": auth.DemoUser(),
	}
	render(w, r, app, "provider.html", "authorize.html", data)
}

// HandleAuthorizeDecision redirects back to the client with a token or access_denied.
func HandleAuthorizeDecision(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAuthorizeDecision")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form data", http.StatusBadRequest)
		return
	}
	req, err := app.Provider().ParseAuthorizeRequest(r.PostForm)
	if err != nil {
		logger.Info("Rejected authorize decision", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	approve := r.PostFormValue("decision") == "approve"
	target, err := app.Provider().Decide(req, approve, auth.DemoUser().ID)
	if err != nil {
		reportError(r, logger, "Failed to issue access token", err)
		http.Error(w, "Failed to issue access token", http.StatusInternalServerError)
		return
	}
	logger.Info("Authorize decision", "approved", approve)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
