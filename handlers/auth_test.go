package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"forgeboard/auth"
	"forgeboard/config"
	"forgeboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startRedirectLogin posts the login intent and returns the provider URL and state cookie.
func startRedirectLogin(t *testing.T, h http.Handler) (*url.URL, *http.Cookie) {
	t.Helper()
	rr := postForm(t, h, "/auth/login", nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/oauth/authorize", loc.Path)

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == config.OAuthStateCookie {
			state = c
		}
	}
	require.NotNil(t, state, "state cookie must be set")
	require.Equal(t, loc.Query().Get("state"), state.Value)
	return loc, state
}

func decide(t *testing.T, h http.Handler, authorize *url.URL, decision string) *url.URL {
	t.Helper()
	form := url.Values{}
	for _, k := range []string{"client_id", "redirect_uri", "response_type", "scope", "state"} {
		form.Set(k, authorize.Query().Get(k))
	}
	form.Set("decision", decision)
	rr := postForm(t, h, "/oauth/authorize", form)
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, callbackPath, loc.Path)
	return loc
}

func callback(t *testing.T, h http.Handler, target *url.URL, state *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target.String(), nil)
	addTestCookies(req)
	if state != nil {
		req.AddCookie(&http.Cookie{Name: state.Name, Value: state.Value})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRedirectLoginApproved(t *testing.T) {
	app, h := setupTestApp(t, "redirect")

	authorize, state := startRedirectLogin(t, h)
	assert.Equal(t, models.Verifying, app.session().AuthState())

	rr := doGet(t, h, authorize.String())
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Authorize")
	assert.Contains(t, rr.Body.String(), "Join servers for you")

	target := decide(t, h, authorize, "approve")
	assert.NotEmpty(t, target.Query().Get("access_token"))
	assert.Equal(t, config.OAuthScope, target.Query().Get("scope"))

	rr = callback(t, h, target, state)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	u, ok := app.session().User()
	require.True(t, ok)
	assert.Equal(t, "ForgedSoul", u.Username)

	stored, found, err := app.DB().GetItem(testClientID, config.UserStorageKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, stored, `"username":"ForgedSoul"`)
}

func TestRedirectLoginDenied(t *testing.T) {
	app, h := setupTestApp(t, "redirect")

	authorize, state := startRedirectLogin(t, h)
	target := decide(t, h, authorize, "deny")
	assert.Equal(t, "access_denied", target.Query().Get("error"))

	callback(t, h, target, state)
	assert.Equal(t, models.LoggedOut, app.session().AuthState())
	note, ok := app.session().Notification()
	require.True(t, ok)
	assert.Equal(t, "auth.failed", note.MessageID)
}

func TestRedirectLoginStateMismatch(t *testing.T) {
	app, h := setupTestApp(t, "redirect")

	authorize, _ := startRedirectLogin(t, h)
	target := decide(t, h, authorize, "approve")

	callback(t, h, target, &http.Cookie{Name: config.OAuthStateCookie, Value: "forged"})
	assert.Equal(t, models.LoggedOut, app.session().AuthState())
	_, ok := app.session().User()
	assert.False(t, ok)
}

func TestRedirectLoginInProgress(t *testing.T) {
	app, h := setupTestApp(t, "redirect")

	startRedirectLogin(t, h)
	rr := postForm(t, h, "/auth/login", url.Values{"return": {"/analytics"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/analytics", rr.Header().Get("Location"))
	note, ok := app.session().Notification()
	require.True(t, ok)
	assert.Equal(t, "auth.in_progress", note.MessageID)
}

func TestAuthorizeRejectsBadRequests(t *testing.T) {
	_, h := setupTestApp(t, "redirect")

	rr := doGet(t, h, "/oauth/authorize?client_id=other&redirect_uri=/auth/callback&response_type=token")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doGet(t, h, "/oauth/authorize?client_id=forge-test-client&redirect_uri=https://evil.example/cb&response_type=token")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLocalLoginAndLogout(t *testing.T) {
	app, h := setupTestApp(t, "local")

	rr := postForm(t, h, "/auth/login", url.Values{"return": {"/submit"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/submit", rr.Header().Get("Location"))
	assert.Equal(t, models.LoggedIn, app.session().AuthState())

	page := doGet(t, h, "/")
	assert.Contains(t, page.Body.String(), "ForgedSoul")
	assert.Contains(t, page.Body.String(), "Login Successful!")

	postForm(t, h, "/auth/logout", nil)
	assert.Equal(t, models.LoggedOut, app.session().AuthState())
	_, found, err := app.DB().GetItem(testClientID, config.UserStorageKey)
	require.NoError(t, err)
	assert.False(t, found)

	// The callback is not part of the local flow.
	rr = doGet(t, h, callbackPath+"?state=x")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLocalLoginSurvivesClientDisconnect(t *testing.T) {
	app, h := setupTestApp(t, "local")
	app.flow = auth.NewFlow(auth.Options{
		Mode:        auth.ModeLocal,
		Provider:    app.provider,
		VerifyDelay: 100 * time.Millisecond,
		Logger:      app.logger,
	})

	form := url.Values{"csrf_token": {testCSRF}}
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode())).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addTestCookies(req)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	require.Eventually(t, func() bool { return app.session().AuthState() == models.Verifying }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("login handler did not return")
	}
	assert.Equal(t, models.LoggedIn, app.session().AuthState())
	_, found, err := app.DB().GetItem(testClientID, config.UserStorageKey)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	app, h := setupTestApp(t, "local")

	req := httptest.NewRequest(http.MethodPost, "/dev/toggle", strings.NewReader("return=/"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addTestCookies(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, app.session().IsAdmin())
}

func TestSessionCookieIssued(t *testing.T) {
	_, h := setupTestApp(t, "local")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	names := map[string]bool{}
	for _, c := range rr.Result().Cookies() {
		names[c.Name] = true
	}
	assert.True(t, names[config.SessionCookie])
	assert.True(t, names[config.CSRFCookie])
}
