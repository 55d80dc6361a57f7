package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forgeboard/auth"
	"forgeboard/config"
	"forgeboard/database"
	"forgeboard/locales"
	"forgeboard/media"
	"forgeboard/metrics"
	"forgeboard/store"
	"forgeboard/utils"

	"github.com/stretchr/testify/require"
)

const (
	testClientID = "0b0e3c1c-6a8e-4c55-9e0e-5b1f3f6f7a10"
	testCSRF     = "test-csrf-token"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	sessions    *store.Registry
	flow        *auth.Flow
	provider    *auth.MockProvider
	attachments *media.Attachments
	db          *database.DatabaseService
	rateLimiter *utils.RateLimiter
	locales     *locales.Catalog
	metrics     *metrics.Metrics
	uploadDir   string
	logger      *slog.Logger
}

func (a *MockApplication) Sessions() *store.Registry       { return a.sessions }
func (a *MockApplication) Auth() *auth.Flow                { return a.flow }
func (a *MockApplication) Provider() *auth.MockProvider    { return a.provider }
func (a *MockApplication) Attachments() *media.Attachments { return a.attachments }
func (a *MockApplication) DB() *database.DatabaseService   { return a.db }
func (a *MockApplication) RateLimiter() *utils.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Locales() *locales.Catalog       { return a.locales }
func (a *MockApplication) Metrics() *metrics.Metrics       { return a.metrics }
func (a *MockApplication) Logger() *slog.Logger            { return a.logger }
func (a *MockApplication) UploadDir() string               { return a.uploadDir }

// setupTestApp creates a full application stack with a temporary database and upload dir.
func setupTestApp(t *testing.T, mode string) (*MockApplication, http.Handler) {
	t.Helper()
	require.NoError(t, LoadTemplates())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()

	db, err := database.InitDB(filepath.Join(dir, "test.db"), filepath.Join(dir, "backups"), logger)
	require.NoError(t, err)

	catalog, err := locales.New("en", logger)
	require.NoError(t, err)

	provider := auth.NewMockProvider([]byte("test-secret"), "forge-test-client")
	uploadDir := filepath.Join(dir, "uploads")

	app := &MockApplication{
		flow:        auth.NewFlow(auth.Options{Mode: mode, Provider: provider, Logger: logger}),
		provider:    provider,
		attachments: media.NewAttachments(&media.LocalStorage{UploadDir: uploadDir}, logger),
		db:          db,
		rateLimiter: utils.NewRateLimiter(time.Millisecond, 1000, time.Hour, time.Hour),
		locales:     catalog,
		metrics:     metrics.New(),
		uploadDir:   uploadDir,
		logger:      logger,
	}
	app.sessions = store.NewRegistry(func(clientID string) *store.Store {
		return store.New(store.Options{Persister: db.ForClient(clientID), Logger: logger})
	}, time.Hour, logger)

	utils.IPSalt = "test-salt"

	t.Cleanup(func() {
		app.sessions.Close()
		app.rateLimiter.Stop()
		db.Close()
		utils.IPSalt = ""
	})

	mux := SetupRouter(app)
	return app, SessionMiddleware(CSRFMiddleware(NewSecurityHeadersMiddleware("")(mux)))
}

// session returns the store behind the test client id.
func (a *MockApplication) session() *store.Store {
	return a.sessions.Get(testClientID)
}

func addTestCookies(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: config.SessionCookie, Value: testClientID})
	req.AddCookie(&http.Cookie{Name: config.CSRFCookie, Value: testCSRF})
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	addTestCookies(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// postForm sends a url-encoded form with a valid CSRF token.
func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRF)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	addTestCookies(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// postJSON sends a JSON body with the CSRF header.
func postJSON(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", testCSRF)
	addTestCookies(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
