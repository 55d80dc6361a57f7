// forgeboard/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forgeboard/auth"
	"forgeboard/config"
	"forgeboard/database"
	"forgeboard/handlers"
	"forgeboard/locales"
	"forgeboard/media"
	"forgeboard/metrics"
	"forgeboard/store"
	"forgeboard/utils"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

type Application struct {
	sessions    *store.Registry
	flow        *auth.Flow
	provider    *auth.MockProvider
	attachments *media.Attachments
	db          *database.DatabaseService
	rateLimiter *utils.RateLimiter
	locales     *locales.Catalog
	metrics     *metrics.Metrics
	logger      *slog.Logger
	uploadDir   string
}

// Methods to satisfy the handlers.App interface
func (a *Application) Sessions() *store.Registry       { return a.sessions }
func (a *Application) Auth() *auth.Flow                { return a.flow }
func (a *Application) Provider() *auth.MockProvider    { return a.provider }
func (a *Application) Attachments() *media.Attachments { return a.attachments }
func (a *Application) DB() *database.DatabaseService   { return a.db }
func (a *Application) RateLimiter() *utils.RateLimiter { return a.rateLimiter }
func (a *Application) Locales() *locales.Catalog       { return a.locales }
func (a *Application) Metrics() *metrics.Metrics       { return a.metrics }
func (a *Application) Logger() *slog.Logger            { return a.logger }
func (a *Application) UploadDir() string               { return a.uploadDir }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings := config.Load(logger)

	if settings.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              settings.SentryDSN,
			Environment:      settings.Environment,
			Release:          config.AppVersion,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
		logger.Info("Sentry initialized", "environment", settings.Environment)
	}

	salt, err := utils.RandomHex(32)
	if err != nil {
		logger.Error("Failed to generate IP salt", "error", err)
		os.Exit(1)
	}
	utils.IPSalt = salt

	dbService, err := database.InitDB(settings.DBPath, settings.BackupDir, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()
	// Stored identities of clients that have not been seen for a year are dropped.
	if n, err := dbService.PruneStale(utils.GetSQLTime().Add(-365 * 24 * time.Hour)); err != nil {
		logger.Warn("Failed to prune stale storage", "error", err)
	} else if n > 0 {
		logger.Info("Pruned stale storage rows", "rows", n)
	}

	if err := handlers.LoadTemplates(); err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	catalog, err := locales.New(settings.Language, logger)
	if err != nil {
		logger.Error("Failed to load locales", "error", err)
		os.Exit(1)
	}

	secret := []byte(settings.AuthSecret)
	if len(secret) == 0 {
		generated, err := utils.RandomHex(32)
		if err != nil {
			logger.Error("Failed to generate token secret", "error", err)
			os.Exit(1)
		}
		secret = []byte(generated)
		logger.Info("FORGE_AUTH_SECRET not set, tokens will not survive a restart")
	}
	provider := auth.NewMockProvider(secret, settings.ClientID)
	flow := auth.NewFlow(auth.Options{
		Mode:        settings.AuthMode,
		Provider:    provider,
		VerifyDelay: settings.VerifyDelay,
		Logger:      logger.With("component", "auth"),
	})

	// --- Storage Service Init ---
	var storageService media.Storage
	var uploadDir, s3PublicURL string
	if settings.S3Enabled {
		s3Store, err := media.NewS3Storage(settings.S3Endpoint, settings.S3AccessKey, settings.S3SecretKey,
			settings.S3Bucket, settings.S3Region, settings.S3PublicURL, settings.S3UseSSL)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		storageService = s3Store
		s3PublicURL = s3Store.PublicURL
		logger.Info("S3 Storage initialized", "endpoint", settings.S3Endpoint, "bucket", settings.S3Bucket)
	} else {
		uploadDir = settings.UploadDir
		if uploadDir == "" {
			// Attachments live as long as the sessions that uploaded them.
			uploadDir, err = os.MkdirTemp("", "forge_uploads_*")
			if err != nil {
				logger.Error("FATAL: Could not create uploads directory", "error", err)
				os.Exit(1)
			}
			defer os.RemoveAll(uploadDir)
		} else if err := os.MkdirAll(uploadDir, 0755); err != nil {
			logger.Error("FATAL: Could not create uploads directory", "path", uploadDir, "error", err)
			os.Exit(1)
		}
		storageService = &media.LocalStorage{UploadDir: uploadDir}
		logger.Info("Local Storage initialized", "dir", uploadDir)
	}
	attachments := media.NewAttachments(storageService, logger.With("component", "media"))

	storeLogger := logger.With("component", "store")
	sessions := store.NewRegistry(func(clientID string) *store.Store {
		return store.New(store.Options{
			Persister: dbService.ForClient(clientID),
			Logger:    storeLogger.With("client", utils.HashIP(clientID)),
		})
	}, settings.SessionTTL, storeLogger)
	defer sessions.Close()

	m := metrics.New()
	sessions.OnEvict(func(clientID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		attachments.Purge(ctx, clientID)
		m.Sessions.Set(float64(sessions.Len()))
	})

	rateLimiter := utils.NewRateLimiter(settings.RateLimitEvery, settings.RateLimitBurst, settings.RateLimitPrune, settings.RateLimitExpire)
	defer rateLimiter.Stop()

	app := &Application{
		sessions:    sessions,
		flow:        flow,
		provider:    provider,
		attachments: attachments,
		db:          dbService,
		rateLimiter: rateLimiter,
		locales:     catalog,
		metrics:     m,
		logger:      logger,
		uploadDir:   uploadDir,
	}

	mux := handlers.SetupRouter(app)
	var finalHandler http.Handler = handlers.SessionMiddleware(handlers.CSRFMiddleware(handlers.NewSecurityHeadersMiddleware(s3PublicURL)(mux)))
	if settings.SentryDSN != "" {
		finalHandler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(finalHandler)
	}

	// --- Graceful Shutdown ---
	server := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Forge Board server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+settings.Port,
		"auth_mode", flow.Mode(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	flow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
