// forgeboard/config/env.go
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the runtime configuration assembled from .env and the process environment.
type Settings struct {
	Port       string
	DBPath     string
	BackupDir  string
	UploadDir  string
	AuthMode   string
	AuthSecret string
	ClientID   string
	SessionTTL time.Duration

	// VerifyDelay is the artificial latency of each login verification step.
	VerifyDelay time.Duration

	RateLimitEvery  time.Duration
	RateLimitBurst  int
	RateLimitPrune  time.Duration
	RateLimitExpire time.Duration

	S3Enabled   bool
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3PublicURL string
	S3UseSSL    bool

	SentryDSN   string
	Environment string
	Language    string
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads an optional .env file, then the environment. Invalid values are logged and
// replaced by their defaults so a typo never prevents startup.
func Load(logger *slog.Logger, files ...string) *Settings {
	if err := godotenv.Load(files...); err != nil {
		logger.Info("No .env file loaded, relying on environment variables")
	}

	s := &Settings{
		Port:        GetEnv("FORGE_PORT", DefaultPort),
		DBPath:      GetEnv("FORGE_DB_PATH", DefaultDBPath),
		BackupDir:   GetEnv("FORGE_BACKUP_DIR", DefaultBackupDir),
		UploadDir:   GetEnv("FORGE_UPLOAD_DIR", ""),
		AuthMode:    GetEnv("FORGE_AUTH_MODE", DefaultAuthMode),
		AuthSecret:  GetEnv("FORGE_AUTH_SECRET", ""),
		ClientID:    GetEnv("FORGE_CLIENT_ID", PlaceholderClientID),
		S3Enabled:   GetEnv("FORGE_S3_ENABLED", "false") == "true",
		S3Endpoint:  GetEnv("FORGE_S3_ENDPOINT", ""),
		S3AccessKey: GetEnv("FORGE_S3_ACCESS_KEY", ""),
		S3SecretKey: GetEnv("FORGE_S3_SECRET_KEY", ""),
		S3Bucket:    GetEnv("FORGE_S3_BUCKET", ""),
		S3Region:    GetEnv("FORGE_S3_REGION", "us-east-1"),
		S3PublicURL: GetEnv("FORGE_S3_PUBLIC_URL", ""),
		S3UseSSL:    GetEnv("FORGE_S3_USE_SSL", "true") == "true",
		SentryDSN:   GetEnv("FORGE_SENTRY_DSN", ""),
		Environment: GetEnv("FORGE_ENV", "development"),
		Language:    GetEnv("FORGE_LANG", DefaultLanguage),
	}

	if s.AuthMode != "redirect" && s.AuthMode != "local" {
		logger.Warn("Invalid FORGE_AUTH_MODE, using default", "value", s.AuthMode, "default", DefaultAuthMode)
		s.AuthMode = DefaultAuthMode
	}

	s.SessionTTL = durationEnv(logger, "FORGE_SESSION_TTL", DefaultSessionTTL)
	s.VerifyDelay = durationEnv(logger, "FORGE_VERIFY_DELAY", DefaultVerifyDelay)
	s.RateLimitEvery = durationEnv(logger, "FORGE_RATE_EVERY", DefaultRateLimitEvery)
	s.RateLimitPrune = durationEnv(logger, "FORGE_RATE_PRUNE", DefaultRateLimitPrune)
	s.RateLimitExpire = durationEnv(logger, "FORGE_RATE_EXPIRE", DefaultRateLimitExpire)

	burst, err := strconv.Atoi(GetEnv("FORGE_RATE_BURST", strconv.Itoa(DefaultRateLimitBurst)))
	if err != nil || burst < 1 {
		logger.Warn("Invalid FORGE_RATE_BURST integer, using default", "value", GetEnv("FORGE_RATE_BURST", ""), "default", DefaultRateLimitBurst)
		burst = DefaultRateLimitBurst
	}
	s.RateLimitBurst = burst

	return s
}

func durationEnv(logger *slog.Logger, key, fallback string) time.Duration {
	d, err := time.ParseDuration(GetEnv(key, fallback))
	if err != nil || d < 0 {
		logger.Warn("Invalid duration, using default", "key", key, "value", GetEnv(key, ""), "default", fallback)
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
