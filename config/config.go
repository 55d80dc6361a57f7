// forgeboard/config/config.go
package config

import "time"

const (
	AppVersion = "1.0"
	AppName    = "Forge Board"

	// Form Limits
	MaxTitleLen       = 80
	MaxAuthorLen      = 20
	MaxDescriptionLen = 4000

	// Attachment Limits
	MaxFileSize     = 8 * 1024 * 1024 // 8MB
	MaxWidth        = 8000
	MaxHeight       = 8000
	HeroWidth       = 1600
	HeroHeight      = 900
	ThumbnailWidth  = 400
	ThumbnailHeight = 225

	// Notifications auto-dismiss after this long.
	NotificationTTL = 3 * time.Second

	// Durable storage key holding the serialized user.
	UserStorageKey = "forge_user"

	// Cookie names
	SessionCookie = "forge_sid"
	CSRFCookie    = "forge_csrf"

	OAuthStateCookie = "forge_oauth_state"

	// Mock provider
	OAuthScope      = "identify guilds.join"
	AccessTokenTTL  = 7 * 24 * time.Hour
	LoginStaleAfter = 2 * time.Minute

	// Sample client id; running with it triggers a dev warning.
	PlaceholderClientID = "123456789012345678"

	// Defaults for values overridable through the environment.
	DefaultPort            = "8080"
	DefaultDBPath          = "./forge.db?_journal_mode=WAL"
	DefaultBackupDir       = "./backups"
	DefaultAuthMode        = "redirect"
	DefaultSessionTTL      = "24h"
	DefaultVerifyDelay     = "500ms"
	DefaultRateLimitEvery  = "2s"
	DefaultRateLimitBurst  = 10
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"
	DefaultLanguage        = "en"
)
