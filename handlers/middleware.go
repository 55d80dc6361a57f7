// forgeboard/handlers/middleware.go

package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	ClientIDKey  ContextKey = "clientID"
	CSRFTokenKey ContextKey = "csrfToken"
)

// maxFormBytes bounds a POST body: the largest attachment plus room for the text fields.
const maxFormBytes = config.MaxFileSize + 1<<20

// SessionMiddleware gives every browser a long-lived client id. The id selects the
// client's application state and its durable storage.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(config.SessionCookie); err == nil {
			if parsed, perr := uuid.Parse(cookie.Value); perr == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     config.SessionCookie,
				Value:    id,
				Path:     "/",
				Expires:  utils.GetTime().Add(365 * 24 * time.Hour),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFMiddleware protects against Cross-Site Request Forgery attacks.
// POSTs carry the token in the X-CSRF-Token header (API clients) or the csrf_token field.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfCookie, err := r.Cookie(config.CSRFCookie)
		var csrfToken string

		if err != nil || csrfCookie.Value == "" {
			csrfToken = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     config.CSRFCookie,
				Value:    csrfToken,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		} else {
			csrfToken = csrfCookie.Value
		}

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

			tokenFromRequest := r.Header.Get("X-CSRF-Token")
			if tokenFromRequest == "" {
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, "Malformed form data", http.StatusBadRequest)
					return
				}
				tokenFromRequest = r.PostFormValue("csrf_token")
			}

			if subtle.ConstantTimeCompare([]byte(tokenFromRequest), []byte(csrfToken)) != 1 {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}
		}

		ctx := context.WithValue(r.Context(), CSRFTokenKey, csrfToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseForm parses url-encoded and multipart bodies. Other content types are left unread.
func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		return r.ParseMultipartForm(config.MaxFileSize)
	case "application/x-www-form-urlencoded":
		return r.ParseForm()
	}
	return nil
}

// NewStructuredLogger logs one line per request.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request handled",
					"method", r.Method,
					"path", r.URL.Path,
					"status", statusOf(ww),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"ip_hash", utils.HashIP(utils.GetIPAddress(r)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// statusOf reports 200 for handlers that never wrote a header.
func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// MetricsMiddleware records request latency by route pattern.
func MetricsMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			app.Metrics().ObserveRequest(route, statusOf(ww), time.Since(start))
			app.Metrics().Sessions.Set(float64(app.Sessions().Len()))
		})
	}
}

// NewSecurityHeadersMiddleware sets the content security policy. Attachments may come from
// the S3 public URL, avatars from any https origin.
func NewSecurityHeadersMiddleware(s3PublicURL string) func(http.Handler) http.Handler {
	imgSrc := "'self' https: data:"
	if s3PublicURL != "" && !strings.HasPrefix(s3PublicURL, "https://") {
		imgSrc += " " + s3PublicURL
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src " + imgSrc,
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self' 'unsafe-inline'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLAN restricts access to a handler to private or loopback IP addresses.
func RequireLAN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsLAN(r) {
			http.Error(w, "Forbidden: access restricted to LAN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware throttles state-changing requests per client address.
func RateLimitMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			ipHash := utils.HashIP(utils.GetIPAddress(r))
			if app.RateLimiter().Allow(ipHash) {
				next.ServeHTTP(w, r)
				return
			}

			app.Metrics().RateLimited.Inc()
			app.Logger().Warn("Rate limit exceeded", "ip_hash", ipHash, "path", r.URL.Path)
			if isAPI(r) {
				w.Header().Set("Retry-After", "2")
				respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": localize(r, app, "error.rate_limited", nil)}, app)
				return
			}
			sessionStore(r, app).Notify(models.NotifyError, "error.rate_limited", nil)
			http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
		})
	}
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
