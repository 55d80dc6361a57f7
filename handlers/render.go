// forgeboard/handlers/render.go

package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	templates *template.Template
)

// submitForm carries the submission form values back to the page after a rejected submit.
type submitForm struct {
	Title       string
	Description string
	Category    models.Category
	Author      string
}

// toast is a notification rendered in the viewer's language.
type toast struct {
	Kind models.NotificationKind
	Text string
}

// LoadTemplates parses all embedded HTML templates.
func LoadTemplates() error {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string { return t.Format("Jan 2, 2006") },
		"formatISO":  func(t time.Time) string { return t.Format(time.RFC3339) },
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"default": func(dflt, val string) string {
			if val == "" {
				return dflt
			}
			return val
		},
		"truncate": func(max int, s string) string {
			runes := []rune(s)
			if len(runes) > max {
				return string(runes[:max]) + "..."
			}
			return s
		},
		// slug turns an enum value into a CSS class suffix, "UI/UX" -> "ui-ux".
		"slug": func(v interface{}) string {
			s := strings.ToLower(fmt.Sprint(v))
			return strings.NewReplacer("/", "-", " ", "-").Replace(s)
		},
		"thousands": func(n int) string {
			s := fmt.Sprint(n)
			if n < 0 {
				return "-" + addCommas(s[1:])
			}
			return addCommas(s)
		},
		"percentOf": func(part, whole int) int {
			if whole <= 0 {
				return 0
			}
			return part * 100 / whole
		},
		"pieGradient": pieGradient,
	}
	t, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	templates = t
	return nil
}

func addCommas(s string) string {
	if len(s) <= 3 {
		return s
	}
	return addCommas(s[:len(s)-3]) + "," + s[len(s)-3:]
}

var categoryColors = map[models.Category]string{
	models.CategoryImprovements: "#3b82f6",
	models.CategoryBug:          "#ef4444",
	models.CategoryContent:      "#a855f7",
	models.CategoryBalance:      "#f97316",
	models.CategoryUIUX:         "#22c55e",
}

// pieGradient renders the category shares as a CSS conic-gradient.
func pieGradient(counts []store.CategoryCount) template.CSS {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total == 0 {
		return template.CSS("conic-gradient(#27272a 0deg 360deg)")
	}
	var parts []string
	start := 0.0
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		end := start + float64(c.Count)*360/float64(total)
		parts = append(parts, fmt.Sprintf("%s %.2fdeg %.2fdeg", categoryColors[c.Category], start, end))
		start = end
	}
	return template.CSS("conic-gradient(" + strings.Join(parts, ", ") + ")")
}

// pageData assembles what the layout needs on every page.
func pageData(r *http.Request, app App, st *store.Store, title string) map[string]interface{} {
	data := map[string]interface{}{
		"Title":         title,
		"AppName":       config.AppName,
		"AppVersion":    config.AppVersion,
		"IsAdmin":       st.IsAdmin(),
		"AuthState":     st.AuthState().String(),
		"CurrentPath":   r.URL.RequestURI(),
		"MaxFileSizeMB": config.MaxFileSize / 1024 / 1024,
		"MaxTitleLen":   config.MaxTitleLen,
		"MaxAuthorLen":  config.MaxAuthorLen,
	}
	if u, ok := st.User(); ok {
		data["User"] = u
	}
	if note, ok := st.Notification(); ok {
		data["Toast"] = toast{Kind: note.Kind, Text: localize(r, app, note.MessageID, note.Data)}
	}
	return data
}

// localize renders a message id in the language of the request.
func localize(r *http.Request, app App, msgID string, data map[string]string) string {
	loc := app.Locales().NewLocalizer(r.Header.Get("Accept-Language"))
	return app.Locales().Message(loc, msgID, data)
}

// render executes the given templates with the provided data.
func render(w http.ResponseWriter, r *http.Request, app App, layout, contentTmpl string, data map[string]interface{}) {
	renderStatus(w, r, app, http.StatusOK, layout, contentTmpl, data)
}

func renderStatus(w http.ResponseWriter, r *http.Request, app App, status int, layout, contentTmpl string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if csrfToken, ok := r.Context().Value(CSRFTokenKey).(string); ok {
		data["csrfToken"] = csrfToken
	}

	contentBuf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(contentBuf, contentTmpl, data); err != nil {
		reportError(r, app.Logger(), "Error rendering content template "+contentTmpl, err)
		http.Error(w, "Failed to render page content", http.StatusInternalServerError)
		return
	}
	data["Content"] = template.HTML(contentBuf.String())

	pageBuf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(pageBuf, layout, data); err != nil {
		reportError(r, app.Logger(), "Error rendering layout template "+layout, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := pageBuf.WriteTo(w); err != nil {
		app.Logger().Error("Failed to write page", "error", err)
	}
}

// renderError shows a localized error page inside the layout.
func renderError(w http.ResponseWriter, r *http.Request, app App, st *store.Store, status int, msgID string) {
	data := pageData(r, app, st, http.StatusText(status))
	data["Status"] = status
	data["Message"] = localize(r, app, msgID, nil)
	renderStatus(w, r, app, status, "layout.html", "error.html", data)
}
