// Package locales renders notification message ids into user-facing text.
package locales

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

// Catalog wraps the message bundle loaded from the embedded JSON files.
type Catalog struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          *slog.Logger
}

// New loads every embedded locale. An unparsable default language falls back to English.
func New(defaultLangCode string, logger *slog.Logger) (*Catalog, error) {
	defaultLanguage, err := language.Parse(defaultLangCode)
	if err != nil {
		logger.Warn("Failed to parse default language code, falling back to English", "code", defaultLangCode, "error", err)
		defaultLanguage = language.English
	}

	bundle := i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	loaded := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
			return nil, fmt.Errorf("failed to load message file %s: %w", file.Name(), err)
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no message files embedded")
	}
	logger.Info("i18n bundle initialized", "files", loaded, "default", defaultLanguage.String())

	return &Catalog{bundle: bundle, defaultLanguage: defaultLanguage, logger: logger}, nil
}

func (c *Catalog) DefaultLanguage() language.Tag { return c.defaultLanguage }

// Languages lists the loaded locales.
func (c *Catalog) Languages() []language.Tag { return c.bundle.LanguageTags() }

// NewLocalizer creates a localizer for the given preferences, typically an
// Accept-Language header value.
func (c *Catalog) NewLocalizer(langPrefs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(c.bundle, langPrefs...)
}

// Message localizes msgID, falling back to the default language and finally to the id itself.
func (c *Catalog) Message(localizer *i18n.Localizer, msgID string, data map[string]string) string {
	cfg := &i18n.LocalizeConfig{MessageID: msgID}
	if len(data) > 0 {
		cfg.TemplateData = data
	}

	msg, err := localizer.Localize(cfg)
	if err == nil {
		return msg
	}
	c.logger.Warn("Failed to localize message", "id", msgID, "error", err)

	msg, err = i18n.NewLocalizer(c.bundle, c.defaultLanguage.String()).Localize(cfg)
	if err == nil {
		return msg
	}
	return msgID
}
