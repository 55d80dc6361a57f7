package locales

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New("en", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestMessageEnglish(t *testing.T) {
	c := newCatalog(t)
	loc := c.NewLocalizer("en")

	assert.Equal(t, "Vote Recorded!", c.Message(loc, "vote.recorded", nil))
	assert.Equal(t, "Status updated to Released", c.Message(loc, "status.updated", map[string]string{"Status": "Released"}))
}

func TestMessageAcceptLanguage(t *testing.T) {
	c := newCatalog(t)
	loc := c.NewLocalizer("de-DE,de;q=0.9,en;q=0.8")
	assert.Equal(t, "Stimme gezählt!", c.Message(loc, "vote.recorded", nil))

	// Unknown languages use the default.
	loc = c.NewLocalizer("ja")
	assert.Equal(t, "Logged out successfully", c.Message(loc, "auth.logged_out", nil))
}

func TestMessageUnknownID(t *testing.T) {
	c := newCatalog(t)
	assert.Equal(t, "no.such.message", c.Message(c.NewLocalizer("en"), "no.such.message", nil))
}

func TestInvalidDefaultLanguage(t *testing.T) {
	c, err := New("???", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "en", c.DefaultLanguage().String())
}

func TestLocalesDefineSameIDs(t *testing.T) {
	read := func(name string) map[string]string {
		raw, err := localeFS.ReadFile(name)
		require.NoError(t, err)
		m := map[string]string{}
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	}
	en, de := read("en.json"), read("de.json")
	for id := range en {
		assert.Contains(t, de, id)
	}
	assert.Len(t, de, len(en))
}
