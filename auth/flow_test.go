package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(mode string) (*Flow, *MockProvider) {
	p := NewMockProvider([]byte("test-secret"), "client-1")
	return NewFlow(Options{Mode: mode, Provider: p, VerifyDelay: time.Millisecond}), p
}

func newSession(t *testing.T) (*store.Store, *store.MemoryPersister) {
	t.Helper()
	p := store.NewMemoryPersister()
	st := store.New(store.Options{Persister: p, Notifier: store.NewNotifier(time.Hour, nil)})
	t.Cleanup(st.Close)
	return st, p
}

func TestLocalLogin(t *testing.T) {
	f, _ := newFlow(ModeLocal)
	st, p := newSession(t)

	require.NoError(t, f.Login(context.Background(), st))

	u, ok := st.User()
	require.True(t, ok)
	assert.Equal(t, DemoUser(), u)
	assert.Equal(t, models.LoggedIn, st.AuthState())

	raw, present, err := p.GetItem(config.UserStorageKey)
	require.NoError(t, err)
	require.True(t, present)
	assert.Contains(t, raw, `"username":"ForgedSoul"`)

	note, ok := st.Notification()
	require.True(t, ok)
	assert.Equal(t, MsgSuccess, note.MessageID)
}

func TestLocalLoginRejectsConcurrent(t *testing.T) {
	f, _ := newFlow(ModeLocal)
	f.delay = 200 * time.Millisecond
	st, _ := newSession(t)

	done := make(chan error, 1)
	go func() { done <- f.Login(context.Background(), st) }()

	require.Eventually(t, func() bool { return st.AuthState() == models.Verifying }, time.Second, time.Millisecond)
	assert.ErrorIs(t, f.Login(context.Background(), st), store.ErrLoginInProgress)
	require.NoError(t, <-done)
	assert.ErrorIs(t, f.Login(context.Background(), st), store.ErrAlreadyLoggedIn)
}

func TestLocalLoginAbortedByShutdown(t *testing.T) {
	f, _ := newFlow(ModeLocal)
	f.delay = time.Hour
	st, p := newSession(t)

	done := make(chan error, 1)
	go func() { done <- f.Login(context.Background(), st) }()
	require.Eventually(t, func() bool { return st.AuthState() == models.Verifying }, time.Second, time.Millisecond)

	f.Close()
	assert.ErrorIs(t, <-done, ErrShuttingDown)
	assert.Equal(t, models.LoggedOut, st.AuthState())
	_, present, _ := p.GetItem(config.UserStorageKey)
	assert.False(t, present)

	// A closed flow refuses to start new delays.
	assert.ErrorIs(t, f.Login(context.Background(), st), ErrShuttingDown)
	f.Close()
}

func TestLocalLoginIgnoresDetachedCancel(t *testing.T) {
	f, _ := newFlow(ModeLocal)
	f.delay = 50 * time.Millisecond
	st, _ := newSession(t)

	parent, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Login(context.WithoutCancel(parent), st) }()
	require.Eventually(t, func() bool { return st.AuthState() == models.Verifying }, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, models.LoggedIn, st.AuthState())
}

func TestRedirectRoundTrip(t *testing.T) {
	f, p := newFlow(ModeRedirect)
	st, _ := newSession(t)

	authURL, state, err := f.Begin(st, "/auth/callback")
	require.NoError(t, err)
	assert.Equal(t, models.Verifying, st.AuthState())

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	req, err := p.ParseAuthorizeRequest(u.Query())
	require.NoError(t, err)
	cb, err := p.Decide(req, true, DemoUser().ID)
	require.NoError(t, err)
	cbURL, err := url.Parse(cb)
	require.NoError(t, err)

	require.NoError(t, f.Complete(context.Background(), st, cbURL.Query(), state))
	assert.Equal(t, models.LoggedIn, st.AuthState())
}

func TestRedirectProviderError(t *testing.T) {
	f, _ := newFlow(ModeRedirect)
	st, p := newSession(t)

	_, state, err := f.Begin(st, "/auth/callback")
	require.NoError(t, err)

	params := url.Values{"error": {"access_denied"}, "state": {state}}
	err = f.Complete(context.Background(), st, params, state)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, models.LoggedOut, st.AuthState())

	note, ok := st.Notification()
	require.True(t, ok)
	assert.Equal(t, models.NotifyError, note.Kind)
	assert.Equal(t, MsgFailed, note.MessageID)

	_, present, _ := p.GetItem(config.UserStorageKey)
	assert.False(t, present)
}

func TestRedirectRejectsBadStateAndToken(t *testing.T) {
	f, p := newFlow(ModeRedirect)
	tok, err := p.Issue("847382")
	require.NoError(t, err)

	st, _ := newSession(t)
	_, state, err := f.Begin(st, "/auth/callback")
	require.NoError(t, err)
	err = f.Complete(context.Background(), st, url.Values{"access_token": {tok}, "state": {"forged"}}, state)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.LoggedOut, st.AuthState())

	st2, _ := newSession(t)
	_, state, err = f.Begin(st2, "/auth/callback")
	require.NoError(t, err)
	err = f.Complete(context.Background(), st2, url.Values{"access_token": {"junk"}, "state": {state}}, state)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBeginGuardsAndRecoversStaleLogin(t *testing.T) {
	f, _ := newFlow(ModeRedirect)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := store.New(store.Options{
		Persister: store.NewMemoryPersister(),
		Notifier:  store.NewNotifier(time.Hour, nil),
		Now:       func() time.Time { return now },
	})
	t.Cleanup(st.Close)

	_, _, err := f.Begin(st, "/auth/callback")
	require.NoError(t, err)
	_, _, err = f.Begin(st, "/auth/callback")
	assert.ErrorIs(t, err, store.ErrLoginInProgress)

	// Only the store's clock decides staleness.
	now = now.Add(config.LoginStaleAfter)
	_, _, err = f.Begin(st, "/auth/callback")
	assert.ErrorIs(t, err, store.ErrLoginInProgress)

	now = now.Add(time.Second)
	_, _, err = f.Begin(st, "/auth/callback")
	assert.NoError(t, err)
	assert.Equal(t, models.Verifying, st.AuthState())
}

func TestPlaceholderClientWarning(t *testing.T) {
	p := NewMockProvider([]byte("k"), config.PlaceholderClientID)
	f := NewFlow(Options{Mode: ModeRedirect, Provider: p})
	st, _ := newSession(t)

	_, _, err := f.Begin(st, "/auth/callback")
	require.NoError(t, err)
	note, ok := st.Notification()
	require.True(t, ok)
	assert.Equal(t, MsgClientIDPlaceholder, note.MessageID)
}

func TestModeMismatch(t *testing.T) {
	local, _ := newFlow(ModeLocal)
	redirect, _ := newFlow(ModeRedirect)
	st, _ := newSession(t)

	_, _, err := local.Begin(st, "/auth/callback")
	assert.ErrorIs(t, err, ErrWrongMode)
	assert.ErrorIs(t, redirect.Login(context.Background(), st), ErrWrongMode)
}

func TestLogoutKeepsVotes(t *testing.T) {
	f, _ := newFlow(ModeLocal)
	st, p := newSession(t)
	require.NoError(t, f.Login(context.Background(), st))
	_, _, err := st.VoteIdea("1")
	require.NoError(t, err)

	require.NoError(t, f.Logout(st))
	_, ok := st.User()
	assert.False(t, ok)
	assert.Equal(t, []string{"1"}, st.VotedIDs())
	_, present, _ := p.GetItem(config.UserStorageKey)
	assert.False(t, present)

	note, ok := st.Notification()
	require.True(t, ok)
	assert.Equal(t, models.NotifyInfo, note.Kind)
	assert.Equal(t, MsgLoggedOut, note.MessageID)
}
