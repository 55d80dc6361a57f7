// Package auth simulates the external login of the board. Nothing leaves the process: the
// "provider" is MockProvider and completion always installs the same demonstration identity.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"forgeboard/config"
	"forgeboard/models"
	"forgeboard/store"

	"github.com/google/uuid"
)

const (
	ModeLocal    = "local"
	ModeRedirect = "redirect"
)

// Notification message ids emitted by the flow.
const (
	MsgVerifying           = "auth.verifying"
	MsgCheckingGuild       = "auth.checking_guild"
	MsgSuccess             = "auth.success"
	MsgFailed              = "auth.failed"
	MsgLoggedOut           = "auth.logged_out"
	MsgClientIDPlaceholder = "auth.client_id_placeholder"
)

var (
	// ErrProviderFailure is returned when the provider answers the callback with an error.
	ErrProviderFailure = errors.New("identity provider reported failure")
	ErrInvalidState    = errors.New("oauth state mismatch")
	ErrWrongMode       = errors.New("operation not available in this auth mode")
	// ErrShuttingDown aborts a login whose delay was still running when Close was called.
	ErrShuttingDown    = errors.New("login aborted by shutdown")
)

// DemoUser is the identity every successful login produces.
func DemoUser() models.User {
	return models.User{
		ID:            "847382",
		Username:      "ForgedSoul",
		Discriminator: "9921",
		Avatar:        "https://api.dicebear.com/7.x/avataaars/svg?seed=Felix",
	}
}

type Options struct {
	Mode        string
	Provider    *MockProvider
	VerifyDelay time.Duration
	// AuthorizeEndpoint is where Begin sends the client, "/oauth/authorize" by default.
	AuthorizeEndpoint string
	Logger            *slog.Logger
}

type Flow struct {
	mode        string
	provider    *MockProvider
	delay       time.Duration
	endpoint    string
	logger      *slog.Logger
	staleAfter  time.Duration
	placeholder bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewFlow(opts Options) *Flow {
	f := &Flow{
		mode:       opts.Mode,
		provider:   opts.Provider,
		delay:      opts.VerifyDelay,
		endpoint:   opts.AuthorizeEndpoint,
		logger:     opts.Logger,
		staleAfter: config.LoginStaleAfter,
		done:       make(chan struct{}),
	}
	if f.mode == "" {
		f.mode = config.DefaultAuthMode
	}
	if f.endpoint == "" {
		f.endpoint = "/oauth/authorize"
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if f.provider != nil && f.provider.ClientID() == config.PlaceholderClientID {
		f.placeholder = true
		f.logger.Warn("FORGE_CLIENT_ID is the placeholder value, set a real client id")
	}
	return f
}

func (f *Flow) Mode() string { return f.mode }

// Close aborts every login delay still running. Delays are otherwise never cut short, so
// handlers pass a context detached from the client connection.
func (f *Flow) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Login runs the whole verification inline. It holds the caller through two artificial
// delays, posting progress notifications, and fails only if ctx ends or the flow is closed first.
func (f *Flow) Login(ctx context.Context, st *store.Store) error {
	if f.mode != ModeLocal {
		return ErrWrongMode
	}
	if err := st.BeginVerifying(); err != nil {
		return err
	}

	st.Notify(models.NotifyInfo, MsgVerifying, nil)
	if err := f.wait(ctx, f.delay); err != nil {
		st.AbortVerifying()
		return err
	}
	st.Notify(models.NotifyInfo, MsgCheckingGuild, nil)
	if err := f.wait(ctx, f.delay); err != nil {
		st.AbortVerifying()
		return err
	}
	return f.complete(st)
}

// Begin starts a redirect login and returns the provider URL plus the state value the
// caller must keep to check the callback. A login abandoned for longer than LoginStaleAfter
// does not block a new one.
func (f *Flow) Begin(st *store.Store, redirectURI string) (authorizeURL, state string, err error) {
	if f.mode != ModeRedirect {
		return "", "", ErrWrongMode
	}
	if age, ok := st.VerifyingFor(); ok && age > f.staleAfter {
		f.logger.Info("Restarting abandoned login", "age", age)
		st.AbortVerifying()
	}
	if err := st.BeginVerifying(); err != nil {
		return "", "", err
	}
	if f.placeholder {
		st.Notify(models.NotifyError, MsgClientIDPlaceholder, nil)
	}

	state = uuid.NewString()
	return f.provider.AuthorizeURL(f.endpoint, redirectURI, state), state, nil
}

// Complete handles the provider callback. An error parameter, a state mismatch or an
// invalid token return the session to LoggedOut with a failure notification.
func (f *Flow) Complete(ctx context.Context, st *store.Store, params url.Values, expectedState string) error {
	if f.mode != ModeRedirect {
		return ErrWrongMode
	}
	if st.AuthState() == models.LoggedIn {
		return store.ErrAlreadyLoggedIn
	}

	fail := func(err error) error {
		st.AbortVerifying()
		st.Notify(models.NotifyError, MsgFailed, nil)
		f.logger.Warn("Login failed", "error", err)
		return err
	}

	if e := params.Get("error"); e != "" {
		return fail(fmt.Errorf("%w: %s", ErrProviderFailure, e))
	}
	got := params.Get("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expectedState)) != 1 {
		return fail(ErrInvalidState)
	}
	if _, err := f.provider.Verify(params.Get("access_token")); err != nil {
		return fail(err)
	}

	// Stands in for fetching the profile from the provider.
	if err := f.wait(ctx, f.delay); err != nil {
		st.AbortVerifying()
		return err
	}
	return f.complete(st)
}

func (f *Flow) complete(st *store.Store) error {
	user := DemoUser()
	if err := st.SetUser(user); err != nil {
		// The session is logged in even when the durable copy could not be written.
		f.logger.Error("Failed to persist user", "error", err)
	}
	f.logger.Info("User logged in", "user_id", user.ID)
	st.Notify(models.NotifySuccess, MsgSuccess, map[string]string{"Username": user.Username})
	return nil
}

// Logout clears the identity. The session's voted ids survive.
func (f *Flow) Logout(st *store.Store) error {
	err := st.ClearUser()
	st.Notify(models.NotifyInfo, MsgLoggedOut, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (f *Flow) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-f.done:
		return ErrShuttingDown
	default:
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return ErrShuttingDown
	case <-t.C:
		return nil
	}
}
