package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("super-secret"), "client-1")

	tok, err := p.Issue("847382")
	require.NoError(t, err)

	sub, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "847382", sub)
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("right"), "client-1")
	tok, err := p.Issue("u1")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		provider *MockProvider
		token    string
	}{
		{"Wrong secret", NewMockProvider([]byte("wrong"), "client-1"), tok},
		{"Wrong audience", NewMockProvider([]byte("right"), "client-2"), tok},
		{"Malformed", p, "not.a.jwt"},
		{"Empty", p, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.provider.Verify(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("k"), "c")
	p.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	tok, err := p.Issue("u1")
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAuthorizeRequest(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("k"), "client-1")

	valid := url.Values{
		"client_id":     {"client-1"},
		"redirect_uri":  {"/auth/callback"},
		"response_type": {"token"},
		"state":         {"s1"},
	}
	req, err := p.ParseAuthorizeRequest(valid)
	require.NoError(t, err)
	assert.Equal(t, "s1", req.State)

	testCases := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"Code flow", "response_type", "code", ErrInvalidRequest},
		{"Foreign client", "client_id", "other", ErrUnknownClient},
		{"Absolute redirect", "redirect_uri", "https://evil.example/cb", ErrInvalidRedirect},
		{"Protocol relative", "redirect_uri", "//evil.example/cb", ErrInvalidRedirect},
		{"Empty redirect", "redirect_uri", "", ErrInvalidRedirect},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := url.Values{}
			for k, v := range valid {
				q[k] = v
			}
			q.Set(tc.key, tc.value)
			_, err := p.ParseAuthorizeRequest(q)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("k"), "client-1")
	req := AuthorizeRequest{ClientID: "client-1", RedirectURI: "/auth/callback", ResponseType: "token", State: "xyz"}

	approved, err := p.Decide(req, true, "847382")
	require.NoError(t, err)
	u, err := url.Parse(approved)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", u.Path)
	assert.Equal(t, "xyz", u.Query().Get("state"))
	sub, err := p.Verify(u.Query().Get("access_token"))
	require.NoError(t, err)
	assert.Equal(t, "847382", sub)

	denied, err := p.Decide(req, false, "")
	require.NoError(t, err)
	u, err = url.Parse(denied)
	require.NoError(t, err)
	assert.Equal(t, "access_denied", u.Query().Get("error"))
	assert.Empty(t, u.Query().Get("access_token"))
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()
	p := NewMockProvider([]byte("k"), "client-1")
	got := p.AuthorizeURL("/oauth/authorize", "/auth/callback", "st")
	assert.True(t, strings.HasPrefix(got, "/oauth/authorize?"))

	u, err := url.Parse(got)
	require.NoError(t, err)
	_, err = p.ParseAuthorizeRequest(u.Query())
	assert.NoError(t, err)
}
