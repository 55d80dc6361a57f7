package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"forgeboard/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid access token")
	ErrInvalidRequest  = errors.New("invalid authorize request")
	ErrUnknownClient   = errors.New("unknown client id")
	ErrInvalidRedirect = errors.New("redirect uri must be a local path")
)

// Claims carries the identity granted to an access token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// MockProvider stands in for the external identity provider. It runs in-process, so no
// network is ever contacted, but it issues real signed bearer tokens.
type MockProvider struct {
	secret   []byte
	clientID string
	tokenTTL time.Duration
	now      func() time.Time
}

func NewMockProvider(secret []byte, clientID string) *MockProvider {
	return &MockProvider{secret: secret, clientID: clientID, tokenTTL: config.AccessTokenTTL, now: time.Now}
}

func (p *MockProvider) ClientID() string { return p.clientID }

// Issue signs an access token for userID.
func (p *MockProvider) Issue(userID string) (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{p.clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
		Scope: config.OAuthScope,
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and audience and returns the token subject.
func (p *MockProvider) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(p.clientID),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// AuthorizeRequest is the implicit-grant request a client sends to /oauth/authorize.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
}

// AuthorizeURL builds the provider URL a client is sent to.
func (p *MockProvider) AuthorizeURL(endpoint, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "token")
	q.Set("scope", config.OAuthScope)
	q.Set("state", state)
	return endpoint + "?" + q.Encode()
}

// ParseAuthorizeRequest validates an authorize request.
func (p *MockProvider) ParseAuthorizeRequest(q url.Values) (AuthorizeRequest, error) {
	req := AuthorizeRequest{
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		ResponseType: q.Get("response_type"),
		Scope:        q.Get("scope"),
		State:        q.Get("state"),
	}
	if req.ResponseType != "token" {
		return req, fmt.Errorf("%w: unsupported response_type %q", ErrInvalidRequest, req.ResponseType)
	}
	if req.ClientID != p.clientID {
		return req, ErrUnknownClient
	}
	if !localPath(req.RedirectURI) {
		return req, ErrInvalidRedirect
	}
	return req, nil
}

// Decide returns the redirect carrying either a fresh token (approve) or the
// access_denied error back to the client.
func (p *MockProvider) Decide(req AuthorizeRequest, approve bool, userID string) (string, error) {
	q := url.Values{}
	if approve {
		token, err := p.Issue(userID)
		if err != nil {
			return "", err
		}
		q.Set("access_token", token)
		q.Set("token_type", "Bearer")
		q.Set("expires_in", strconv.Itoa(int(p.tokenTTL.Seconds())))
		q.Set("scope", config.OAuthScope)
	} else {
		q.Set("error", "access_denied")
	}
	if req.State != "" {
		q.Set("state", req.State)
	}

	sep := "?"
	if strings.Contains(req.RedirectURI, "?") {
		sep = "&"
	}
	return req.RedirectURI + sep + q.Encode(), nil
}

func localPath(s string) bool {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.Contains(s, `\`) {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "" && u.Host == ""
}
