package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Authenticator produces a replacement access token. oldToken is the token
// that was rejected, possibly empty.
type Authenticator interface {
	Refresh(ctx context.Context, oldToken string) (string, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, oldToken string) (string, error)

// Refresh calls f.
func (f AuthenticatorFunc) Refresh(ctx context.Context, oldToken string) (string, error) {
	return f(ctx, oldToken)
}

// expiredAt forces oauth2 to treat the seeded token as stale.
var expiredAt = time.Unix(1, 0)

// OAuth2Authenticator exchanges a refresh token for a new access token
// (RFC 6749 section 6). Rotated refresh tokens are kept for the next call.
type OAuth2Authenticator struct {
	config     *oauth2.Config
	httpClient *http.Client

	mu           sync.Mutex
	refreshToken string
}

var _ Authenticator = (*OAuth2Authenticator)(nil)

// NewOAuth2Authenticator creates an authenticator for cfg seeded with
// refreshToken.
func NewOAuth2Authenticator(cfg *oauth2.Config, refreshToken string) *OAuth2Authenticator {
	return &OAuth2Authenticator{config: cfg, refreshToken: refreshToken}
}

// WithHTTPClient sets the client used to reach the token endpoint.
func (a *OAuth2Authenticator) WithHTTPClient(c *http.Client) *OAuth2Authenticator {
	a.httpClient = c
	return a
}

// RefreshToken returns the refresh token that will be used next.
func (a *OAuth2Authenticator) RefreshToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshToken
}

// Refresh performs the refresh_token grant.
func (a *OAuth2Authenticator) Refresh(ctx context.Context, oldToken string) (string, error) {
	a.mu.Lock()
	rt := a.refreshToken
	a.mu.Unlock()
	if rt == "" {
		return "", ErrNoRefreshToken
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	seed := &oauth2.Token{AccessToken: oldToken, RefreshToken: rt, Expiry: expiredAt}
	tok, err := a.config.TokenSource(ctx, seed).Token()
	if err != nil {
		return "", fmt.Errorf("auth: refresh token grant: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != rt {
		a.mu.Lock()
		a.refreshToken = tok.RefreshToken
		a.mu.Unlock()
	}
	return tok.AccessToken, nil
}

// ClientCredentialsAuthenticator obtains tokens with the client_credentials
// grant. The rejected token plays no part in the exchange.
type ClientCredentialsAuthenticator struct {
	config     *clientcredentials.Config
	httpClient *http.Client
}

var _ Authenticator = (*ClientCredentialsAuthenticator)(nil)

// NewClientCredentialsAuthenticator creates an authenticator for cfg.
func NewClientCredentialsAuthenticator(cfg *clientcredentials.Config) *ClientCredentialsAuthenticator {
	return &ClientCredentialsAuthenticator{config: cfg}
}

// WithHTTPClient sets the client used to reach the token endpoint.
func (a *ClientCredentialsAuthenticator) WithHTTPClient(c *http.Client) *ClientCredentialsAuthenticator {
	a.httpClient = c
	return a
}

// Refresh requests a fresh token.
func (a *ClientCredentialsAuthenticator) Refresh(ctx context.Context, _ string) (string, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tok, err := a.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: client credentials grant: %w", err)
	}
	return tok.AccessToken, nil
}
