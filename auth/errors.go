package auth

import "errors"

var (
	// ErrEmptyToken is returned when an authenticator reports success with
	// an empty access token.
	ErrEmptyToken = errors.New("auth: authenticator returned an empty token")

	// ErrNoRefreshToken is returned by OAuth2Authenticator when it holds no
	// refresh token to exchange.
	ErrNoRefreshToken = errors.New("auth: no refresh token available")

	// ErrRefreshTimeout is returned when a refresh exceeds its time budget.
	ErrRefreshTimeout = errors.New("auth: token refresh timed out")

	// ErrNoToken is returned when no token is stored and none can be fetched.
	ErrNoToken = errors.New("auth: no token available")

	// ErrInvalidKey is returned when a FileStore key has the wrong length.
	ErrInvalidKey = errors.New("auth: encryption key must be 32 bytes")
)
