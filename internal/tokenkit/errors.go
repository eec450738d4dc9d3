package tokenkit

import "errors"

var (
	// ErrAccessTokenMalformed indicates the access token is structurally unparseable.
	ErrAccessTokenMalformed = errors.New("access_token.malformed")
	// ErrAccessTokenInvalid indicates a signature, issuer, audience, or subject mismatch.
	ErrAccessTokenInvalid = errors.New("access_token.invalid")
	// ErrAccessTokenExpired indicates the access token is past its embedded expiry.
	ErrAccessTokenExpired = errors.New("access_token.expired")
	// ErrRefreshTokenInvalid indicates the refresh token is absent, expired, or already rotated.
	// Terminal for that token lineage; callers must force a fresh login.
	ErrRefreshTokenInvalid = errors.New("refresh_token.invalid")
	// ErrStoreUnavailable indicates the backing store is unreachable or timed out.
	// The only condition eligible for caller-side retry with backoff.
	ErrStoreUnavailable = errors.New("refresh_store.unavailable")
)
