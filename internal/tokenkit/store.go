package tokenkit

import (
	"context"
	"time"
)

// RefreshTokenStore is the persistence contract for refresh tokens. Records
// are keyed by (userID, tokenHash); a user may hold several records at once,
// one per device session. Implementations must give per-key atomicity:
// Replace is the single primitive that makes rotation race-free.
type RefreshTokenStore interface {
	// Exists reports whether a non-expired record matches exactly.
	Exists(ctx context.Context, userID string, tokenHash string) (bool, error)

	// Insert creates a record for a freshly issued refresh token.
	Insert(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error

	// Replace atomically deletes the current record and inserts its
	// successor. When the current record is absent or expired it returns
	// ErrRefreshTokenInvalid and inserts nothing; given two concurrent calls
	// for the same current hash, exactly one succeeds.
	Replace(ctx context.Context, userID string, currentTokenHash string, nextTokenHash string, expiresAt time.Time) error

	// DeleteOne removes exactly the matching record. Absent records are a
	// silent no-op so logout stays idempotent.
	DeleteOne(ctx context.Context, userID string, tokenHash string) error

	// DeleteAll removes every record for the user and returns the count.
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// ExpiredRecordPurger is implemented by stores without native TTL support.
// Purging is storage hygiene only; validity checks never depend on it.
type ExpiredRecordPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
