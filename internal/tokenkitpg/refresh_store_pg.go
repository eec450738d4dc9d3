package tokenkitpg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tyemirov/tokenpair/internal/tokenkit"
)

// PostgresRefreshTokenStore persists refresh tokens in PostgreSQL through a
// pgx pool, keyed by (user_id, token_hash).
type PostgresRefreshTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshTokenStore constructs a Postgres-backed store.
func NewPostgresRefreshTokenStore(pool *pgxpool.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// Exists reports whether a non-expired record matches the user and token hash.
func (store *PostgresRefreshTokenStore) Exists(ctx context.Context, userID string, tokenHash string) (bool, error) {
	var found bool
	row := store.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM refresh_tokens
    WHERE user_id = $1 AND token_hash = $2 AND expires_unix > $3
)
`, userID, tokenHash, time.Now().UTC().Unix())
	if scanErr := row.Scan(&found); scanErr != nil {
		return false, fmt.Errorf("refresh_store.exists.postgres: %w", scanErr)
	}
	return found, nil
}

// Insert creates a refresh token record.
func (store *PostgresRefreshTokenStore) Insert(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_tokens (user_id, token_hash, expires_unix, issued_at_unix)
VALUES ($1, $2, $3, $4)
`, userID, tokenHash, expiresAt.Unix(), time.Now().UTC().Unix())
	if execErr != nil {
		return fmt.Errorf("refresh_store.insert.postgres: %w", execErr)
	}
	return nil
}

// Replace consumes the current record and inserts its successor in one
// transaction. The conditional DELETE is the liveness check: zero rows means
// the token was absent, expired, or already rotated, and under concurrent
// rotation of the same token only one transaction observes the row.
func (store *PostgresRefreshTokenStore) Replace(ctx context.Context, userID string, currentTokenHash string, nextTokenHash string, expiresAt time.Time) error {
	nowUnix := time.Now().UTC().Unix()
	transaction, beginErr := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if beginErr != nil {
		return fmt.Errorf("refresh_store.replace.postgres: %w", beginErr)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	deleteTag, deleteErr := transaction.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE user_id = $1 AND token_hash = $2 AND expires_unix > $3
`, userID, currentTokenHash, nowUnix)
	if deleteErr != nil {
		return fmt.Errorf("refresh_store.replace.postgres: %w", deleteErr)
	}
	if deleteTag.RowsAffected() == 0 {
		return tokenkit.ErrRefreshTokenInvalid
	}

	if _, insertErr := transaction.Exec(ctx, `
INSERT INTO refresh_tokens (user_id, token_hash, expires_unix, issued_at_unix)
VALUES ($1, $2, $3, $4)
`, userID, nextTokenHash, expiresAt.Unix(), nowUnix); insertErr != nil {
		return fmt.Errorf("refresh_store.replace.postgres: %w", insertErr)
	}

	if commitErr := transaction.Commit(ctx); commitErr != nil {
		return fmt.Errorf("refresh_store.replace.postgres: %w", commitErr)
	}
	return nil
}

// DeleteOne removes the matching record; missing records are a no-op.
func (store *PostgresRefreshTokenStore) DeleteOne(ctx context.Context, userID string, tokenHash string) error {
	_, execErr := store.pool.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE user_id = $1 AND token_hash = $2
`, userID, tokenHash)
	if execErr != nil {
		return fmt.Errorf("refresh_store.delete_one.postgres: %w", execErr)
	}
	return nil
}

// DeleteAll removes every record for the user and returns the count.
func (store *PostgresRefreshTokenStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, execErr := store.pool.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE user_id = $1
`, userID)
	if execErr != nil {
		return 0, fmt.Errorf("refresh_store.delete_all.postgres: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired drops records past their expiry.
func (store *PostgresRefreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, execErr := store.pool.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE expires_unix <= $1
`, time.Now().UTC().Unix())
	if execErr != nil {
		return 0, fmt.Errorf("refresh_store.purge.postgres: %w", execErr)
	}
	return tag.RowsAffected(), nil
}
