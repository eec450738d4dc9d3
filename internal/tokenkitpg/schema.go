package tokenkitpg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the refresh token table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS refresh_tokens (
    user_id TEXT NOT NULL,
    token_hash TEXT NOT NULL,
    expires_unix BIGINT NOT NULL,
    issued_at_unix BIGINT NOT NULL,
    PRIMARY KEY (user_id, token_hash)
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expiry ON refresh_tokens (expires_unix);
`)
	return err
}
