package tokenkitredis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tyemirov/tokenpair/internal/tokenkit"
)

// RedisRefreshTokenStore persists refresh tokens in Redis. Each record is one
// key with a native TTL, so expiry needs no sweep; a per-user index set backs
// mass revocation. Rotation runs as a single Lua script, which is what makes
// the delete-if-present-then-insert step atomic under concurrent replays.
type RedisRefreshTokenStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRefreshTokenStore constructs a Redis-backed store. keyPrefix
// namespaces every key so the store can share a Redis database.
func NewRedisRefreshTokenStore(client redis.UniversalClient, keyPrefix string) *RedisRefreshTokenStore {
	if keyPrefix == "" {
		keyPrefix = "tokenpair"
	}
	return &RedisRefreshTokenStore{client: client, keyPrefix: keyPrefix}
}

var replaceScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[3], ARGV[1])
redis.call("SET", KEYS[2], "1", "EX", tonumber(ARGV[3]))
redis.call("SADD", KEYS[3], ARGV[2])
redis.call("EXPIRE", KEYS[3], tonumber(ARGV[3]))
return 1
`)

var deleteAllScript = redis.NewScript(`
local hashes = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, hash in ipairs(hashes) do
  removed = removed + redis.call("DEL", ARGV[1] .. hash)
end
redis.call("DEL", KEYS[1])
return removed
`)

// Exists reports whether the record key is still live. Redis reclaims expired
// keys itself, so liveness and existence coincide.
func (store *RedisRefreshTokenStore) Exists(ctx context.Context, userID string, tokenHash string) (bool, error) {
	count, err := store.client.Exists(ctx, store.recordKey(userID, tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("refresh_store.exists.redis: %w", err)
	}
	return count > 0, nil
}

// Insert creates the record key with a native TTL and indexes it for the user.
func (store *RedisRefreshTokenStore) Insert(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	ttlSeconds := secondsUntil(expiresAt)
	if ttlSeconds <= 0 {
		// Born expired; nothing worth storing.
		return nil
	}
	pipeline := store.client.TxPipeline()
	pipeline.Set(ctx, store.recordKey(userID, tokenHash), "1", time.Duration(ttlSeconds)*time.Second)
	pipeline.SAdd(ctx, store.indexKey(userID), tokenHash)
	pipeline.Expire(ctx, store.indexKey(userID), time.Duration(ttlSeconds)*time.Second)
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("refresh_store.insert.redis: %w", err)
	}
	return nil
}

// Replace atomically consumes the current record and creates its successor.
func (store *RedisRefreshTokenStore) Replace(ctx context.Context, userID string, currentTokenHash string, nextTokenHash string, expiresAt time.Time) error {
	ttlSeconds := secondsUntil(expiresAt)
	if ttlSeconds <= 0 {
		return tokenkit.ErrRefreshTokenInvalid
	}
	status, err := replaceScript.Run(ctx, store.client,
		[]string{
			store.recordKey(userID, currentTokenHash),
			store.recordKey(userID, nextTokenHash),
			store.indexKey(userID),
		},
		currentTokenHash, nextTokenHash, ttlSeconds,
	).Int64()
	if err != nil {
		return fmt.Errorf("refresh_store.replace.redis: %w", err)
	}
	if status == 0 {
		return tokenkit.ErrRefreshTokenInvalid
	}
	return nil
}

// DeleteOne removes the record and its index entry; missing keys are a no-op.
func (store *RedisRefreshTokenStore) DeleteOne(ctx context.Context, userID string, tokenHash string) error {
	pipeline := store.client.TxPipeline()
	pipeline.Del(ctx, store.recordKey(userID, tokenHash))
	pipeline.SRem(ctx, store.indexKey(userID), tokenHash)
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("refresh_store.delete_one.redis: %w", err)
	}
	return nil
}

// DeleteAll removes every record indexed for the user and the index itself.
func (store *RedisRefreshTokenStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	removed, err := deleteAllScript.Run(ctx, store.client,
		[]string{store.indexKey(userID)},
		store.recordKeyPrefix(userID),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("refresh_store.delete_all.redis: %w", err)
	}
	return removed, nil
}

func (store *RedisRefreshTokenStore) recordKey(userID string, tokenHash string) string {
	return store.recordKeyPrefix(userID) + tokenHash
}

func (store *RedisRefreshTokenStore) recordKeyPrefix(userID string) string {
	return store.keyPrefix + ":refresh:" + userID + ":"
}

func (store *RedisRefreshTokenStore) indexKey(userID string) string {
	return store.keyPrefix + ":refresh_index:" + userID
}

func secondsUntil(expiresAt time.Time) int64 {
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return 0
	}
	seconds := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		seconds++
	}
	return seconds
}
