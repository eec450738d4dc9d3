package tokenkit

import (
	"context"
	"sync"
	"time"
)

// MemoryRefreshTokenStore is an in-memory store intended for tests and dev.
type MemoryRefreshTokenStore struct {
	mutex  sync.Mutex
	byUser map[string]map[string]time.Time
	clock  Clock
}

// NewMemoryRefreshTokenStore creates a new in-memory token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		byUser: make(map[string]map[string]time.Time),
		clock:  NewSystemClock(),
	}
}

// Exists reports whether a live record matches the user and token hash.
func (store *MemoryRefreshTokenStore) Exists(ctx context.Context, userID string, tokenHash string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.existsLocked(userID, tokenHash), nil
}

// Insert creates a record for the user.
func (store *MemoryRefreshTokenStore) Insert(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	records, ok := store.byUser[userID]
	if !ok {
		records = make(map[string]time.Time)
		store.byUser[userID] = records
	}
	records[tokenHash] = expiresAt
	return nil
}

// Replace atomically swaps the current record for its successor under the
// store mutex. An absent or expired current record fails the whole call.
func (store *MemoryRefreshTokenStore) Replace(ctx context.Context, userID string, currentTokenHash string, nextTokenHash string, expiresAt time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if !store.existsLocked(userID, currentTokenHash) {
		return ErrRefreshTokenInvalid
	}
	records := store.byUser[userID]
	delete(records, currentTokenHash)
	records[nextTokenHash] = expiresAt
	return nil
}

// DeleteOne removes the matching record; missing records are a no-op.
func (store *MemoryRefreshTokenStore) DeleteOne(ctx context.Context, userID string, tokenHash string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	records, ok := store.byUser[userID]
	if !ok {
		return nil
	}
	delete(records, tokenHash)
	if len(records) == 0 {
		delete(store.byUser, userID)
	}
	return nil
}

// DeleteAll removes every record for the user.
func (store *MemoryRefreshTokenStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	records, ok := store.byUser[userID]
	if !ok {
		return 0, nil
	}
	removed := int64(len(records))
	delete(store.byUser, userID)
	return removed, nil
}

// PurgeExpired drops records whose expiry has passed.
func (store *MemoryRefreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	now := store.clock.Now()
	var removed int64
	for userID, records := range store.byUser {
		for tokenHash, expiresAt := range records {
			if !now.Before(expiresAt) {
				delete(records, tokenHash)
				removed++
			}
		}
		if len(records) == 0 {
			delete(store.byUser, userID)
		}
	}
	return removed, nil
}

func (store *MemoryRefreshTokenStore) existsLocked(userID string, tokenHash string) bool {
	records, ok := store.byUser[userID]
	if !ok {
		return false
	}
	expiresAt, ok := records[tokenHash]
	if !ok {
		return false
	}
	// Expired-but-not-yet-purged records are never treated as valid.
	return store.clock.Now().Before(expiresAt)
}
