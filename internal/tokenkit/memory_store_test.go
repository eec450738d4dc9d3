package tokenkit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreExpiredRecordIsNeverValid(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store.clock = clock

	if err := store.Insert(context.Background(), "user", "hash", clock.Now().Add(time.Minute)); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	found, _ := store.Exists(context.Background(), "user", "hash")
	if !found {
		t.Fatalf("expected record to exist before expiry")
	}

	clock.Advance(2 * time.Minute)
	found, _ = store.Exists(context.Background(), "user", "hash")
	if found {
		t.Fatalf("expected expired record to be invalid before any purge runs")
	}
	if err := store.Replace(context.Background(), "user", "hash", "next-hash", clock.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected replace of expired record to fail")
	}
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store.clock = clock

	_ = store.Insert(context.Background(), "user", "stale", clock.Now().Add(time.Minute))
	_ = store.Insert(context.Background(), "user", "live", clock.Now().Add(time.Hour))

	clock.Advance(30 * time.Minute)
	removed, purgeErr := store.PurgeExpired(context.Background())
	if purgeErr != nil {
		t.Fatalf("purge error: %v", purgeErr)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one purged record, got %d", removed)
	}
	if found, _ := store.Exists(context.Background(), "user", "live"); !found {
		t.Fatalf("expected live record to survive the purge")
	}
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	t.Parallel()

	store := NewMemoryRefreshTokenStore()
	expiry := time.Now().UTC().Add(time.Hour)
	_ = store.Insert(context.Background(), "user-a", "hash", expiry)
	_ = store.Insert(context.Background(), "user-b", "hash", expiry)

	removed, _ := store.DeleteAll(context.Background(), "user-a")
	if removed != 1 {
		t.Fatalf("expected one removed record for user-a, got %d", removed)
	}
	if found, _ := store.Exists(context.Background(), "user-b", "hash"); !found {
		t.Fatalf("expected user-b record to be untouched")
	}
}
