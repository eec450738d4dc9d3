package tokenkit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// Both store implementations in this package must honor the same contract;
// backends in other packages have their own suites.
func TestRefreshTokenStoreContract(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		store func(t *testing.T) RefreshTokenStore
	}{
		{
			name: "memory",
			store: func(t *testing.T) RefreshTokenStore {
				t.Helper()
				return NewMemoryRefreshTokenStore()
			},
		},
		{
			name: "sqlite",
			store: func(t *testing.T) RefreshTokenStore {
				t.Helper()
				store, err := NewDatabaseRefreshTokenStore(context.Background(), fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", t.Name()))
				if err != nil {
					t.Fatalf("failed to create sqlite store: %v", err)
				}
				return store
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := testCase.store(t)
			ctx := context.Background()
			expiry := time.Now().UTC().Add(time.Hour)

			found, existsErr := store.Exists(ctx, "user", "missing")
			if existsErr != nil {
				t.Fatalf("exists error: %v", existsErr)
			}
			if found {
				t.Fatalf("expected missing record to not exist")
			}

			if err := store.Insert(ctx, "user", "hash-1", expiry); err != nil {
				t.Fatalf("insert error: %v", err)
			}
			if found, _ = store.Exists(ctx, "user", "hash-1"); !found {
				t.Fatalf("expected inserted record to exist")
			}

			// Same hash under a different user must not match.
			if found, _ = store.Exists(ctx, "other-user", "hash-1"); found {
				t.Fatalf("expected record to be scoped to its user")
			}

			if err := store.Replace(ctx, "user", "hash-1", "hash-2", expiry); err != nil {
				t.Fatalf("replace error: %v", err)
			}
			if found, _ = store.Exists(ctx, "user", "hash-1"); found {
				t.Fatalf("expected replaced record to be gone")
			}
			if found, _ = store.Exists(ctx, "user", "hash-2"); !found {
				t.Fatalf("expected successor record to exist")
			}

			// Replaying the consumed hash must fail and insert nothing.
			if err := store.Replace(ctx, "user", "hash-1", "hash-3", expiry); !errors.Is(err, ErrRefreshTokenInvalid) {
				t.Fatalf("expected ErrRefreshTokenInvalid on replay, got %v", err)
			}
			if found, _ = store.Exists(ctx, "user", "hash-3"); found {
				t.Fatalf("expected failed replace to leave no successor")
			}

			// An expired record must not be replaceable.
			if err := store.Insert(ctx, "user", "stale", time.Now().UTC().Add(-time.Minute)); err != nil {
				t.Fatalf("insert error: %v", err)
			}
			if found, _ = store.Exists(ctx, "user", "stale"); found {
				t.Fatalf("expected expired record to not exist")
			}
			if err := store.Replace(ctx, "user", "stale", "hash-4", expiry); !errors.Is(err, ErrRefreshTokenInvalid) {
				t.Fatalf("expected ErrRefreshTokenInvalid for expired record, got %v", err)
			}

			// DeleteOne is idempotent.
			if err := store.DeleteOne(ctx, "user", "hash-2"); err != nil {
				t.Fatalf("delete error: %v", err)
			}
			if err := store.DeleteOne(ctx, "user", "hash-2"); err != nil {
				t.Fatalf("expected repeated delete to be a no-op, got %v", err)
			}

			// DeleteAll removes every session for the user.
			for index := 0; index < 3; index++ {
				if err := store.Insert(ctx, "user", fmt.Sprintf("session-%d", index), expiry); err != nil {
					t.Fatalf("insert error: %v", err)
				}
			}
			removed, deleteAllErr := store.DeleteAll(ctx, "user")
			if deleteAllErr != nil {
				t.Fatalf("delete all error: %v", deleteAllErr)
			}
			if removed < 3 {
				t.Fatalf("expected at least three removed records, got %d", removed)
			}
			for index := 0; index < 3; index++ {
				if found, _ = store.Exists(ctx, "user", fmt.Sprintf("session-%d", index)); found {
					t.Fatalf("expected session-%d to be removed", index)
				}
			}
		})
	}
}

func TestDatabaseStoreRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	if _, err := NewDatabaseRefreshTokenStore(context.Background(), "mysql://localhost/tokens"); !errors.Is(err, ErrUnsupportedDialect) {
		t.Fatalf("expected ErrUnsupportedDialect, got %v", err)
	}
	if _, err := NewDatabaseRefreshTokenStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty database url")
	}
	if _, err := NewDatabaseRefreshTokenStore(context.Background(), "no-scheme-at-all"); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	t.Parallel()

	store, storeErr := NewDatabaseRefreshTokenStore(context.Background(), "sqlite://file:purgetest?mode=memory&cache=shared")
	if storeErr != nil {
		t.Fatalf("failed to create sqlite store: %v", storeErr)
	}
	ctx := context.Background()

	if err := store.Insert(ctx, "user", "stale", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if err := store.Insert(ctx, "user", "live", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("insert error: %v", err)
	}

	removed, purgeErr := store.PurgeExpired(ctx)
	if purgeErr != nil {
		t.Fatalf("purge error: %v", purgeErr)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one purged record, got %d", removed)
	}
	if found, _ := store.Exists(ctx, "user", "live"); !found {
		t.Fatalf("expected live record to survive the purge")
	}
}
