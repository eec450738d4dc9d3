package web

import (
	"context"
	"errors"
	"testing"

	"github.com/tyemirov/tokenpair/internal/tokenkit"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryUsers()
	ctx := context.Background()

	userID, registerErr := registry.Register(ctx, "Pat@Example.com", "pat", "hunter2")
	if registerErr != nil {
		t.Fatalf("register error: %v", registerErr)
	}
	if userID == "" {
		t.Fatalf("expected an assigned user id")
	}

	authenticatedID, authErr := registry.Authenticate(ctx, "pat", "hunter2")
	if authErr != nil {
		t.Fatalf("authenticate error: %v", authErr)
	}
	if authenticatedID != userID {
		t.Fatalf("expected %q, got %q", userID, authenticatedID)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryUsers()
	ctx := context.Background()

	if _, err := registry.Register(ctx, "pat@example.com", "pat", "hunter2"); err != nil {
		t.Fatalf("register error: %v", err)
	}

	// Email comparison is case-insensitive.
	if _, err := registry.Register(ctx, "PAT@example.com", "someone-else", "hunter2"); !errors.Is(err, tokenkit.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := registry.Register(ctx, "other@example.com", "pat", "hunter2"); !errors.Is(err, tokenkit.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryUsers()
	ctx := context.Background()

	if _, err := registry.Register(ctx, "pat@example.com", "pat", "hunter2"); err != nil {
		t.Fatalf("register error: %v", err)
	}

	if _, err := registry.Authenticate(ctx, "pat", "wrong"); !errors.Is(err, tokenkit.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := registry.Authenticate(ctx, "nobody", "hunter2"); !errors.Is(err, tokenkit.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown username, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	registry := NewInMemoryUsers()
	ctx := context.Background()

	userID, registerErr := registry.Register(ctx, "pat@example.com", "pat", "hunter2")
	if registerErr != nil {
		t.Fatalf("register error: %v", registerErr)
	}

	profile, profileErr := registry.GetProfile(ctx, userID)
	if profileErr != nil {
		t.Fatalf("profile error: %v", profileErr)
	}
	if profile.UserID != userID || profile.Email != "pat@example.com" || profile.Username != "pat" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := registry.GetProfile(ctx, "missing-id"); !errors.Is(err, tokenkit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
