package tokenkit

import (
	"context"
	"errors"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("user_registry.email_taken")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("user_registry.username_taken")
	// ErrInvalidCredentials indicates the username/password pair did not match.
	ErrInvalidCredentials = errors.New("user_registry.invalid_credentials")
	// ErrUserNotFound indicates no user exists for the id.
	ErrUserNotFound = errors.New("user_registry.not_found")
)

// UserProfile is the public shape of a registered user.
type UserProfile struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// UserRegistry is the external identity collaborator: it owns registration,
// credential verification, and profile lookups. The token core only consumes
// the user ids it yields.
type UserRegistry interface {
	Register(ctx context.Context, email string, username string, password string) (string, error)
	Authenticate(ctx context.Context, username string, password string) (string, error)
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
}
