package web

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tyemirov/tokenpair/internal/tokenkit"
)

// InMemoryUsers is a user registry for demo and local runs. Production
// deployments supply their own tokenkit.UserRegistry; the token core only
// consumes the user ids this yields.
type InMemoryUsers struct {
	mutex      sync.Mutex
	byID       map[string]userRecord
	byUsername map[string]string
	byEmail    map[string]string
}

type userRecord struct {
	UserID       string
	Email        string
	Username     string
	PasswordHash []byte
}

// NewInMemoryUsers constructs an empty registry.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		byID:       make(map[string]userRecord),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Register stores a new user with a bcrypt-hashed password and returns the
// assigned user id. Email and username must both be free.
func (registry *InMemoryUsers) Register(ctx context.Context, email string, username string, password string) (string, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	normalizedUsername := strings.TrimSpace(username)

	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if hashErr != nil {
		return "", hashErr
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if _, taken := registry.byEmail[normalizedEmail]; taken {
		return "", tokenkit.ErrEmailTaken
	}
	if _, taken := registry.byUsername[normalizedUsername]; taken {
		return "", tokenkit.ErrUsernameTaken
	}

	record := userRecord{
		UserID:       uuid.NewString(),
		Email:        normalizedEmail,
		Username:     normalizedUsername,
		PasswordHash: passwordHash,
	}
	registry.byID[record.UserID] = record
	registry.byEmail[normalizedEmail] = record.UserID
	registry.byUsername[normalizedUsername] = record.UserID
	return record.UserID, nil
}

// Authenticate checks the username/password pair and returns the user id.
func (registry *InMemoryUsers) Authenticate(ctx context.Context, username string, password string) (string, error) {
	registry.mutex.Lock()
	userID, found := registry.byUsername[strings.TrimSpace(username)]
	record := registry.byID[userID]
	registry.mutex.Unlock()
	if !found {
		// Still burn a bcrypt comparison so unknown usernames are not
		// distinguishable by timing.
		_ = bcrypt.CompareHashAndPassword(phantomHash, []byte(password))
		return "", tokenkit.ErrInvalidCredentials
	}
	if compareErr := bcrypt.CompareHashAndPassword(record.PasswordHash, []byte(password)); compareErr != nil {
		return "", tokenkit.ErrInvalidCredentials
	}
	return record.UserID, nil
}

// GetProfile returns the public profile for the user id.
func (registry *InMemoryUsers) GetProfile(ctx context.Context, userID string) (tokenkit.UserProfile, error) {
	registry.mutex.Lock()
	record, found := registry.byID[userID]
	registry.mutex.Unlock()
	if !found {
		return tokenkit.UserProfile{}, tokenkit.ErrUserNotFound
	}
	return tokenkit.UserProfile{
		UserID:   record.UserID,
		Email:    record.Email,
		Username: record.Username,
	}, nil
}

var phantomHash = mustHash("phantom-credential")

func mustHash(value string) []byte {
	hashed, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hashed
}
