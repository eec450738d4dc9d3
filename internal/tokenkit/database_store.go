package tokenkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("refresh_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("refresh_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("refresh_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("refresh_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("refresh_store.unsupported_no_scheme")
)

// DatabaseRefreshTokenStore persists refresh tokens using GORM, keyed by
// (user_id, token_hash).
type DatabaseRefreshTokenStore struct {
	db          *gorm.DB
	driverLabel string
	clock       Clock
}

// Driver exposes the selected database driver label.
func (store *DatabaseRefreshTokenStore) Driver() string {
	return store.driverLabel
}

type refreshTokenRecord struct {
	UserID       string `gorm:"column:user_id;primaryKey"`
	TokenHash    string `gorm:"column:token_hash;primaryKey"`
	ExpiresUnix  int64  `gorm:"column:expires_unix;not null;index"`
	IssuedAtUnix int64  `gorm:"column:issued_at_unix;not null"`
}

func (refreshTokenRecord) TableName() string {
	return "refresh_tokens"
}

// NewDatabaseRefreshTokenStore constructs a GORM-backed store from a
// postgres:// or sqlite:// URL.
func NewDatabaseRefreshTokenStore(ctx context.Context, databaseURL string) (*DatabaseRefreshTokenStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("refresh_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("refresh_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&refreshTokenRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("refresh_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseRefreshTokenStore{
		db:          gormDB,
		driverLabel: driverLabel,
		clock:       NewSystemClock(),
	}, nil
}

// Exists reports whether a non-expired record matches the user and token hash.
func (store *DatabaseRefreshTokenStore) Exists(ctx context.Context, userID string, tokenHash string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&refreshTokenRecord{}).
		Where("user_id = ? AND token_hash = ? AND expires_unix > ?", userID, tokenHash, store.clock.Now().Unix()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("refresh_store.exists.%s: %w", store.driverLabel, err)
	}
	return count > 0, nil
}

// Insert creates a refresh token record.
func (store *DatabaseRefreshTokenStore) Insert(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	record := refreshTokenRecord{
		UserID:       userID,
		TokenHash:    tokenHash,
		ExpiresUnix:  expiresAt.Unix(),
		IssuedAtUnix: store.clock.Now().Unix(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("refresh_store.insert.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Replace swaps the current record for its successor inside one transaction.
// The conditional delete doubles as the liveness check: zero rows affected
// means the presented token was absent, expired, or already rotated, and the
// transaction rolls back without inserting anything.
func (store *DatabaseRefreshTokenStore) Replace(ctx context.Context, userID string, currentTokenHash string, nextTokenHash string, expiresAt time.Time) error {
	nowUnix := store.clock.Now().Unix()
	transactionErr := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		deleteResult := transaction.
			Where("user_id = ? AND token_hash = ? AND expires_unix > ?", userID, currentTokenHash, nowUnix).
			Delete(&refreshTokenRecord{})
		if deleteResult.Error != nil {
			return deleteResult.Error
		}
		if deleteResult.RowsAffected == 0 {
			return ErrRefreshTokenInvalid
		}
		successor := refreshTokenRecord{
			UserID:       userID,
			TokenHash:    nextTokenHash,
			ExpiresUnix:  expiresAt.Unix(),
			IssuedAtUnix: nowUnix,
		}
		return transaction.Create(&successor).Error
	})
	if transactionErr != nil {
		if errors.Is(transactionErr, ErrRefreshTokenInvalid) {
			return ErrRefreshTokenInvalid
		}
		return fmt.Errorf("refresh_store.replace.%s: %w", store.driverLabel, transactionErr)
	}
	return nil
}

// DeleteOne removes the matching record; missing records are a no-op.
func (store *DatabaseRefreshTokenStore) DeleteOne(ctx context.Context, userID string, tokenHash string) error {
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", userID, tokenHash).
		Delete(&refreshTokenRecord{}).Error
	if err != nil {
		return fmt.Errorf("refresh_store.delete_one.%s: %w", store.driverLabel, err)
	}
	return nil
}

// DeleteAll removes every record for the user and returns the count.
func (store *DatabaseRefreshTokenStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&refreshTokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("refresh_store.delete_all.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeExpired drops records past their expiry. Hygiene only; Exists and
// Replace never consider expired rows live.
func (store *DatabaseRefreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := store.db.WithContext(ctx).
		Where("expires_unix <= ?", store.clock.Now().Unix()).
		Delete(&refreshTokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("refresh_store.purge.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("refresh_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("refresh_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("refresh_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("refresh_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
