package tokenkit

import "time"

// Config carries the signing material and TTLs for the token pair service.
type Config struct {
	SigningSecret   []byte
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// StoreTimeout bounds every refresh-store round trip. Zero means no bound.
	StoreTimeout time.Duration
}
