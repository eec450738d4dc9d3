package tokenkit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errEmptySigningSecret = errors.New("signer.empty_signing_secret")
	errEmptyIssuer        = errors.New("signer.empty_issuer")
	errEmptyAudience      = errors.New("signer.empty_audience")
	errNonPositiveTTL     = errors.New("signer.non_positive_ttl")
	errEmptySubject       = errors.New("signer.empty_subject")
)

// AccessTokenClaims is the fixed claim set embedded in every access token:
// subject, issuer, audience, a fresh token id, and expiry. Nothing else.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// Signer mints and verifies HS256 access tokens. It never touches persistent
// storage and is safe for concurrent use.
type Signer struct {
	signingSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	clock         Clock
}

// NewSigner validates the signing configuration eagerly and constructs a Signer.
func NewSigner(configuration Config, clock Clock) (*Signer, error) {
	if len(configuration.SigningSecret) == 0 {
		return nil, errEmptySigningSecret
	}
	if configuration.Issuer == "" {
		return nil, errEmptyIssuer
	}
	if configuration.Audience == "" {
		return nil, errEmptyAudience
	}
	if configuration.AccessTokenTTL <= 0 {
		return nil, errNonPositiveTTL
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &Signer{
		signingSecret: configuration.SigningSecret,
		issuer:        configuration.Issuer,
		audience:      configuration.Audience,
		accessTTL:     configuration.AccessTokenTTL,
		clock:         clock,
	}, nil
}

// Sign mints a signed access token for the given user with a fresh token id
// and expiry at issuance time plus the configured TTL.
func (signer *Signer) Sign(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("access_token.mint: %w", errEmptySubject)
	}
	issuedAt := signer.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signer.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{signer.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(signer.accessTTL)),
		},
	})
	signed, signErr := token.SignedString(signer.signingSecret)
	if signErr != nil {
		return "", fmt.Errorf("access_token.mint: %w", signErr)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience, and expiry, and returns the
// subject user id.
func (signer *Signer) Verify(accessToken string) (string, error) {
	parsedToken, parseErr := jwt.ParseWithClaims(accessToken, &AccessTokenClaims{}, signer.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signer.issuer),
		jwt.WithAudience(signer.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(signer.clock.Now),
	)
	if parseErr != nil {
		return "", classifyParseError(parseErr)
	}
	claims, ok := parsedToken.Claims.(*AccessTokenClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("access_token.verify: %w", ErrAccessTokenInvalid)
	}
	return claims.Subject, nil
}

// VerifyForRotation checks signature, issuer, audience, and subject but
// deliberately skips the expiry check: rotation's primary trigger is an
// expired access token paired with a still-valid refresh token.
func (signer *Signer) VerifyForRotation(accessToken string) (string, error) {
	parsedToken, parseErr := jwt.ParseWithClaims(accessToken, &AccessTokenClaims{}, signer.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if parseErr != nil {
		return "", classifyParseError(parseErr)
	}
	claims, ok := parsedToken.Claims.(*AccessTokenClaims)
	if !ok {
		return "", fmt.Errorf("access_token.rotate_verify: %w", ErrAccessTokenInvalid)
	}
	if claims.Issuer != signer.issuer {
		return "", fmt.Errorf("access_token.rotate_verify: %w", ErrAccessTokenInvalid)
	}
	if !containsAudience(claims.Audience, signer.audience) {
		return "", fmt.Errorf("access_token.rotate_verify: %w", ErrAccessTokenInvalid)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("access_token.rotate_verify: %w", ErrAccessTokenInvalid)
	}
	return claims.Subject, nil
}

func (signer *Signer) keyFunc(parsed *jwt.Token) (interface{}, error) {
	return signer.signingSecret, nil
}

func classifyParseError(parseErr error) error {
	switch {
	case errors.Is(parseErr, jwt.ErrTokenMalformed):
		return fmt.Errorf("access_token.verify: %w", ErrAccessTokenMalformed)
	// A forged token can be both unsigned-by-us and expired; the signature
	// verdict wins over the lifetime verdict.
	case errors.Is(parseErr, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("access_token.verify: %w", ErrAccessTokenInvalid)
	case errors.Is(parseErr, jwt.ErrTokenExpired):
		return fmt.Errorf("access_token.verify: %w", ErrAccessTokenExpired)
	default:
		return fmt.Errorf("access_token.verify: %w", ErrAccessTokenInvalid)
	}
}

func containsAudience(audience jwt.ClaimStrings, expected string) bool {
	for _, candidate := range audience {
		if candidate == expected {
			return true
		}
	}
	return false
}
