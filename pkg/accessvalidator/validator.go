// Package accessvalidator validates access tokens issued by the tokenpair
// service. Resource services embed it to authenticate requests without a
// store round trip: validity is decided purely by the token's signature and
// embedded expiry.
package accessvalidator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Validator.
type Config struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	Clock         Clock
}

// DefaultContextKey is used by GinMiddleware when no explicit key is provided.
const DefaultContextKey = "auth_user_id"

// Sentinel errors exposed by the validator.
var (
	ErrMissingSigningSecret = errors.New("access.validator.missing_signing_secret")
	ErrMissingIssuer        = errors.New("access.validator.missing_issuer")
	ErrMissingAudience      = errors.New("access.validator.missing_audience")
	ErrMissingToken         = errors.New("access.validator.missing_token")
	ErrInvalidToken         = errors.New("access.validator.invalid_token")
	ErrTokenExpired         = errors.New("access.validator.expired")
)

// Claims is the access token claim set: subject, issuer, audience, token id,
// and expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// GetUserID returns the subject user identifier.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// GetTokenID returns the unique per-issuance token id.
func (claims *Claims) GetTokenID() string {
	if claims == nil {
		return ""
	}
	return claims.ID
}

// GetExpiresAt returns the expiry timestamp.
func (claims *Claims) GetExpiresAt() time.Time {
	if claims == nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Validator validates tokenpair access tokens.
type Validator struct {
	signingSecret []byte
	issuer        string
	audience      string
	clock         Clock
}

// New constructs a Validator after validating the supplied configuration.
func New(configuration Config) (*Validator, error) {
	if len(configuration.SigningSecret) == 0 {
		return nil, fmt.Errorf("access.validator.new: %w", ErrMissingSigningSecret)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("access.validator.new: %w", ErrMissingIssuer)
	}
	if strings.TrimSpace(configuration.Audience) == "" {
		return nil, fmt.Errorf("access.validator.new: %w", ErrMissingAudience)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Validator{
		signingSecret: configuration.SigningSecret,
		issuer:        configuration.Issuer,
		audience:      configuration.Audience,
		clock:         clock,
	}, nil
}

// ValidateToken validates the provided access token and returns its claims.
func (validator *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("access.validator.validate_token: %w", ErrMissingToken)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return validator.signingSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(validator.issuer),
		jwt.WithAudience(validator.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time {
			return validator.clock.Now()
		}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) && !errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("access.validator.validate_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("access.validator.validate_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("access.validator.validate_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("access.validator.validate_token: %w", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRequest reads the Authorization header from the request and
// validates the Bearer token.
func (validator *Validator) ValidateRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("access.validator.validate_request: %w", ErrMissingToken)
	}
	headerValue := request.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(headerValue, prefix) {
		return nil, fmt.Errorf("access.validator.validate_request: %w", ErrMissingToken)
	}
	return validator.ValidateToken(strings.TrimSpace(strings.TrimPrefix(headerValue, prefix)))
}

// GinMiddleware returns a Gin middleware that validates the Bearer token and
// injects the subject user id.
func (validator *Validator) GinMiddleware(contextKey string) gin.HandlerFunc {
	if strings.TrimSpace(contextKey) == "" {
		contextKey = DefaultContextKey
	}
	return func(contextGin *gin.Context) {
		claims, err := validator.ValidateRequest(contextGin.Request)
		if err != nil {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Set(contextKey, claims.GetUserID())
		contextGin.Next()
	}
}
