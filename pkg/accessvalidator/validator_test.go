package accessvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

var testIssuedAt = time.Unix(1700000000, 0).UTC()

func newTestValidator(t *testing.T, clock Clock) *Validator {
	t.Helper()
	validator, err := New(Config{
		SigningSecret: []byte("shared-signing-secret"),
		Issuer:        "tokenpair-test",
		Audience:      "tokenpair-clients",
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	return validator
}

func mintToken(t *testing.T, secret string, issuer string, audience string, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(testIssuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        "token-id-1",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestNewValidatesConfiguration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(config *Config)
		wantErr error
	}{
		{"missing secret", func(config *Config) { config.SigningSecret = nil }, ErrMissingSigningSecret},
		{"missing issuer", func(config *Config) { config.Issuer = " " }, ErrMissingIssuer},
		{"missing audience", func(config *Config) { config.Audience = "" }, ErrMissingAudience},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			configuration := Config{
				SigningSecret: []byte("shared-signing-secret"),
				Issuer:        "tokenpair-test",
				Audience:      "tokenpair-clients",
			}
			testCase.mutate(&configuration)
			if _, err := New(configuration); !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	clock := fixedClock{current: testIssuedAt}
	validator := newTestValidator(t, clock)

	token := mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "user-1", testIssuedAt.Add(time.Minute))
	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if claims.GetUserID() != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.GetUserID())
	}
	if claims.GetTokenID() == "" {
		t.Fatalf("expected a token id")
	}
	if !claims.GetExpiresAt().Equal(testIssuedAt.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestValidateTokenRejections(t *testing.T) {
	t.Parallel()

	clock := fixedClock{current: testIssuedAt}
	validator := newTestValidator(t, clock)
	futureExpiry := testIssuedAt.Add(time.Minute)

	testCases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty token", "  ", ErrMissingToken},
		{"malformed token", "not.a.jwt", ErrInvalidToken},
		{"forged signature", mintToken(t, "another-secret", "tokenpair-test", "tokenpair-clients", "user-1", futureExpiry), ErrInvalidToken},
		{"foreign issuer", mintToken(t, "shared-signing-secret", "someone-else", "tokenpair-clients", "user-1", futureExpiry), ErrInvalidToken},
		{"foreign audience", mintToken(t, "shared-signing-secret", "tokenpair-test", "other-clients", "user-1", futureExpiry), ErrInvalidToken},
		{"empty subject", mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "", futureExpiry), ErrInvalidToken},
		{"expired", mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "user-1", testIssuedAt.Add(-time.Minute)), ErrTokenExpired},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if _, err := validator.ValidateToken(testCase.token); !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestValidateTokenHonorsInjectedClock(t *testing.T) {
	t.Parallel()

	token := mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "user-1", testIssuedAt.Add(time.Minute))

	fresh := newTestValidator(t, fixedClock{current: testIssuedAt})
	if _, err := fresh.ValidateToken(token); err != nil {
		t.Fatalf("expected token to be valid at issuance, got %v", err)
	}

	later := newTestValidator(t, fixedClock{current: testIssuedAt.Add(2 * time.Minute)})
	if _, err := later.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past the ttl, got %v", err)
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t, fixedClock{current: testIssuedAt})
	token := mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "user-1", testIssuedAt.Add(time.Minute))

	request := httptest.NewRequest(http.MethodGet, "/resource", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if claims.GetUserID() != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.GetUserID())
	}

	bare := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if _, err := validator.ValidateRequest(bare); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken without a header, got %v", err)
	}

	basic := httptest.NewRequest(http.MethodGet, "/resource", nil)
	basic.Header.Set("Authorization", "Basic "+token)
	if _, err := validator.ValidateRequest(basic); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken for non-bearer scheme, got %v", err)
	}
}

func TestGinMiddleware(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	validator := newTestValidator(t, fixedClock{current: testIssuedAt})
	token := mintToken(t, "shared-signing-secret", "tokenpair-test", "tokenpair-clients", "user-1", testIssuedAt.Add(time.Minute))

	router := gin.New()
	router.GET("/guarded", validator.GinMiddleware(""), func(contextGin *gin.Context) {
		contextGin.String(http.StatusOK, contextGin.GetString(DefaultContextKey))
	})

	accepted := httptest.NewRecorder()
	authorized := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	authorized.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(accepted, authorized)
	if accepted.Code != http.StatusOK || accepted.Body.String() != "user-1" {
		t.Fatalf("expected injected user id, got %d %q", accepted.Code, accepted.Body.String())
	}

	rejected := httptest.NewRecorder()
	router.ServeHTTP(rejected, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	if rejected.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rejected.Code)
	}
}
