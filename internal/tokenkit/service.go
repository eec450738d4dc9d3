package tokenkit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var errNilRefreshTokenStore = errors.New("service.nil_refresh_token_store")

// TokenPair is the unit exchanged with callers: a signed access token and an
// opaque refresh token. The store establishes the binding between the two.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service drives the token pair lifecycle: issuance, single-use rotation,
// revocation, and stateless access-token verification.
type Service struct {
	signer       *Signer
	store        RefreshTokenStore
	refreshTTL   time.Duration
	storeTimeout time.Duration
	clock        Clock
	logger       *zap.Logger
	metrics      MetricsRecorder
}

// NewService wires the signer and refresh token store into a Service.
func NewService(configuration Config, store RefreshTokenStore, clock Clock, logger *zap.Logger, metrics MetricsRecorder) (*Service, error) {
	if store == nil {
		return nil, errNilRefreshTokenStore
	}
	if configuration.RefreshTokenTTL <= 0 {
		return nil, errNonPositiveTTL
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	signer, signerErr := NewSigner(configuration, clock)
	if signerErr != nil {
		return nil, signerErr
	}
	return &Service{
		signer:       signer,
		store:        store,
		refreshTTL:   configuration.RefreshTokenTTL,
		storeTimeout: configuration.StoreTimeout,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// VerifyAccessToken validates signature, issuer, audience, and expiry, and
// returns the subject user id. No store round trip.
func (service *Service) VerifyAccessToken(accessToken string) (string, error) {
	return service.signer.Verify(accessToken)
}

// AttributeAccessToken returns the subject user id while tolerating an
// expired token, for flows where liveness comes from the refresh token.
func (service *Service) AttributeAccessToken(accessToken string) (string, error) {
	return service.signer.VerifyForRotation(accessToken)
}

func (service *Service) increment(event string) {
	if service.metrics != nil {
		service.metrics.Increment(event)
	}
}

// storeContext bounds a store round trip so an unreachable backend surfaces
// as ErrStoreUnavailable instead of hanging the caller.
func (service *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if service.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, service.storeTimeout)
}

// classifyStoreError keeps ErrRefreshTokenInvalid intact and folds every
// other store failure into ErrStoreUnavailable.
func (service *Service) classifyStoreError(storeErr error) error {
	if errors.Is(storeErr, ErrRefreshTokenInvalid) {
		return storeErr
	}
	service.increment(MetricStoreUnavailable)
	return errors.Join(ErrStoreUnavailable, storeErr)
}
