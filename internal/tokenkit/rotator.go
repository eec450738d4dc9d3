package tokenkit

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Rotate exchanges a presented token pair for a fresh one. The access token
// must be attributable to a user (signature, issuer, audience, subject) but
// may be expired; liveness is decided by the refresh token alone. The
// presented refresh token is consumed atomically: replaying it, or racing two
// Rotate calls with the same pair, leaves exactly one winner and fails the
// rest with ErrRefreshTokenInvalid.
func (service *Service) Rotate(ctx context.Context, pair TokenPair) (TokenPair, error) {
	userID, verifyErr := service.signer.VerifyForRotation(pair.AccessToken)
	if verifyErr != nil {
		service.increment(MetricRotateAccessDenied)
		return TokenPair{}, verifyErr
	}

	nextOpaque, nextTokenHash, randomErr := GenerateRefreshOpaque()
	if randomErr != nil {
		service.increment(MetricRotateFailure)
		return TokenPair{}, randomErr
	}

	currentTokenHash := HashRefreshOpaque(pair.RefreshToken)
	expiresAt := service.clock.Now().Add(service.refreshTTL)

	storeCtx, cancel := service.storeContext(ctx)
	defer cancel()
	if replaceErr := service.store.Replace(storeCtx, userID, currentTokenHash, nextTokenHash, expiresAt); replaceErr != nil {
		if errors.Is(replaceErr, ErrRefreshTokenInvalid) {
			// Absent, expired, or already rotated: normal expiry, a replay,
			// or forgery. The caller must re-authenticate, never retry.
			service.increment(MetricRotateRefreshDenied)
			service.logger.Info("refresh token rejected",
				zap.String("code", "rotate.refresh_rejected"),
				zap.String("user_id", userID))
			return TokenPair{}, replaceErr
		}
		service.increment(MetricRotateFailure)
		service.logger.Warn("refresh token replace failed",
			zap.String("code", "rotate.store_replace"),
			zap.String("user_id", userID),
			zap.Error(replaceErr))
		return TokenPair{}, service.classifyStoreError(replaceErr)
	}

	accessToken, signErr := service.signer.Sign(userID)
	if signErr != nil {
		// The old token is already consumed; drop the successor rather than
		// leave a pair the caller never received.
		_ = service.store.DeleteOne(storeCtx, userID, nextTokenHash)
		service.increment(MetricRotateFailure)
		return TokenPair{}, signErr
	}

	service.increment(MetricRotateSuccess)
	return TokenPair{AccessToken: accessToken, RefreshToken: nextOpaque}, nil
}
