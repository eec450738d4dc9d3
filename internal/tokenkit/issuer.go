package tokenkit

import (
	"context"

	"go.uber.org/zap"
)

// Issue mints a token pair for an already-authenticated user: a signed access
// token plus a fresh opaque refresh token persisted for the refresh TTL.
// Called on successful registration and successful login; each call opens one
// more device session for the user.
func (service *Service) Issue(ctx context.Context, userID string) (TokenPair, error) {
	accessToken, signErr := service.signer.Sign(userID)
	if signErr != nil {
		service.increment(MetricIssueFailure)
		return TokenPair{}, signErr
	}

	refreshOpaque, tokenHash, randomErr := GenerateRefreshOpaque()
	if randomErr != nil {
		service.increment(MetricIssueFailure)
		return TokenPair{}, randomErr
	}

	expiresAt := service.clock.Now().Add(service.refreshTTL)
	storeCtx, cancel := service.storeContext(ctx)
	defer cancel()
	if insertErr := service.store.Insert(storeCtx, userID, tokenHash, expiresAt); insertErr != nil {
		service.increment(MetricIssueFailure)
		service.logger.Warn("refresh token insert failed",
			zap.String("code", "issue.store_insert"),
			zap.String("user_id", userID),
			zap.Error(insertErr))
		return TokenPair{}, service.classifyStoreError(insertErr)
	}

	service.increment(MetricIssueSuccess)
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshOpaque}, nil
}
