package tokenkit

import (
	"context"

	"go.uber.org/zap"
)

// RevokeOne removes the single device session identified by the refresh
// token. Idempotent: revoking an absent or already-revoked token succeeds
// silently.
func (service *Service) RevokeOne(ctx context.Context, userID string, refreshToken string) error {
	tokenHash := HashRefreshOpaque(refreshToken)
	storeCtx, cancel := service.storeContext(ctx)
	defer cancel()
	if deleteErr := service.store.DeleteOne(storeCtx, userID, tokenHash); deleteErr != nil {
		service.logger.Warn("refresh token delete failed",
			zap.String("code", "revoke_one.store_delete"),
			zap.String("user_id", userID),
			zap.Error(deleteErr))
		return service.classifyStoreError(deleteErr)
	}
	service.increment(MetricRevokeOne)
	return nil
}

// RevokeAll removes every device session for the user. After it returns
// successfully no previously issued refresh token for that user can rotate.
func (service *Service) RevokeAll(ctx context.Context, userID string) error {
	storeCtx, cancel := service.storeContext(ctx)
	defer cancel()
	removed, deleteErr := service.store.DeleteAll(storeCtx, userID)
	if deleteErr != nil {
		service.logger.Warn("refresh token mass delete failed",
			zap.String("code", "revoke_all.store_delete"),
			zap.String("user_id", userID),
			zap.Error(deleteErr))
		return service.classifyStoreError(deleteErr)
	}
	service.increment(MetricRevokeAll)
	service.logger.Info("all device sessions revoked",
		zap.String("code", "revoke_all.done"),
		zap.String("user_id", userID),
		zap.Int64("removed", removed))
	return nil
}
