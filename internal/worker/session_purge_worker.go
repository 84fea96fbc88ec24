package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/delivery-issue-service/internal/service"
)

// StartSessionPurge runs a background ticker that deletes expired and revoked
// refresh tokens. Stops when ctx is cancelled.
func StartSessionPurge(ctx context.Context, authService *service.AuthService, logger *zap.Logger, interval time.Duration) {
	if authService == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := authService.PurgeExpiredSessions(ctx)
				if err != nil {
					logger.Warn("session purge failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					logger.Info("purged expired sessions", zap.Int64("count", purged))
				}
			}
		}
	}()
}
