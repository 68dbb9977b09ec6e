package fanout

import (
	"context"

	"threadcast/pkg/logger"
	"threadcast/pkg/metrics"
	"threadcast/pkg/models"
)

// Cleanup removes the subscription of every connection reported gone by a
// dispatch. It is best-effort: errors are logged and swallowed so cleanup
// can never fail the action that triggered it.
func (d *Dispatcher) Cleanup(ctx context.Context, key models.ThreadKey, connectionIDs []string) {
	for _, id := range connectionIDs {
		removed, err := d.log.Unfollow(ctx, key, "", id)
		if err != nil {
			logger.Warn("cleanup_unfollow_failed", "thread", string(key), "connection", id, "error", err)
			continue
		}
		if removed != nil {
			metrics.CleanupRemovals.Inc()
			logger.Info("cleanup_unfollowed", "thread", string(key), "connection", id, "user", removed.Follow.UserID)
		}
	}
}
