package threadlog

import (
	"context"
	"fmt"
	"time"

	"threadcast/pkg/logger"
	"threadcast/pkg/models"
)

// DefaultFollowTTL bounds the lifetime of a subscription independently of
// explicit unfollow, so a missed cleanup cannot leak a row forever.
const DefaultFollowTTL = 12 * time.Hour

// NewFollow builds a follow payload with an expiry deadline ttl from now.
func NewFollow(userID, connectionID string, ttl time.Duration) models.Follow {
	if ttl <= 0 {
		ttl = DefaultFollowTTL
	}
	return models.Follow{
		UserID:       userID,
		ConnectionID: connectionID,
		Expires:      time.Now().Add(ttl).Unix(),
	}
}

// Follow subscribes a connection to the thread. Re-following with the same
// (connection, user) pair reuses the existing row instead of creating a
// duplicate, so a reconnect race cannot double-subscribe. Returns the
// effective follow event and whether a new row was created.
func (l *Log) Follow(ctx context.Context, key models.ThreadKey, userID, connectionID string, ttl time.Duration) (models.FollowEvent, bool, error) {
	existing, err := l.Followers(ctx, key, FollowerFilter{UserID: userID, ConnectionID: connectionID})
	if err != nil {
		return models.FollowEvent{}, false, fmt.Errorf("follow: %w", err)
	}
	if len(existing) > 0 {
		logger.Debug("follow_reused", "thread", string(key), "connection", connectionID, "time", existing[0].Time)
		return existing[0], false, nil
	}
	e, err := l.AddEvent(ctx, key, NewFollow(userID, connectionID, ttl))
	if err != nil {
		return models.FollowEvent{}, false, fmt.Errorf("follow: %w", err)
	}
	f, _ := models.AsFollow(e)
	return f, true, nil
}

// Unfollow retracts a connection's subscription. When userID is empty the
// lookup matches on connection alone (delivery-failure cleanup has no user
// at hand). An absent subscription is a no-op, not an error: a connection
// may unfollow more than once, or race with row expiry. Returns the
// removed follow event, or nil when nothing was removed.
func (l *Log) Unfollow(ctx context.Context, key models.ThreadKey, userID, connectionID string) (*models.FollowEvent, error) {
	found, err := l.Followers(ctx, key, FollowerFilter{UserID: userID, ConnectionID: connectionID})
	if err != nil {
		return nil, fmt.Errorf("unfollow: %w", err)
	}
	if len(found) == 0 {
		logger.Debug("unfollow_noop", "thread", string(key), "connection", connectionID)
		return nil, nil
	}
	removed := found[0]
	if err := l.RemoveEvent(ctx, key, removed.Time); err != nil {
		return nil, fmt.Errorf("unfollow: %w", err)
	}
	return &removed, nil
}
