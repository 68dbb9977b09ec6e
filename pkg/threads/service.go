// Package threads implements the thread actions exposed to connections:
// open, close, message, follow, unfollow and status. Each action mutates
// the log first, then fans out to followers and reconciles subscriptions.
package threads

import (
	"context"
	"errors"
	"time"

	"threadcast/pkg/fanout"
	"threadcast/pkg/models"
	"threadcast/pkg/threadlog"
)

// ErrForbidden marks an action the caller lacks the right to perform.
var ErrForbidden = errors.New("forbidden")

// ErrSkipped marks a deliberate no-op (thread already open, unfollow of a
// missing subscription). Callers report it as success at a lower severity.
var ErrSkipped = errors.New("operation skipped")

// Caller is the authenticated context of one inbound action. Values are
// supplied already verified by the entry layer and trusted as given.
type Caller struct {
	ConnectionID  string
	UserID        string
	ParticipantID string
	ItemID        string
	IsMine        bool
	CanWatch      bool
	CanWrite      bool
}

// ThreadKey derives the caller's thread partition key.
func (c Caller) ThreadKey() models.ThreadKey {
	return models.NewThreadKey(c.ParticipantID, c.ItemID)
}

// Options tune the service.
type Options struct {
	// ReplayLimit caps how many recent events are replayed on (re)connect.
	ReplayLimit int
	// FollowTTL bounds subscription lifetime. Zero means the default.
	FollowTTL time.Duration
}

// Service composes the thread log and the fan-out dispatcher.
type Service struct {
	log         *threadlog.Log
	fan         *fanout.Dispatcher
	replayLimit int
	followTTL   time.Duration
}

// NewService builds a Service.
func NewService(log *threadlog.Log, fan *fanout.Dispatcher, opts Options) *Service {
	limit := opts.ReplayLimit
	if limit <= 0 {
		limit = 20
	}
	ttl := opts.FollowTTL
	if ttl <= 0 {
		ttl = threadlog.DefaultFollowTTL
	}
	return &Service{log: log, fan: fan, replayLimit: limit, followTTL: ttl}
}

// recent returns the newest events of the thread, most recent first.
func (s *Service) recent(ctx context.Context, key models.ThreadKey) ([]models.ThreadEvent, error) {
	return s.log.Events(ctx, key, threadlog.QueryOptions{Ascending: false, Limit: s.replayLimit})
}
