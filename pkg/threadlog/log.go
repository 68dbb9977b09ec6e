// Package threadlog is the domain layer over the event store: typed event
// access, follower listing and thread status derivation for one thread.
package threadlog

import (
	"context"
	"fmt"

	"threadcast/pkg/models"
	"threadcast/pkg/store"
)

// Log exposes thread-scoped operations over the event store.
type Log struct {
	store *store.Store
}

// New builds a Log over an opened store.
func New(s *store.Store) *Log {
	return &Log{store: s}
}

// QueryOptions mirrors the store's range query knobs.
type QueryOptions struct {
	Ascending bool
	Limit     int
	Filter    func(models.ThreadEvent) bool
}

// Events returns the decoded events of a thread ordered by time. Rows the
// codec does not recognize are dropped, never surfaced as errors.
func (l *Log) Events(ctx context.Context, key models.ThreadKey, opts QueryOptions) ([]models.ThreadEvent, error) {
	return l.store.Query(ctx, key, store.QueryOptions{
		Ascending: opts.Ascending,
		Limit:     opts.Limit,
		Filter:    opts.Filter,
	})
}

// FollowerFilter narrows a follower listing. Empty fields match anything.
type FollowerFilter struct {
	UserID       string
	ConnectionID string
}

// Followers lists the live follow events of a thread, the subscription's
// sole source of truth.
func (l *Log) Followers(ctx context.Context, key models.ThreadKey, filter FollowerFilter) ([]models.FollowEvent, error) {
	events, err := l.store.Query(ctx, key, store.QueryOptions{
		Ascending: true,
		Filter: func(e models.ThreadEvent) bool {
			f, ok := e.Payload.(models.Follow)
			if !ok {
				return false
			}
			if filter.UserID != "" && f.UserID != filter.UserID {
				return false
			}
			if filter.ConnectionID != "" && f.ConnectionID != filter.ConnectionID {
				return false
			}
			return true
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	out := make([]models.FollowEvent, 0, len(events))
	for _, e := range events {
		if f, ok := models.AsFollow(e); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// AddEvent appends one event to the thread, assigning its time.
func (l *Log) AddEvent(ctx context.Context, key models.ThreadKey, p models.Payload) (models.ThreadEvent, error) {
	return l.store.Append(ctx, models.ThreadEvent{ThreadKey: key, Payload: p})
}

// AddEvents appends a batch with distinct, ordered times in one round trip.
// Events carry their own thread key so imported history may target other
// threads than the acting one.
func (l *Log) AddEvents(ctx context.Context, events []models.ThreadEvent) ([]models.ThreadEvent, error) {
	return l.store.AppendBatch(ctx, events)
}

// RemoveEvent deletes one row by full key. Used exclusively to retract
// follow events.
func (l *Log) RemoveEvent(ctx context.Context, key models.ThreadKey, eventTime int64) error {
	return l.store.Remove(ctx, key, eventTime)
}
