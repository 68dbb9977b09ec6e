package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"threadcast/pkg/logger"
	"threadcast/pkg/metrics"
	"threadcast/pkg/models"
)

// Store is the event log backend. It owns the ordering and uniqueness of
// (threadKey, time) pairs over a single Pebble keyspace. A handle is
// constructed once at startup and passed to the components that need it.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	logger.Info("pebble_opened", "path", path)
	s := &Store{db: db, path: path}
	if err := s.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

// Append writes one event, assigning the current millisecond as its time
// when the caller did not set one. The stored event is returned with its
// final time.
func (s *Store) Append(ctx context.Context, e models.ThreadEvent) (models.ThreadEvent, error) {
	if s.db == nil {
		return models.ThreadEvent{}, fmt.Errorf("store not opened")
	}
	if e.Time == 0 {
		e.Time = time.Now().UnixMilli()
	}
	data, err := e.MarshalJSON()
	if err != nil {
		return models.ThreadEvent{}, fmt.Errorf("marshal event: %w", err)
	}
	key := eventKey(e.ThreadKey, e.Time)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("append_failed", "thread", string(e.ThreadKey), "time", e.Time, "error", err)
		return models.ThreadEvent{}, fmt.Errorf("append event: %w", err)
	}
	metrics.EventsAppended.Inc()
	logger.Debug("event_appended", "thread", string(e.ThreadKey), "time", e.Time, "type", e.Payload.Kind())
	return e, nil
}

// AppendBatch writes a batch of events with collision-free times (see
// assignUniqueTimes) as a single Pebble write batch. The returned slice
// preserves the input order, with final times filled in. Events may target
// different threads; uniqueness is enforced across the whole batch.
func (s *Store) AppendBatch(ctx context.Context, events []models.ThreadEvent) ([]models.ThreadEvent, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	if len(events) == 0 {
		return nil, nil
	}
	out := make([]models.ThreadEvent, len(events))
	copy(out, events)
	assignUniqueTimes(out, time.Now().UnixMilli())

	wb := new(pebble.Batch)
	for _, e := range out {
		data, err := e.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		if err := wb.Set(eventKey(e.ThreadKey, e.Time), data, nil); err != nil {
			return nil, fmt.Errorf("batch set: %w", err)
		}
	}
	if err := s.db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("append_batch_failed", "count", len(out), "error", err)
		return nil, fmt.Errorf("append batch: %w", err)
	}
	metrics.EventsAppended.Add(float64(len(out)))
	return out, nil
}

// QueryOptions restricts and orders a partition range query.
type QueryOptions struct {
	Ascending bool
	Limit     int
	// Filter keeps only matching events. Applied after decoding, before
	// the limit.
	Filter func(models.ThreadEvent) bool
	// IncludeExpired disables the follow-expiry read filter. Used by the
	// retention sweeper.
	IncludeExpired bool
}

// Query returns the events of one thread ordered by time. Rows that fail
// to decode are dropped silently: unknown future event shapes must not
// break the read path of an existing deployment.
func (s *Store) Query(ctx context.Context, key models.ThreadKey, opts QueryOptions) ([]models.ThreadEvent, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	prefix := threadPrefix(key)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", string(key), err)
	}
	defer iter.Close()

	nowSec := time.Now().Unix()
	var out []models.ThreadEvent
	step := func() bool { return iter.Next() }
	ok := iter.First()
	if !opts.Ascending {
		ok = iter.Last()
		step = func() bool { return iter.Prev() }
	}
	for ; ok; ok = step() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		e, decoded := models.DecodeEvent(iter.Value())
		if !decoded {
			logger.Debug("query_dropped_row", "thread", string(key), "key", string(iter.Key()))
			continue
		}
		if !opts.IncludeExpired && isExpired(e, nowSec) {
			continue
		}
		if opts.Filter != nil && !opts.Filter(e) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("query %s: %w", string(key), err)
	}
	return out, nil
}

// Remove deletes exactly one row by its full (threadKey, time) key.
// Removing an absent row is not an error.
func (s *Store) Remove(ctx context.Context, key models.ThreadKey, eventTime int64) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	if err := s.db.Delete(eventKey(key, eventTime), pebble.Sync); err != nil {
		logger.Error("remove_failed", "thread", string(key), "time", eventTime, "error", err)
		return fmt.Errorf("remove event: %w", err)
	}
	metrics.EventsRemoved.Inc()
	return nil
}

// isExpired reports whether a follow row has outlived its TTL deadline.
// Only follow events carry one; everything else is immutable and kept.
func isExpired(e models.ThreadEvent, nowSec int64) bool {
	f, ok := e.Payload.(models.Follow)
	if !ok {
		return false
	}
	return f.Expires > 0 && f.Expires <= nowSec
}
