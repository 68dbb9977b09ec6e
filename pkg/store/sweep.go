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

// SweepExpired deletes follow rows whose TTL deadline has passed. Pebble
// has no native row expiry, so the read path filters expired rows and this
// sweep reclaims them for real. Returns the number of rows deleted.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store not opened")
	}
	prefix := []byte("thread:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	nowSec := time.Now().Unix()
	var doomed [][]byte
	for ok := iter.First(); ok; ok = iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		e, decoded := models.DecodeEvent(iter.Value())
		if !decoded || !isExpired(e, nowSec) {
			continue
		}
		doomed = append(doomed, append([]byte(nil), iter.Key()...))
	}
	ierr := iter.Error()
	_ = iter.Close()
	if ierr != nil {
		return 0, fmt.Errorf("sweep: %w", ierr)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	wb := new(pebble.Batch)
	for _, k := range doomed {
		if err := wb.Delete(k, nil); err != nil {
			return 0, fmt.Errorf("sweep delete: %w", err)
		}
	}
	if err := s.db.Apply(wb, pebble.Sync); err != nil {
		return 0, fmt.Errorf("sweep apply: %w", err)
	}
	metrics.ExpiredSwept.Add(float64(len(doomed)))
	logger.Info("expired_follows_swept", "count", len(doomed))
	return len(doomed), nil
}
