package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"threadcast/pkg/logger"
)

// schemaVersionKey sits outside the thread: keyspace so range scans and
// the retention sweeper never see it.
const schemaVersionKey = "system:schema_version"

// schemaVersion is the row shape this build writes. Readers tolerate
// unknown event kinds, so a newer stamp downgrades to a warning.
const schemaVersion = "1"

// ensureSchemaVersion stamps a fresh database and checks an existing one.
func (s *Store) ensureSchemaVersion() error {
	val, closer, err := s.db.Get([]byte(schemaVersionKey))
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		if err := s.db.Set([]byte(schemaVersionKey), []byte(schemaVersion), pebble.Sync); err != nil {
			return fmt.Errorf("stamp schema version: %w", err)
		}
		logger.Info("schema_version_stamped", "version", schemaVersion)
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}
	stored := string(val)
	_ = closer.Close()
	if stored != schemaVersion {
		logger.Warn("schema_version_mismatch", "stored", stored, "running", schemaVersion)
	}
	return nil
}
