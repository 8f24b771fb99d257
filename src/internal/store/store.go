package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lixenwraith/log"
	"go.etcd.io/bbolt"
)

// Bucket layout. Settings live as one serialized blob under a fixed
// key; registrations and journal entries are JSON values keyed by ID.
var (
	bucketSettings      = []byte("settings")
	bucketRegistrations = []byte("registrations")
	bucketJournal       = []byte("journal")

	settingsKey = []byte("integration_settings")
)

// Store wraps the embedded bbolt database holding everything the
// service persists locally: the settings blob, event registration
// records and the sync journal.
type Store struct {
	db     *bbolt.DB
	path   string
	logger *log.Logger
}

// Open creates or opens the database file, creating parent directories
// and the buckets on first use.
func Open(path string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSettings, bucketRegistrations, bucketJournal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("msg", "Store opened",
		"component", "store",
		"path", path)

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSettingsBlob returns the serialized settings bag, or nil when no
// settings have been written yet.
func (s *Store) GetSettingsBlob() ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketSettings).Get(settingsKey)
		if value != nil {
			blob = make([]byte, len(value))
			copy(blob, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read settings blob: %w", err)
	}
	return blob, nil
}

// PutSettingsBlob replaces the serialized settings bag.
func (s *Store) PutSettingsBlob(data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(settingsKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write settings blob: %w", err)
	}
	return nil
}

// DeleteSettingsBlob removes the stored settings, reverting the bag to
// schema defaults on next load.
func (s *Store) DeleteSettingsBlob() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete(settingsKey)
	})
	if err != nil {
		return fmt.Errorf("failed to delete settings blob: %w", err)
	}
	return nil
}

// GetStats returns store statistics.
func (s *Store) GetStats() map[string]any {
	stats := map[string]any{
		"path": s.path,
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		stats["registrations"] = tx.Bucket(bucketRegistrations).Stats().KeyN
		stats["journal_entries"] = tx.Bucket(bucketJournal).Stats().KeyN
		stats["settings_present"] = tx.Bucket(bucketSettings).Get(settingsKey) != nil
		return nil
	})
	if err != nil {
		stats["error"] = err.Error()
	}

	if info, err := os.Stat(s.path); err == nil {
		stats["size_bytes"] = info.Size()
	}

	return stats
}
