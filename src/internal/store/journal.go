package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// JournalEntry records one sync flow attempt, successful or not.
// The journal is append-only; entries are keyed by timestamp so a
// cursor walk from the end yields the most recent attempts.
type JournalEntry struct {
	ID      uuid.UUID `json:"id"`
	Flow    string    `json:"flow"`
	OrderID string    `json:"order_id,omitempty"`
	Success bool      `json:"success"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AppendJournal persists a sync attempt record.
func (s *Store) AppendJournal(entry *JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize journal entry: %w", err)
	}

	// RFC3339Nano keys sort chronologically; the UUID suffix breaks
	// ties between entries written in the same nanosecond.
	key := []byte(entry.At.Format(time.RFC3339Nano) + "/" + entry.ID.String())

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketJournal).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// RecentJournal returns up to n of the most recent sync attempts,
// newest first.
func (s *Store) RecentJournal(n int) ([]JournalEntry, error) {
	if n < 1 {
		return nil, nil
	}

	var entries []JournalEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketJournal).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var entry JournalEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				s.logger.Warn("msg", "Skipping corrupt journal entry",
					"component", "store",
					"error", err)
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
