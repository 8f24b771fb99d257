package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// Registration is a local record of an event registration pushed to
// LGL, kept so operators can audit what was synced without querying
// the remote API.
type Registration struct {
	ID            uuid.UUID `json:"id"`
	OrderID       string    `json:"order_id,omitempty"`
	ConstituentID int       `json:"constituent_id"`
	EventID       int       `json:"event_id"`
	Attendee      string    `json:"attendee"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateRegistration assigns an ID and persists the record.
func (s *Store) CreateRegistration(reg *Registration) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to serialize registration: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegistrations).Put([]byte(reg.ID.String()), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store registration: %w", err)
	}

	s.logger.Debug("msg", "Registration stored",
		"component", "store",
		"registration_id", reg.ID.String(),
		"event_id", reg.EventID)

	return nil
}

// GetRegistration looks up one record by ID. Returns (nil, nil) when
// the ID is unknown.
func (s *Store) GetRegistration(id uuid.UUID) (*Registration, error) {
	var reg *Registration
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRegistrations).Get([]byte(id.String()))
		if data == nil {
			return nil
		}
		reg = &Registration{}
		return json.Unmarshal(data, reg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read registration: %w", err)
	}
	return reg, nil
}

// ListRegistrations returns all stored registration records, newest
// first.
func (s *Store) ListRegistrations() ([]Registration, error) {
	var regs []Registration
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegistrations).ForEach(func(_, value []byte) error {
			var reg Registration
			if err := json.Unmarshal(value, &reg); err != nil {
				// Skip corrupt rows rather than failing the listing
				s.logger.Warn("msg", "Skipping corrupt registration record",
					"component", "store",
					"error", err)
				return nil
			}
			regs = append(regs, reg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	// Bucket iteration is keyed by UUID string, not insertion time
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
	return regs, nil
}
