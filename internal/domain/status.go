package domain

import (
	"context"
	"time"
)

// Status is the self-reported location of a team member
type Status string

const (
	StatusSlotA   Status = "4"
	StatusSlotB   Status = "8"
	StatusHome    Status = "Home"
	StatusUnknown Status = "Unknown"
)

// StatusTable is the key the change feed uses for the status table
const StatusTable = "people_status"

// SelectableStatuses lists the statuses a user may pick, in display order
func SelectableStatuses() []Status {
	return []Status{StatusSlotA, StatusSlotB, StatusHome}
}

// Valid reports whether s may be stored
func (s Status) Valid() bool {
	return s == StatusUnknown || s.Selectable()
}

// Selectable reports whether a user may set s. Unknown is system-only.
func (s Status) Selectable() bool {
	switch s {
	case StatusSlotA, StatusSlotB, StatusHome:
		return true
	}
	return false
}

// StatusRecord is one row of the board
type StatusRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"display_name"`
	Status    Status    `json:"current_status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusRepository defines the interface for status storage.
// Get* methods return (nil, nil) when the record does not exist.
type StatusRepository interface {
	// Register inserts a record with status Unknown unless one exists.
	// It reports whether a record was created.
	Register(ctx context.Context, name string) (bool, error)
	// UpdateStatus replaces the status of an existing record.
	// It reports whether a record was changed.
	UpdateStatus(ctx context.Context, name string, status Status) (bool, error)
	// ClearAll deletes every record and returns how many were removed.
	ClearAll(ctx context.Context) (int64, error)
	GetByName(ctx context.Context, name string) (*StatusRecord, error)
	// GetAll returns every record, most recently updated first.
	GetAll(ctx context.Context) ([]*StatusRecord, error)
}

// NextUpdatedAt returns the timestamp for a write that follows a write at prev.
// The result is in UTC at microsecond resolution and always after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !next.After(prev) {
		next = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return next
}
