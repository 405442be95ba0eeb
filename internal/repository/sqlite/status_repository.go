package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/status-board/internal/domain"
)

// StatusRepository implements domain.StatusRepository using SQLite
type StatusRepository struct {
	db *Database
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(db *Database) *StatusRepository {
	return &StatusRepository{db: db}
}

// Register inserts a record with status Unknown if none exists for name
func (r *StatusRepository) Register(ctx context.Context, name string) (bool, error) {
	query := `
		INSERT INTO people_status (display_name, current_status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(display_name) DO NOTHING
	`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		name,
		domain.StatusUnknown,
		domain.NextUpdatedAt(time.Time{}, time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to register %q: %w", name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n > 0, nil
}

// UpdateStatus replaces the status of an existing record
func (r *StatusRepository) UpdateStatus(ctx context.Context, name string, status domain.Status) (bool, error) {
	tx, err := r.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT updated_at FROM people_status WHERE display_name = ?`,
		name,
	).Scan(&prev)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", name, err)
	}

	query := `
		UPDATE people_status
		SET current_status = ?, updated_at = ?
		WHERE display_name = ?
	`

	_, err = tx.ExecContext(ctx, query,
		status,
		domain.NextUpdatedAt(prev, time.Now()),
		name,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit update: %w", err)
	}

	return true, nil
}

// ClearAll deletes every record
func (r *StatusRepository) ClearAll(ctx context.Context) (int64, error) {
	result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM people_status`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear statuses: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n, nil
}

// GetByName retrieves a record by display name
func (r *StatusRepository) GetByName(ctx context.Context, name string) (*domain.StatusRecord, error) {
	query := `
		SELECT id, display_name, current_status, updated_at
		FROM people_status
		WHERE display_name = ?
	`

	record := &domain.StatusRecord{}

	err := r.db.GetDB().QueryRowContext(ctx, query, name).Scan(
		&record.ID,
		&record.Name,
		&record.Status,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", name, err)
	}

	return record, nil
}

// GetAll retrieves all records, most recently updated first
func (r *StatusRepository) GetAll(ctx context.Context) ([]*domain.StatusRecord, error) {
	query := `
		SELECT id, display_name, current_status, updated_at
		FROM people_status
		ORDER BY updated_at DESC, display_name ASC
	`

	rows, err := r.db.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all statuses: %w", err)
	}
	defer rows.Close()

	records := []*domain.StatusRecord{}

	for rows.Next() {
		record := &domain.StatusRecord{}

		err := rows.Scan(
			&record.ID,
			&record.Name,
			&record.Status,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statuses: %w", err)
	}

	return records, nil
}
