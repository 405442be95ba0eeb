package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glebk/status-board/internal/domain"
)

// StatusRepository implements domain.StatusRepository on top of gorm
type StatusRepository struct {
	db *gorm.DB
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Register inserts name with status Unknown. An existing row is left untouched.
func (r *StatusRepository) Register(ctx context.Context, name string) (bool, error) {
	row := PersonStatus{
		DisplayName:   name,
		CurrentStatus: string(domain.StatusUnknown),
		UpdatedAt:     domain.NextUpdatedAt(time.Time{}, time.Now()),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "display_name"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("failed to register %q: %w", name, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// UpdateStatus locks the row, then writes status and an updated_at newer than the stored one.
// It returns false when name is not registered.
func (r *StatusRepository) UpdateStatus(ctx context.Context, name string, status domain.Status) (bool, error) {
	updated := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PersonStatus
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("display_name = ?", name).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		err = tx.Model(&PersonStatus{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"current_status": string(status),
				"updated_at":     domain.NextUpdatedAt(row.UpdatedAt, time.Now()),
			}).Error
		if err != nil {
			return err
		}

		updated = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update %q: %w", name, err)
	}

	return updated, nil
}

// ClearAll deletes every row and returns how many were removed
func (r *StatusRepository) ClearAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&PersonStatus{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear statuses: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetByName retrieves a record by display name
func (r *StatusRepository) GetByName(ctx context.Context, name string) (*domain.StatusRecord, error) {
	var row PersonStatus
	err := r.db.WithContext(ctx).Where("display_name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", name, err)
	}
	return toRecord(row), nil
}

// GetAll retrieves every record, most recently updated first, then by name
func (r *StatusRepository) GetAll(ctx context.Context) ([]*domain.StatusRecord, error) {
	var rows []PersonStatus
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("display_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all statuses: %w", err)
	}

	records := make([]*domain.StatusRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return records, nil
}

func toRecord(row PersonStatus) *domain.StatusRecord {
	return &domain.StatusRecord{
		ID:        row.ID,
		Name:      row.DisplayName,
		Status:    domain.Status(row.CurrentStatus),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}
