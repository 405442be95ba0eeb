package postgres

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PersonStatus is the gorm model of the people_status table
type PersonStatus struct {
	ID            int64     `gorm:"primaryKey"`
	DisplayName   string    `gorm:"uniqueIndex;not null"`
	CurrentStatus string    `gorm:"not null;default:'Unknown'"`
	UpdatedAt     time.Time `gorm:"not null;index;autoUpdateTime:false"`
}

// TableName keeps the table name shared with the sqlite store
func (PersonStatus) TableName() string {
	return "people_status"
}

// Connect opens a gorm connection to the Postgres database at dsn
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// Migrations lists the schema migrations in the order they are applied
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "20261016_create_people_status_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PersonStatus{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("people_status")
			},
		},
	}
}

// Migrate applies every pending migration
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, Migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
