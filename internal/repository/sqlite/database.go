package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Database wraps the SQL database connection
type Database struct {
	db *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	database := &Database{db: db}

	if err := database.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying database connection
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// initSchema creates the database tables
func (d *Database) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS people_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		display_name TEXT NOT NULL UNIQUE,
		current_status TEXT NOT NULL DEFAULT 'Unknown',
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_people_status_updated_at ON people_status(updated_at);
	`

	_, err := d.db.Exec(schema)
	return err
}
