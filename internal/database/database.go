package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", storagePath))
	return database, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// Scheduled and tracked events. Recurrence columns are inline and
		// nullable; a non-null recurrence_group_id correlates series
		// siblings without any ownership relation between them.
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			project_id TEXT,
			color TEXT,
			completed INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER,
			kind TEXT NOT NULL,
			recurrence_type TEXT,
			recurrence_interval INTEGER,
			recurrence_monthly_mode TEXT,
			recurrence_nth_week TEXT,
			recurrence_weekday INTEGER,
			recurrence_end_kind TEXT,
			recurrence_end_date TIMESTAMP,
			recurrence_count INTEGER,
			recurrence_group_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// At most one marker per account: the account id is the key.
		`CREATE TABLE IF NOT EXISTS session_markers (
			account_id TEXT PRIMARY KEY,
			is_active INTEGER NOT NULL DEFAULT 0,
			event_id TEXT,
			start_time TIMESTAMP,
			project_id TEXT,
			client_label TEXT,
			elapsed_seconds INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_group ON events(recurrence_group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Database connection closed")
	return nil
}
