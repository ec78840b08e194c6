package database

import (
	"log/slog"
)

// SetupIndexes creates additional indexes that GORM can't handle automatically
func (db *DB) SetupIndexes() error {
	slog.Info("Setting up additional database indexes")

	// Partial index serving the stale-table cleanup query
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_table_records_stale
		ON table_records(updated_at)
		WHERE player_count = 0
	`).Error; err != nil {
		return err
	}

	return nil
}
