package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateRegistryTables creates the producers and blacklist tables if they don't exist
func CreateRegistryTables(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createProducersTable := `
		CREATE TABLE IF NOT EXISTS producers (
			chip_id                 TEXT PRIMARY KEY,
			last_token_issued_at_ms BIGINT,
			ssid                    TEXT,
			created_at_ms           BIGINT NOT NULL
		);
	`

	createBlacklistTable := `
		CREATE TABLE IF NOT EXISTS black_list_producers (
			chip_id       TEXT PRIMARY KEY,
			created_at_ms BIGINT NOT NULL
		);
	`

	for _, query := range []string{createProducersTable, createBlacklistTable} {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
