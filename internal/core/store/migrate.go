package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS admissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		permits INTEGER NOT NULL,
		waited_ms INTEGER NOT NULL DEFAULT 0,
		admitted_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_admissions_run ON admissions(run_id, admitted_at);`,
	`CREATE INDEX IF NOT EXISTS idx_admissions_source ON admissions(source);`,
}

// Migrate ensures the journal tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	return nil
}
