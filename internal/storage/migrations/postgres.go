package migrations

import (
	"context"
	"fmt"
	"strings"

	"marketdata-archiver/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, m := range files {
		if strings.TrimSpace(m.sql) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	return nil
}
