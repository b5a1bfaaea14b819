package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RequiredTables are the tables the postgres stores read and write.
var RequiredTables = []string{"clientes", "reservas", "conversations", "messages"}

// Verify reports any required table missing from the connected schema.
func Verify(ctx context.Context, db *sql.DB) error {
	var missing []string
	for _, table := range RequiredTables {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("migrations: check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("migrations: missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
