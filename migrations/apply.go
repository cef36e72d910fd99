package migrations

import (
	"context"
	"fmt"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
)

// Apply registers the tree of dialect on client and runs pending
// migrations.
func Apply(ctx context.Context, client *persistence.Client, dialect string) (Registration, error) {
	if client == nil {
		return Registration{}, fmt.Errorf("migrations: persistence client is required")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return Registration{}, fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
	reg, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, WithValidationTargets(dialect))
	if err != nil {
		return reg, err
	}
	if err := client.Migrate(ctx); err != nil {
		return reg, fmt.Errorf("migrations: apply %s: %w", dialect, err)
	}
	return reg, nil
}
