package migrations

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations collects the schema steps. Each step lives in a file named
// <timestamp>_<name>.go because bun/migrate derives the migration name from it.
var Migrations = migrate.NewMigrations()

// RunMigrations runs all pending migrations.
func RunMigrations(ctx context.Context, db *bun.DB, logger zerolog.Logger) error {
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		logger.Info().Msg("no new migrations to run")
		return nil
	}

	logger.Info().Str("group", group.String()).Msg("migrated")
	return nil
}
