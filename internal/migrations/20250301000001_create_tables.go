package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/mkoziy/ga4mirror/internal/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().
			Model((*models.Property)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateTable().
			Model((*models.Website)(nil)).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*models.Website)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		_, err := db.NewDropTable().Model((*models.Property)(nil)).IfExists().Exec(ctx)
		return err
	})
}
