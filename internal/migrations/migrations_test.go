package migrations

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/database"
)

func TestRunMigrationsIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(":memory:", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := RunMigrations(ctx, db, zerolog.Nop()); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}

	for _, table := range []string{"properties", "websites"} {
		var n int
		err := db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &n)
		if err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}

	if len(Migrations.Sorted()) != 2 {
		t.Fatalf("expected 2 registered migrations, got %d", len(Migrations.Sorted()))
	}
}
