package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/database"
	"github.com/mkoziy/ga4mirror/internal/migrations"
	"github.com/mkoziy/ga4mirror/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(":memory:", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(context.Background(), db, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestFindPropertyNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FindPropertyByRemoteID(context.Background(), "properties/404")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertPropertyInsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.UpsertProperty(ctx, models.NewPropertyFromRemote(models.RemoteProperty{
		RemoteID: "properties/1", DisplayName: "Main", ParentAccountID: "accounts/10",
	}))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected surrogate key after insert")
	}

	found, err := store.FindPropertyByRemoteID(ctx, "properties/1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	found.ApplyRemote(models.RemoteProperty{DisplayName: "Renamed"})
	if _, err := store.UpsertProperty(ctx, found); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, err := store.FindPropertyByRemoteID(ctx, "properties/1")
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("surrogate key changed: %d -> %d", created.ID, again.ID)
	}
	if again.DisplayName != "Renamed" || again.AccountID != "10" {
		t.Fatalf("unexpected row: %+v", again)
	}

	n, err := store.CountProperties(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 property, got %d", n)
	}
}

func TestUpsertPropertyConflictKeepsSingleRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.UpsertProperty(ctx, &models.Property{RemoteID: "properties/1", DisplayName: "A", AccountID: "1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := store.UpsertProperty(ctx, &models.Property{RemoteID: "properties/1", DisplayName: "B", AccountID: "1"})
	if err != nil {
		t.Fatalf("conflicting insert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected conflict to resolve to id %d, got %d", first.ID, second.ID)
	}

	n, _ := store.CountProperties(ctx)
	if n != 1 {
		t.Fatalf("expected 1 property, got %d", n)
	}
}

func TestUpsertWebsiteAndSummary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	prop, err := store.UpsertProperty(ctx, &models.Property{RemoteID: "properties/1", DisplayName: "Main", AccountID: "1"})
	if err != nil {
		t.Fatalf("insert property: %v", err)
	}

	uri := "https://example.com"
	mid := "G-ABC"
	web, err := store.UpsertWebsite(ctx, models.NewWebsiteFromRemote(prop.ID, models.RemoteDataStream{
		RemoteID: "properties/1/dataStreams/7", DisplayName: "Site", Type: models.StreamWeb, DefaultURI: &uri, MeasurementID: &mid,
	}))
	if err != nil {
		t.Fatalf("insert website: %v", err)
	}
	if web.ID == 0 {
		t.Fatalf("expected website surrogate key")
	}

	if _, err := store.UpsertWebsite(ctx, &models.Website{RemoteID: "orphan", PropertyID: 999, StreamType: models.StreamWeb}); err == nil {
		t.Fatalf("expected foreign key violation for unknown property")
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalProperties != 1 || summary.TotalWebsites != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	ws := summary.Properties[0].Websites[0]
	if ws.URL != uri || ws.MeasurementID != mid {
		t.Fatalf("unexpected website summary: %+v", ws)
	}
}
