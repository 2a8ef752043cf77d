// Package app wires the store, the provider client, the reconciler and the
// report service behind the operations the binary exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/mkoziy/ga4mirror/internal/config"
	"github.com/mkoziy/ga4mirror/internal/database"
	"github.com/mkoziy/ga4mirror/internal/migrations"
	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/reconcile"
	"github.com/mkoziy/ga4mirror/internal/report"
	"github.com/mkoziy/ga4mirror/internal/repositories"
	"github.com/mkoziy/ga4mirror/internal/sources/ga4"
)

// Gateway is everything the app needs from the provider.
type Gateway interface {
	reconcile.Gateway
	report.Runner
}

// Deps are the collaborators of an App.
type Deps struct {
	Gateway     Gateway
	Store       *repositories.Store
	Cache       report.Cache
	Definitions report.Definitions
}

type App struct {
	store       *repositories.Store
	reconciler  *reconcile.Reconciler
	reports     *report.Service
	definitions report.Definitions
	sync        config.SyncConfig
	closers     []func() error
	now         func() time.Time
}

// New assembles an App from ready collaborators.
func New(deps Deps, cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		store:       deps.Store,
		reconciler:  reconcile.New(deps.Gateway, deps.Store, cfg.Reconcile(), logger),
		reports:     report.NewService(deps.Gateway, deps.Cache, cfg.ReportService(), logger),
		definitions: deps.Definitions,
		sync:        cfg.Sync,
		now:         time.Now,
	}
}

// Open opens and migrates the database, builds the provider client on top of
// httpClient, connects the report cache when enabled and loads saved report
// definitions.
func Open(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger zerolog.Logger) (*App, error) {
	db, err := OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	closers := []func() error{db.Close}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	var cache report.Cache = report.NoopCache{}
	if cfg.Redis.Enabled {
		rc, err := report.NewRedisCache(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Report.CacheTTL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect report cache: %w", err)
		}
		cache = rc
		closers = append(closers, rc.Close)
	}

	var defs report.Definitions
	if cfg.Report.DefinitionsFile != "" {
		defs, err = report.LoadDefinitionsFile(cfg.Report.DefinitionsFile)
		if err != nil {
			closeAll()
			return nil, err
		}
	}

	a := New(Deps{
		Gateway:     ga4.NewClient(httpClient, cfg.GA4.Client(), logger),
		Store:       repositories.NewStore(db),
		Cache:       cache,
		Definitions: defs,
	}, cfg, logger)
	a.closers = closers
	return a, nil
}

// OpenDatabase opens the mirror database and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*bun.DB, error) {
	db, err := database.NewDB(cfg.Path, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
	}
	if err := migrations.RunMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ping checks the local store.
func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// ReconcileAll mirrors every visible property.
func (a *App) ReconcileAll(ctx context.Context, fetchWebsites, updateExisting bool) (reconcile.SyncResult, error) {
	return a.reconciler.SyncAllProperties(ctx, fetchWebsites, updateExisting)
}

// ReconcileOne mirrors a single property, given as "123" or "properties/123".
func (a *App) ReconcileOne(ctx context.Context, remoteID string, fetchWebsites, updateExisting bool) (reconcile.SyncResult, error) {
	return a.reconciler.SyncSingleProperty(ctx, remoteID, fetchWebsites, updateExisting)
}

// StartAutoSync runs ReconcileAll on the configured interval until ctx is done.
func (a *App) StartAutoSync(ctx context.Context, onResult func(reconcile.SyncResult, error)) <-chan struct{} {
	return a.reconciler.StartAutoSync(ctx, a.sync.Interval, a.sync.FetchWebsites, a.sync.UpdateExisting, onResult)
}

// RunReport runs one report, splitting and joining it when it has more
// dimensions than one provider call allows.
func (a *App) RunReport(ctx context.Context, req report.Request) (*report.Table, error) {
	req.PropertyID = models.PropertyResource(req.PropertyID)
	return a.reports.RunReport(ctx, req)
}

// RunReports runs one report per request across properties.
func (a *App) RunReports(ctx context.Context, reqs []report.Request) []report.PropertyReport {
	out := make([]report.Request, len(reqs))
	for i, r := range reqs {
		r.PropertyID = models.PropertyResource(r.PropertyID)
		out[i] = r
	}
	return a.reports.RunReports(ctx, out)
}

// DefinitionRequest binds the saved report name to a property and a date
// range such as "yesterday". An empty range uses the definition's own.
func (a *App) DefinitionRequest(name, propertyID, dateRange string) (report.Request, error) {
	def, err := a.definitions.Get(name)
	if err != nil {
		return report.Request{}, err
	}
	if dateRange == "" {
		dateRange = def.DateRange
	}
	if dateRange == "" {
		dateRange = "last-7-days"
	}
	start, end, err := report.ParseDateRange(dateRange, a.now())
	if err != nil {
		return report.Request{}, fmt.Errorf("report %s: %w", name, err)
	}
	return def.Request(models.PropertyResource(propertyID), start, end), nil
}

// Definitions lists the saved report names.
func (a *App) Definitions() []string {
	return a.definitions.Names()
}

// Summary describes what the mirror currently holds.
func (a *App) Summary(ctx context.Context) (repositories.SyncSummary, error) {
	return a.store.Summary(ctx)
}
