// Package reconcile mirrors the provider's account, property and data stream
// hierarchy into the local store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/metrics"
	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/workerpool"
)

// Gateway lists the remote hierarchy.
type Gateway interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ListProperties(ctx context.Context, accountID string) ([]models.RemoteProperty, error)
	GetProperty(ctx context.Context, propertyID string) (*models.RemoteProperty, error)
	ListDataStreams(ctx context.Context, propertyID string) ([]models.RemoteDataStream, error)
}

// Store persists mirrored rows keyed by remote id.
type Store interface {
	Ping(ctx context.Context) error
	FindPropertyByRemoteID(ctx context.Context, remoteID string) (*models.Property, error)
	UpsertProperty(ctx context.Context, p *models.Property) (*models.Property, error)
	FindWebsiteByRemoteID(ctx context.Context, remoteID string) (*models.Website, error)
	UpsertWebsite(ctx context.Context, w *models.Website) (*models.Website, error)
}

// Config tunes a Reconciler.
type Config struct {
	// Concurrency caps the number of properties synced at once.
	Concurrency int
	// CallTimeout bounds every gateway call.
	CallTimeout time.Duration
	// RunTimeout stops dispatching new properties once elapsed. Zero means no limit.
	RunTimeout time.Duration
	// WebOnly mirrors only web data streams; app streams are counted as skipped.
	WebOnly bool
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		CallTimeout: 60 * time.Second,
		WebOnly:     true,
	}
}

// Reconciler drives a Gateway and a Store.
type Reconciler struct {
	gateway Gateway
	store   Store
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
}

// New builds a Reconciler. Non-positive concurrency and call timeout fall back to defaults.
func New(gateway Gateway, store Store, cfg Config, logger zerolog.Logger) *Reconciler {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return &Reconciler{
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		logger:  logger.With().Str("component", "reconcile").Logger(),
		now:     time.Now,
	}
}

// SyncAllProperties mirrors every property of every visible account. Per-item
// failures are collected in the result. The error is non-nil only when the
// local store or the gateway cannot be reached at all; the partial result is
// still returned alongside it.
func (r *Reconciler) SyncAllProperties(ctx context.Context, fetchWebsites, updateExisting bool) (SyncResult, error) {
	res := r.begin()
	logger := r.logger.With().Str("run_id", res.RunID).Logger()
	logger.Info().
		Bool("fetch_websites", fetchWebsites).
		Bool("update_existing", updateExisting).
		Msg("sync started")

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	if err := r.store.Ping(ctx); err != nil {
		return r.fail(res, logger, fmt.Errorf("local store unavailable: %w", err))
	}

	props, err := r.listAllProperties(ctx, &res, logger)
	if err != nil {
		return r.fail(res, logger, err)
	}
	res.PropertiesFetched = len(props)

	partials := make([]SyncResult, len(props))
	skipped := workerpool.Run(runCtx, len(props), r.cfg.Concurrency, func(i int) {
		partials[i] = r.syncProperty(ctx, props[i], fetchWebsites, updateExisting, logger)
	})
	for _, i := range skipped {
		msg := fmt.Sprintf("property %s: not synced: %v", props[i].RemoteID, runCtx.Err())
		partials[i].addError(msg)
		metrics.SyncItems.WithLabelValues("property", "error").Inc()
	}
	if len(skipped) > 0 {
		logger.Warn().Int("skipped", len(skipped)).Err(runCtx.Err()).Msg("sync stopped dispatching")
	}

	for _, p := range partials {
		res.merge(p)
	}
	return r.finish(res, logger), nil
}

// SyncSingleProperty mirrors one property. A property that does not exist
// remotely yields zero counts and one error entry, not an error.
func (r *Reconciler) SyncSingleProperty(ctx context.Context, remoteID string, fetchWebsites, updateExisting bool) (SyncResult, error) {
	res := r.begin()
	resource := models.PropertyResource(remoteID)
	logger := r.logger.With().Str("run_id", res.RunID).Str("property", resource).Logger()
	logger.Info().
		Bool("fetch_websites", fetchWebsites).
		Bool("update_existing", updateExisting).
		Msg("property sync started")

	if err := r.store.Ping(ctx); err != nil {
		return r.fail(res, logger, fmt.Errorf("local store unavailable: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	rp, err := r.gateway.GetProperty(callCtx, resource)
	cancel()
	switch {
	case errors.Is(err, models.ErrRemoteNotFound):
		res.addError(fmt.Sprintf("property %s not found", resource))
		return r.finish(res, logger), nil
	case unreachable(err):
		return r.fail(res, logger, fmt.Errorf("get property %s: %w", resource, err))
	case err != nil:
		res.addError(fmt.Sprintf("property %s: %v", resource, err))
		logger.Error().Err(err).Msg("get property failed")
		return r.finish(res, logger), nil
	}

	res.PropertiesFetched = 1
	res.merge(r.syncProperty(ctx, *rp, fetchWebsites, updateExisting, logger))
	return r.finish(res, logger), nil
}

// listAllProperties walks every account. Failed accounts are recorded in res;
// it errors when the accounts cannot be listed or every account is unreachable.
func (r *Reconciler) listAllProperties(ctx context.Context, res *SyncResult, logger zerolog.Logger) ([]models.RemoteProperty, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	accounts, err := r.gateway.ListAccounts(callCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var props []models.RemoteProperty
	seen := make(map[string]struct{})
	var unavailable []error
	for _, acc := range accounts {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		list, err := r.gateway.ListProperties(callCtx, acc.RemoteID)
		cancel()
		if err != nil {
			if unreachable(err) {
				unavailable = append(unavailable, fmt.Errorf("account %s: %w", acc.RemoteID, err))
			}
			res.addError(fmt.Sprintf("account %s: list properties: %v", acc.RemoteID, err))
			logger.Error().Err(err).Str("account", acc.RemoteID).Msg("list properties failed")
			continue
		}
		for _, p := range list {
			if _, ok := seen[p.RemoteID]; ok {
				continue
			}
			seen[p.RemoteID] = struct{}{}
			props = append(props, p)
		}
	}

	if len(accounts) > 0 && len(unavailable) == len(accounts) {
		return nil, fmt.Errorf("list properties: %w", errors.Join(unavailable...))
	}
	logger.Debug().Int("accounts", len(accounts)).Int("properties", len(props)).Msg("remote properties listed")
	return props, nil
}

// syncProperty upserts one property and then its streams. The returned
// result holds only this property's counts and errors.
func (r *Reconciler) syncProperty(ctx context.Context, rp models.RemoteProperty, fetchWebsites, updateExisting bool, logger zerolog.Logger) SyncResult {
	var out SyncResult

	prop, o, err := r.upsertProperty(ctx, rp, updateExisting)
	if err != nil {
		out.addError(fmt.Sprintf("property %s: %v", rp.RemoteID, err))
		metrics.SyncItems.WithLabelValues("property", "error").Inc()
		logger.Error().Err(err).Str("property", rp.RemoteID).Msg("property upsert failed")
		return out
	}
	out.countProperty(o)
	metrics.SyncItems.WithLabelValues("property", o.String()).Inc()

	if !fetchWebsites {
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	streams, err := r.gateway.ListDataStreams(callCtx, rp.RemoteID)
	cancel()
	if err != nil {
		out.addError(fmt.Sprintf("property %s: list data streams: %v", rp.RemoteID, err))
		logger.Error().Err(err).Str("property", rp.RemoteID).Msg("list data streams failed")
		return out
	}
	out.WebsitesFetched = len(streams)

	for _, ds := range streams {
		if r.cfg.WebOnly && !ds.Type.IsWeb() {
			out.WebsitesSkipped++
			metrics.SyncItems.WithLabelValues("website", outcomeSkipped.String()).Inc()
			continue
		}
		o, err := r.upsertWebsite(ctx, prop.ID, ds, updateExisting)
		if err != nil {
			out.addError(fmt.Sprintf("website %s: %v", ds.RemoteID, err))
			metrics.SyncItems.WithLabelValues("website", "error").Inc()
			logger.Error().Err(err).
				Str("property", rp.RemoteID).
				Str("stream", ds.RemoteID).
				Msg("website upsert failed")
			continue
		}
		out.countWebsite(o)
		metrics.SyncItems.WithLabelValues("website", o.String()).Inc()
	}
	return out
}

func (r *Reconciler) upsertProperty(ctx context.Context, rp models.RemoteProperty, updateExisting bool) (*models.Property, outcome, error) {
	existing, err := r.store.FindPropertyByRemoteID(ctx, rp.RemoteID)
	if errors.Is(err, models.ErrNotFound) {
		created, err := r.store.UpsertProperty(ctx, models.NewPropertyFromRemote(rp))
		if err != nil {
			return nil, 0, err
		}
		return created, outcomeCreated, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lookup: %w", err)
	}

	if !updateExisting {
		return existing, outcomeSkipped, nil
	}
	existing.ApplyRemote(rp)
	updated, err := r.store.UpsertProperty(ctx, existing)
	if err != nil {
		return nil, 0, err
	}
	return updated, outcomeUpdated, nil
}

func (r *Reconciler) upsertWebsite(ctx context.Context, propertyID int64, ds models.RemoteDataStream, updateExisting bool) (outcome, error) {
	existing, err := r.store.FindWebsiteByRemoteID(ctx, ds.RemoteID)
	if errors.Is(err, models.ErrNotFound) {
		if _, err := r.store.UpsertWebsite(ctx, models.NewWebsiteFromRemote(propertyID, ds)); err != nil {
			return 0, err
		}
		return outcomeCreated, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup: %w", err)
	}

	if !updateExisting {
		return outcomeSkipped, nil
	}
	existing.ApplyRemote(ds)
	if _, err := r.store.UpsertWebsite(ctx, existing); err != nil {
		return 0, err
	}
	return outcomeUpdated, nil
}

func (r *Reconciler) begin() SyncResult {
	return SyncResult{
		RunID:     uuid.NewString(),
		Errors:    []string{},
		StartedAt: r.now().UTC(),
	}
}

func (r *Reconciler) finish(res SyncResult, logger zerolog.Logger) SyncResult {
	res.CompletedAt = r.now().UTC()
	status := "ok"
	if res.HasErrors() {
		status = "partial"
	}
	metrics.RecordSyncRun(status, res.Duration())

	logger.Info().
		Str("status", status).
		Int("properties_fetched", res.PropertiesFetched).
		Int("properties_created", res.PropertiesCreated).
		Int("properties_updated", res.PropertiesUpdated).
		Int("websites_fetched", res.WebsitesFetched).
		Int("websites_created", res.WebsitesCreated).
		Int("websites_updated", res.WebsitesUpdated).
		Int("errors", len(res.Errors)).
		Dur("duration", res.Duration()).
		Msg("sync completed")
	return res
}

func (r *Reconciler) fail(res SyncResult, logger zerolog.Logger, err error) (SyncResult, error) {
	res.CompletedAt = r.now().UTC()
	metrics.RecordSyncRun("failed", res.Duration())
	logger.Error().Err(err).Msg("sync failed")
	return res, err
}

// unreachable reports whether err means the gateway itself could not serve
// the call. A timeout of a single call is reported per item instead.
func unreachable(err error) bool {
	return err != nil &&
		errors.Is(err, models.ErrRemoteUnavailable) &&
		!errors.Is(err, context.DeadlineExceeded)
}
