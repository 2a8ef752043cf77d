package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/metrics"
	"github.com/mkoziy/ga4mirror/internal/workerpool"
)

// ErrAllSubRequestsFailed wraps the joined errors of a report whose every sub-request failed.
var ErrAllSubRequestsFailed = errors.New("all report sub-requests failed")

// ServiceConfig tunes report planning and execution.
type ServiceConfig struct {
	MaxDimensionsPerCall int
	Concurrency          int
	CallTimeout          time.Duration
}

// Service plans, executes and joins reports.
type Service struct {
	executor    *Executor
	cache       Cache
	maxDims     int
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService wires a runner and cache. A nil cache disables caching.
func NewService(runner Runner, cache Cache, cfg ServiceConfig, logger zerolog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if cfg.MaxDimensionsPerCall <= 0 {
		cfg.MaxDimensionsPerCall = DefaultMaxDimensionsPerCall
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	logger = logger.With().Str("component", "report").Logger()
	return &Service{
		executor:    NewExecutor(runner, cfg.CallTimeout, logger),
		cache:       cache,
		maxDims:     cfg.MaxDimensionsPerCall,
		concurrency: cfg.Concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// RunReport validates req, splits it into compliant sub-requests, runs them in
// order and joins the successful tables on the shared join key. Failed
// sub-requests are listed in the table's Warnings. If none succeed the error
// wraps ErrAllSubRequestsFailed together with every sub-request error.
func (s *Service) RunReport(ctx context.Context, req Request) (*Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key, keyErr := CacheKey(req, s.now())
	if keyErr == nil {
		if cached, ok := s.lookup(ctx, key); ok {
			return cached, nil
		}
	}

	subs, err := Plan(req, s.maxDims)
	if err != nil {
		return nil, err
	}
	if err := ValidatePlan(subs); err != nil {
		return nil, err
	}
	metrics.ReportPlanSize.Observe(float64(len(subs)))

	results := s.executor.Execute(ctx, subs)

	tables := make([]*Table, 0, len(results))
	var errs, warnings []string
	var failures []error
	for i, r := range results {
		if r.OK() {
			tables = append(tables, r.Table)
			continue
		}
		failures = append(failures, fmt.Errorf("sub-request %d: %w", i, r.Err))
		errs = append(errs, r.Err.Error())
		warnings = append(warnings, fmt.Sprintf("sub-request %d (%v) failed: %v", i, r.Request.Dimensions, r.Err))
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllSubRequestsFailed, errors.Join(failures...))
	}

	joined, err := Join(tables, subs[0].JoinKey)
	if err != nil {
		return nil, err
	}
	if len(subs) > 1 && req.Limit > 0 && len(joined.Rows) > req.Limit {
		joined = joined.Clone()
		joined.Rows = joined.Rows[:req.Limit]
	}
	if len(warnings) > 0 {
		joined = joined.Clone()
		joined.Warnings = append(joined.Warnings, warnings...)
		s.logger.Warn().
			Str("property", req.PropertyID).
			Int("failed", len(errs)).
			Int("planned", len(subs)).
			Strs("errors", errs).
			Msg("report joined without some sub-requests")
		return joined, nil
	}

	if keyErr == nil {
		if err := s.cache.Set(ctx, key, joined); err != nil {
			s.logger.Warn().Err(err).Msg("report cache write failed")
		}
	}
	return joined, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*Table, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.ReportCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Msg("report cache read failed")
		return nil, false
	case ok:
		metrics.ReportCacheLookups.WithLabelValues("hit").Inc()
		return cached, true
	default:
		metrics.ReportCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
}

// PropertyReport is the outcome of one report in a RunReports batch.
type PropertyReport struct {
	PropertyID string `json:"property_id"`
	Table      *Table `json:"table,omitempty"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

// RunReports runs one report per request with bounded concurrency and returns
// the outcomes in request order. Reports not started before ctx is done carry
// ctx's error.
func (s *Service) RunReports(ctx context.Context, reqs []Request) []PropertyReport {
	out := make([]PropertyReport, len(reqs))
	skipped := workerpool.Run(ctx, len(reqs), s.concurrency, func(i int) {
		table, err := s.RunReport(ctx, reqs[i])
		out[i] = PropertyReport{PropertyID: reqs[i].PropertyID, Table: table, Err: err}
	})
	for _, i := range skipped {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = PropertyReport{PropertyID: reqs[i].PropertyID, Err: err}
	}
	for i := range out {
		if out[i].Err != nil {
			out[i].Error = out[i].Err.Error()
		}
	}
	return out
}
