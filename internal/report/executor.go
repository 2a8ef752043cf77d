package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkoziy/ga4mirror/internal/metrics"
)

// Runner issues one compliant report call.
type Runner interface {
	RunReport(ctx context.Context, req Request) (*Table, error)
}

// Result is the outcome of one sub-request.
type Result struct {
	Request Request
	Table   *Table
	Err     error
}

// OK reports whether the sub-request produced a table.
func (r Result) OK() bool { return r.Err == nil && r.Table != nil }

// Executor runs sub-requests one after another against a Runner.
type Executor struct {
	runner      Runner
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewExecutor creates an executor. A zero callTimeout disables the per-call deadline.
func NewExecutor(runner Runner, callTimeout time.Duration, logger zerolog.Logger) *Executor {
	return &Executor{runner: runner, callTimeout: callTimeout, logger: logger}
}

// Execute returns one Result per sub-request in input order. A failing
// sub-request does not stop the ones after it. Once ctx is done the remaining
// sub-requests are not issued and carry ctx's error.
func (e *Executor) Execute(ctx context.Context, subs []Request) []Result {
	results := make([]Result, len(subs))
	for i, sub := range subs {
		results[i] = Result{Request: sub}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			metrics.ReportSubRequests.WithLabelValues("error").Inc()
			continue
		}

		table, err := e.call(ctx, sub)
		results[i].Table, results[i].Err = table, err
		if err != nil {
			e.logger.Warn().Err(err).Int("index", i).Str("request", sub.String()).Msg("report sub-request failed")
			metrics.ReportSubRequests.WithLabelValues("error").Inc()
			continue
		}
		metrics.ReportSubRequests.WithLabelValues("ok").Inc()
	}
	return results
}

func (e *Executor) call(ctx context.Context, sub Request) (*Table, error) {
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}
	table, err := e.runner.RunReport(ctx, sub)
	if err == nil && table == nil {
		table = NewTable(sub.Dimensions, sub.Metrics, nil)
	}
	return table, err
}
