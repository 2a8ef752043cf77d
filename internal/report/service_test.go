package report

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeRunner answers each call with one row per date, filling dimension
// cells with "<dimension>-<date>" and metric cells with "1".
type fakeRunner struct {
	mu    sync.Mutex
	calls []Request
	fail  func(Request) error
	dates []string
}

func (f *fakeRunner) RunReport(ctx context.Context, req Request) (*Table, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if len(req.Dimensions) > DefaultMaxDimensionsPerCall {
		return nil, errors.New("too many dimensions")
	}
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return nil, err
		}
	}

	rows := make([][]string, 0, len(f.dates))
	for _, d := range f.dates {
		row := make([]string, 0, len(req.Dimensions)+len(req.Metrics))
		for _, dim := range req.Dimensions {
			if dim == "date" {
				row = append(row, d)
			} else {
				row = append(row, dim+"-"+d)
			}
		}
		for range req.Metrics {
			row = append(row, "1")
		}
		rows = append(rows, row)
	}
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return NewTable(req.Dimensions, req.Metrics, rows), nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func wideRequest(property string) Request {
	return Request{
		PropertyID: property,
		StartDate:  "2023-01-01",
		EndDate:    "2023-01-02",
		Metrics:    []string{"sessions"},
		Dimensions: dims(12),
	}
}

func TestExecutorPreservesOrderAndIsolatesFailures(t *testing.T) {
	runner := &fakeRunner{dates: []string{"d1"}, fail: func(r Request) error {
		if slices.Contains(r.Dimensions, "b") {
			return errors.New("boom")
		}
		return nil
	}}
	exec := NewExecutor(runner, time.Second, zerolog.Nop())

	subs := []Request{
		{Metrics: []string{"m"}, Dimensions: []string{"date", "a"}},
		{Metrics: []string{"m"}, Dimensions: []string{"date", "b"}},
		{Metrics: []string{"m"}, Dimensions: []string{"date", "c"}},
	}
	results := exec.Execute(context.Background(), subs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Fatalf("unexpected outcomes: %v %v %v", results[0].Err, results[1].Err, results[2].Err)
	}
	for i, r := range results {
		if !slices.Equal(r.Request.Dimensions, subs[i].Dimensions) {
			t.Fatalf("result %d out of order", i)
		}
	}
	if runner.callCount() != 3 {
		t.Fatalf("expected every sub-request issued, got %d", runner.callCount())
	}
}

func TestExecutorStopsIssuingAfterCancel(t *testing.T) {
	runner := &fakeRunner{dates: []string{"d1"}}
	exec := NewExecutor(runner, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := exec.Execute(ctx, []Request{{Metrics: []string{"m"}}, {Metrics: []string{"m"}}})
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("result %d: expected context.Canceled, got %v", i, r.Err)
		}
	}
	if runner.callCount() != 0 {
		t.Fatalf("expected no calls, got %d", runner.callCount())
	}
}

func TestServiceRunReportSplitsAndJoins(t *testing.T) {
	runner := &fakeRunner{dates: []string{"2023-01-01", "2023-01-02"}}
	svc := NewService(runner, nil, ServiceConfig{MaxDimensionsPerCall: 9}, zerolog.Nop())

	req := wideRequest("properties/1")
	table, err := svc.RunReport(context.Background(), req)
	if err != nil {
		t.Fatalf("run report: %v", err)
	}
	if runner.callCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", runner.callCount())
	}

	gotDims := table.DimensionHeaders()
	if len(gotDims) != len(req.Dimensions) {
		t.Fatalf("expected %d dimensions, got %v", len(req.Dimensions), gotDims)
	}
	for _, d := range req.Dimensions {
		if !slices.Contains(gotDims, d) {
			t.Fatalf("dimension %s missing from %v", d, gotDims)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if v, _ := table.Value(1, "customEvent:d11"); v != "customEvent:d11-2023-01-02" {
		t.Fatalf("unexpected joined value %q", v)
	}
	if v, _ := table.Value(0, "sessions"); v != "1" {
		t.Fatalf("unexpected metric value %q", v)
	}
}

func TestServiceRunReportAppliesLimitAfterJoin(t *testing.T) {
	runner := &fakeRunner{dates: []string{"2023-01-01", "2023-01-02", "2023-01-03"}}
	svc := NewService(runner, nil, ServiceConfig{MaxDimensionsPerCall: 9}, zerolog.Nop())

	req := wideRequest("properties/1")
	req.Limit = 2
	table, err := svc.RunReport(context.Background(), req)
	if err != nil {
		t.Fatalf("run report: %v", err)
	}
	for _, c := range runner.calls {
		if c.Limit != 0 {
			t.Fatalf("split sub-request carried limit %d", c.Limit)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows after limit, got %d", len(table.Rows))
	}
	if v, _ := table.Value(1, "customEvent:d11"); v != "customEvent:d11-2023-01-02" {
		t.Fatalf("limited rows lost their join partner: %q", v)
	}
	if len(table.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", table.Warnings)
	}
}

func TestServiceRunReportPartialFailure(t *testing.T) {
	runner := &fakeRunner{dates: []string{"d1"}, fail: func(r Request) error {
		if slices.Contains(r.Dimensions, "customEvent:d11") {
			return errors.New("quota")
		}
		return nil
	}}
	svc := NewService(runner, nil, ServiceConfig{}, zerolog.Nop())

	table, err := svc.RunReport(context.Background(), Request{
		PropertyID: "properties/1", StartDate: "2023-01-01", EndDate: "2023-01-01",
		Metrics: []string{"sessions"}, Dimensions: dims(12),
	})
	if err != nil {
		t.Fatalf("expected partial table, got %v", err)
	}
	if len(table.Warnings) != 1 || !strings.Contains(table.Warnings[0], "quota") {
		t.Fatalf("expected one warning, got %v", table.Warnings)
	}
	if slices.Contains(table.DimensionHeaders(), "customEvent:d11") {
		t.Fatalf("failed sub-request columns should be absent")
	}
}

func TestServiceRunReportAllFailed(t *testing.T) {
	runner := &fakeRunner{fail: func(Request) error { return errors.New("down") }}
	svc := NewService(runner, nil, ServiceConfig{}, zerolog.Nop())

	_, err := svc.RunReport(context.Background(), wideRequest("properties/1"))
	if !errors.Is(err, ErrAllSubRequestsFailed) {
		t.Fatalf("expected ErrAllSubRequestsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected sub-request errors in message, got %v", err)
	}
}

func TestServiceRejectsInvalidRequest(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewService(runner, nil, ServiceConfig{}, zerolog.Nop())

	if _, err := svc.RunReport(context.Background(), Request{PropertyID: "properties/1", StartDate: "2023-01-01", EndDate: "2023-01-02"}); err == nil {
		t.Fatalf("expected validation error without metrics")
	}
	if runner.callCount() != 0 {
		t.Fatalf("expected no calls for invalid request")
	}
}

func TestServiceUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runner := &fakeRunner{dates: []string{"d1"}}
	svc := NewService(runner, NewRedisCacheWithClient(client, time.Hour), ServiceConfig{}, zerolog.Nop())

	req := wideRequest("properties/1")
	first, err := svc.RunReport(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := runner.callCount()

	second, err := svc.RunReport(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if runner.callCount() != calls {
		t.Fatalf("expected cached result, runner called %d more times", runner.callCount()-calls)
	}
	if !slices.Equal(first.Headers(), second.Headers()) || !slices.Equal(first.Rows[0], second.Rows[0]) {
		t.Fatalf("cached table differs: %v vs %v", first.Headers(), second.Headers())
	}
	if !slices.Equal(first.MetricHeaders(), second.MetricHeaders()) {
		t.Fatalf("cached table lost column kinds")
	}

	key, _ := CacheKey(req, time.Now())
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("expected ttl of 1h, got %v", ttl)
	}
}

func TestServiceRunReportsAcrossProperties(t *testing.T) {
	runner := &fakeRunner{dates: []string{"d1"}, fail: func(r Request) error {
		if r.PropertyID == "properties/2" {
			return errors.New("forbidden")
		}
		return nil
	}}
	svc := NewService(runner, nil, ServiceConfig{Concurrency: 2}, zerolog.Nop())

	reqs := []Request{wideRequest("properties/1"), wideRequest("properties/2"), wideRequest("properties/3")}
	out := svc.RunReports(context.Background(), reqs)

	if len(out) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(out))
	}
	for i, r := range out {
		if r.PropertyID != reqs[i].PropertyID {
			t.Fatalf("report %d out of order: %s", i, r.PropertyID)
		}
	}
	if out[0].Err != nil || out[2].Err != nil {
		t.Fatalf("unexpected errors: %v %v", out[0].Err, out[2].Err)
	}
	if out[1].Err == nil || out[1].Error == "" {
		t.Fatalf("expected property 2 to fail")
	}
}
