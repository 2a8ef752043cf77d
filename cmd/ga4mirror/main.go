package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mkoziy/ga4mirror/internal/api"
	"github.com/mkoziy/ga4mirror/internal/app"
	"github.com/mkoziy/ga4mirror/internal/config"
	"github.com/mkoziy/ga4mirror/internal/logging"
	"github.com/mkoziy/ga4mirror/internal/reconcile"
	"github.com/mkoziy/ga4mirror/internal/report"
	"github.com/mkoziy/ga4mirror/internal/sources/ga4"
)

const usage = `usage: ga4mirror [-config file] <command> [flags]

commands:
  migrate         create or upgrade the local database
  sync            mirror every property (and its websites)
  sync-property   mirror one property
  report          run one report for a property
  reports         run one report across several properties
  definitions     list saved report definitions
  summary         print what the mirror holds
  watch           sync on an interval and serve /healthz and /metrics
`

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), flag.Args()[1:]); err != nil {
		logging.Error().Err(err).Str("command", flag.Arg(0)).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if cmd == "migrate" {
		db, err := app.OpenDatabase(ctx, cfg.Database, logging.Component("migrations"))
		if err != nil {
			return err
		}
		return db.Close()
	}

	handlers := map[string]func(context.Context, *app.App, *config.Config, []string) error{
		"sync":          runSync,
		"sync-property": runSyncProperty,
		"report":        runReport,
		"reports":       runReports,
		"definitions":   runDefinitions,
		"summary":       runSummary,
		"watch":         runWatch,
	}
	handler, ok := handlers[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}

	httpClient, err := providerClient(ctx, cfg.GA4.CredentialsFile)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, httpClient, logging.Logger())
	if err != nil {
		return err
	}
	defer a.Close()

	return handler(ctx, a, cfg, args)
}

// providerClient returns an HTTP client authorized for the analytics read-only scope.
func providerClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	if credentialsFile == "" {
		client, err := google.DefaultClient(ctx, ga4.Scope)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return client, nil
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, ga4.Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

func runSync(ctx context.Context, a *app.App, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	websites := fs.Bool("websites", cfg.Sync.FetchWebsites, "also mirror data streams")
	update := fs.Bool("update", cfg.Sync.UpdateExisting, "overwrite rows that already exist")
	_ = fs.Parse(args)

	res, err := a.ReconcileAll(ctx, *websites, *update)
	return printSync(res, err)
}

func runSyncProperty(ctx context.Context, a *app.App, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync-property", flag.ExitOnError)
	id := fs.String("id", "", "property id, e.g. 123 or properties/123")
	websites := fs.Bool("websites", cfg.Sync.FetchWebsites, "also mirror data streams")
	update := fs.Bool("update", cfg.Sync.UpdateExisting, "overwrite rows that already exist")
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("sync-property: -id is required")
	}

	res, err := a.ReconcileOne(ctx, *id, *websites, *update)
	return printSync(res, err)
}

func printSync(res reconcile.SyncResult, err error) error {
	if perr := writeJSON(os.Stdout, res); perr != nil {
		return perr
	}
	return err
}

type reportFlags struct {
	property   *string
	definition *string
	dateRange  *string
	metrics    *string
	dimensions *string
	joinKey    *string
	limit      *int
	format     *string
}

func newReportFlags(fs *flag.FlagSet) reportFlags {
	return reportFlags{
		property:   fs.String("property", "", "property id"),
		definition: fs.String("definition", "", "saved report name"),
		dateRange:  fs.String("range", "", "today, yesterday, last-N-days or YYYY-MM-DD,YYYY-MM-DD"),
		metrics:    fs.String("metrics", "", "comma separated metrics"),
		dimensions: fs.String("dimensions", "", "comma separated dimensions"),
		joinKey:    fs.String("join-key", "", "dimension shared by split requests"),
		limit:      fs.Int("limit", 0, "maximum rows per request"),
		format:     fs.String("format", "csv", "csv or json"),
	}
}

func (f reportFlags) request(a *app.App, propertyID string) (report.Request, error) {
	if *f.definition != "" {
		return a.DefinitionRequest(*f.definition, propertyID, *f.dateRange)
	}
	spec := *f.dateRange
	if spec == "" {
		spec = "last-7-days"
	}
	start, end, err := report.ParseDateRange(spec, time.Now())
	if err != nil {
		return report.Request{}, err
	}
	return report.Request{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    end,
		Metrics:    splitList(*f.metrics),
		Dimensions: splitList(*f.dimensions),
		JoinKey:    *f.joinKey,
		Limit:      *f.limit,
	}, nil
}

func runReport(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	f := newReportFlags(fs)
	_ = fs.Parse(args)
	if *f.property == "" {
		return errors.New("report: -property is required")
	}

	req, err := f.request(a, *f.property)
	if err != nil {
		return err
	}
	table, err := a.RunReport(ctx, req)
	if err != nil {
		return err
	}
	for _, w := range table.Warnings {
		logging.Warn().Str("property", req.PropertyID).Msg(w)
	}
	if *f.format == "json" {
		return writeJSON(os.Stdout, table)
	}
	return table.WriteCSV(os.Stdout)
}

func runReports(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ExitOnError)
	properties := fs.String("properties", "", "comma separated property ids")
	f := newReportFlags(fs)
	_ = fs.Parse(args)

	ids := splitList(*properties)
	if len(ids) == 0 {
		return errors.New("reports: -properties is required")
	}
	reqs := make([]report.Request, 0, len(ids))
	for _, id := range ids {
		req, err := f.request(a, id)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	out := a.RunReports(ctx, reqs)
	failed := 0
	for _, r := range out {
		if r.Err != nil {
			failed++
			logging.Error().Err(r.Err).Str("property", r.PropertyID).Msg("report failed")
		}
	}
	if err := writeJSON(os.Stdout, out); err != nil {
		return err
	}
	if failed == len(out) {
		return fmt.Errorf("all %d reports failed", failed)
	}
	return nil
}

func runDefinitions(_ context.Context, a *app.App, _ *config.Config, _ []string) error {
	for _, name := range a.Definitions() {
		fmt.Println(name)
	}
	return nil
}

func runSummary(ctx context.Context, a *app.App, _ *config.Config, _ []string) error {
	summary, err := a.Summary(ctx)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, summary)
}

func runWatch(ctx context.Context, a *app.App, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("addr", cfg.Metrics.Addr, "listen address for /healthz and /metrics")
	_ = fs.Parse(args)

	logger := logging.Component("watch")
	server := &http.Server{
		Addr: *addr,
		Handler: api.NewRouter(a, api.SyncDefaults{
			FetchWebsites:  cfg.Sync.FetchWebsites,
			UpdateExisting: cfg.Sync.UpdateExisting,
		}, logging.Logger()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	done := a.StartAutoSync(ctx, func(res reconcile.SyncResult, err error) {
		if err != nil {
			logger.Error().Err(err).Str("run_id", res.RunID).Msg("autosync run failed")
		}
	})

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if runErr == nil {
		<-done
	}
	return runErr
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
