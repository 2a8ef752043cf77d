// Package config loads ga4mirror settings from defaults, an optional YAML
// file and GA4MIRROR_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mkoziy/ga4mirror/internal/logging"
	"github.com/mkoziy/ga4mirror/internal/ratelimit"
	"github.com/mkoziy/ga4mirror/internal/reconcile"
	"github.com/mkoziy/ga4mirror/internal/report"
	"github.com/mkoziy/ga4mirror/internal/sources/ga4"
)

const (
	// EnvPrefix marks the variables read by Load. A double underscore
	// separates nesting levels: GA4MIRROR_SYNC__CONCURRENCY -> sync.concurrency.
	EnvPrefix = "GA4MIRROR_"

	// PathEnvVar overrides the config file location.
	PathEnvVar = EnvPrefix + "CONFIG"
)

// DefaultPaths are tried in order when no file is named explicitly.
var DefaultPaths = []string{
	"ga4mirror.yaml",
	"ga4mirror.yml",
	"/etc/ga4mirror/config.yaml",
}

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	GA4      GA4Config      `koanf:"ga4"`
	Sync     SyncConfig     `koanf:"sync"`
	Report   ReportConfig   `koanf:"report"`
	Redis    RedisConfig    `koanf:"redis"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type DatabaseConfig struct {
	Path  string `koanf:"path" validate:"required"`
	Debug bool   `koanf:"debug"`
}

// GA4Config configures the provider client.
type GA4Config struct {
	// CredentialsFile is a service account or authorized user JSON key.
	// Empty uses Application Default Credentials.
	CredentialsFile      string            `koanf:"credentials_file"`
	AdminBaseURL         string            `koanf:"admin_base_url" validate:"omitempty,url"`
	DataBaseURL          string            `koanf:"data_base_url" validate:"omitempty,url"`
	PageSize             int               `koanf:"page_size" validate:"gte=1,lte=200"`
	ReportPageSize       int               `koanf:"report_page_size" validate:"gte=1,lte=250000"`
	MaxDimensionsPerCall int               `koanf:"max_dimensions_per_call" validate:"gte=2,lte=9"`
	CallTimeout          time.Duration     `koanf:"call_timeout" validate:"gt=0"`
	RequestTimeout       time.Duration     `koanf:"request_timeout" validate:"gte=0"`
	RateLimit            ratelimit.Set     `koanf:"rate_limit"`
	Breaker              ga4.BreakerConfig `koanf:"breaker"`
}

type SyncConfig struct {
	Concurrency    int           `koanf:"concurrency" validate:"gte=1,lte=50"`
	RunTimeout     time.Duration `koanf:"run_timeout" validate:"gte=0"`
	FetchWebsites  bool          `koanf:"fetch_websites"`
	UpdateExisting bool          `koanf:"update_existing"`
	WebOnly        bool          `koanf:"web_only"`
	Interval       time.Duration `koanf:"interval" validate:"gte=1m"`
}

type ReportConfig struct {
	Concurrency     int           `koanf:"concurrency" validate:"gte=1,lte=50"`
	DefinitionsFile string        `koanf:"definitions_file"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "ga4mirror.db"},
		GA4: GA4Config{
			PageSize:             200,
			ReportPageSize:       10000,
			MaxDimensionsPerCall: report.DefaultMaxDimensionsPerCall,
			CallTimeout:          60 * time.Second,
			RateLimit:            ratelimit.Set{Default: ratelimit.DefaultConfig()},
			Breaker:              ga4.DefaultBreakerConfig(),
		},
		Sync: SyncConfig{
			Concurrency:   5,
			FetchWebsites: true,
			WebOnly:       true,
			Interval:      time.Hour,
		},
		Report: ReportConfig{
			Concurrency: 5,
			CacheTTL:    15 * time.Minute,
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load layers defaults, the YAML file at path (or the first of PathEnvVar and
// DefaultPaths that exists) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps GA4MIRROR_GA4__RATE_LIMIT__DEFAULT__BURST to ga4.rate_limit.default.burst.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Report.DefinitionsFile != "" {
		if _, err := os.Stat(c.Report.DefinitionsFile); err != nil {
			return fmt.Errorf("invalid config: report definitions: %w", err)
		}
	}
	return nil
}

// Client returns the provider client settings.
func (c GA4Config) Client() ga4.Config {
	return ga4.Config{
		AdminBaseURL:   c.AdminBaseURL,
		DataBaseURL:    c.DataBaseURL,
		PageSize:       c.PageSize,
		ReportPageSize: c.ReportPageSize,
		RateLimits:     c.RateLimit,
		Breaker:        c.Breaker,
		RequestTimeout: c.RequestTimeout,
	}
}

// Reconcile returns the reconciler settings.
func (c *Config) Reconcile() reconcile.Config {
	return reconcile.Config{
		Concurrency: c.Sync.Concurrency,
		CallTimeout: c.GA4.CallTimeout,
		RunTimeout:  c.Sync.RunTimeout,
		WebOnly:     c.Sync.WebOnly,
	}
}

// ReportService returns the report service settings.
func (c *Config) ReportService() report.ServiceConfig {
	return report.ServiceConfig{
		MaxDimensionsPerCall: c.GA4.MaxDimensionsPerCall,
		Concurrency:          c.Report.Concurrency,
		CallTimeout:          c.GA4.CallTimeout,
	}
}

// Logger returns the logging settings.
func (c *Config) Logger() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: true,
	}
}
