// Package config loads jobsweep settings from defaults, an optional YAML file,
// the environment (including a .env file) and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/jobsweep/internal/analyzer"
	"github.com/FranksOps/jobsweep/internal/apperr"
	"github.com/FranksOps/jobsweep/internal/queries"
	"github.com/FranksOps/jobsweep/internal/storage"
	"github.com/FranksOps/jobsweep/pkg/useragent"
)

// Sink names accepted in storage.sinks.
const (
	SinkS3       = "s3"
	SinkFile     = "file"
	SinkCSV      = "csv"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

var knownSinks = []string{SinkS3, SinkFile, SinkCSV, SinkSQLite, SinkPostgres}

type Config struct {
	Bucket    string   `mapstructure:"bucket"`
	QueryFile string   `mapstructure:"query_file"`
	Keywords  []string `mapstructure:"keywords"`

	Search  SearchConfig  `mapstructure:"search"`
	Storage StorageConfig `mapstructure:"storage"`
	S3      S3Config      `mapstructure:"s3"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SearchConfig struct {
	Provider   string   `mapstructure:"provider"`
	APIKey     string   `mapstructure:"api_key"`
	Endpoint   string   `mapstructure:"endpoint"`
	Engine     string   `mapstructure:"engine"`
	MaxPages   int      `mapstructure:"max_pages"`
	PageSize   int      `mapstructure:"page_size"`
	UserAgents []string `mapstructure:"user_agents"`
	UARotation string   `mapstructure:"ua_rotation"`
}

type StorageConfig struct {
	Sinks       []string `mapstructure:"sinks"`
	KeyPrefix   string   `mapstructure:"key_prefix"`
	Dir         string   `mapstructure:"dir"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresDSN string   `mapstructure:"postgres_dsn"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	Fingerprint  string        `mapstructure:"fingerprint"`
	UserAgent    string        `mapstructure:"user_agent"`

	// ProxyFile lists proxies searches rotate through, one URL per line.
	ProxyFile        string        `mapstructure:"proxy_file"`
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job"`
	Addr    string `mapstructure:"addr"`

	// Instance groups pushed metrics together with Job. Empty groups by job
	// alone.
	Instance string `mapstructure:"instance"`
}

// LoadOptions points Load at optional inputs. A missing .env or default
// jobsweep.yaml is ignored; an explicit ConfigFile must exist.
type LoadOptions struct {
	ConfigFile string // YAML; empty searches ./jobsweep.yaml
	EnvFile    string // dotenv; empty tries ./.env
	Flags      *pflag.FlagSet
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"bucket":       "bucket",
	"query-file":   "query_file",
	"keyword":      "keywords",
	"provider":     "search.provider",
	"max-pages":    "search.max_pages",
	"page-size":    "search.page_size",
	"sink":         "storage.sinks",
	"output-dir":   "storage.dir",
	"sqlite-path":  "storage.sqlite_path",
	"postgres":     "storage.postgres_dsn",
	"fingerprint":  "http.fingerprint",
	"proxy-file":   "http.proxy_file",
	"timeout":      "http.timeout",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"push-url":     "metrics.push_url",
	"metrics-addr": "metrics.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bucket", "")
	v.SetDefault("query_file", queries.DefaultPath)
	v.SetDefault("keywords", analyzer.DefaultKeywords)

	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.engine", "google")
	v.SetDefault("search.max_pages", 2)
	v.SetDefault("search.page_size", 100)
	v.SetDefault("search.user_agents", []string{})
	v.SetDefault("search.ua_rotation", string(useragent.RotateSequential))

	v.SetDefault("storage.sinks", []string{SinkS3})
	v.SetDefault("storage.key_prefix", storage.DefaultKeyPrefix)
	v.SetDefault("storage.dir", "findings")
	v.SetDefault("storage.sqlite_path", "jobsweep.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.fingerprint", "go")
	v.SetDefault("http.user_agent", "jobsweep/1.0")
	v.SetDefault("http.proxy_file", "")
	v.SetDefault("http.proxy_max_failures", 3)
	v.SetDefault("http.proxy_cooldown", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.push_url", "")
	v.SetDefault("metrics.job", "jobsweep")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.instance", "")
}

// Load builds a Config. It does not validate; call Validate before use.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOBSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The deployment names predate the JOBSWEEP_ prefix.
	_ = v.BindEnv("bucket", "JOBSWEEP_BUCKET", "S3_BUCKET_NAME")
	_ = v.BindEnv("search.api_key", "JOBSWEEP_SEARCH_API_KEY", "SERPAPI_API_KEY")
	_ = v.BindEnv("s3.region", "JOBSWEEP_S3_REGION", "AWS_REGION")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("jobsweep")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.Search.APIKey = strings.TrimSpace(c.Search.APIKey)
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	c.Storage.Sinks = splitList(c.Storage.Sinks)
	for i, s := range c.Storage.Sinks {
		c.Storage.Sinks[i] = strings.ToLower(s)
	}
	c.Keywords = splitList(c.Keywords)
}

// splitList trims entries and drops blanks. Comma-separated environment
// values are already split by the unmarshal hook; entries from YAML or flags
// are kept whole.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Storage.Sinks, name)
}

// NeedsAPIKey reports whether the configured provider authenticates with an
// API key.
func (c *Config) NeedsAPIKey() bool {
	return c.Search.Provider == "" || c.Search.Provider == "serpapi"
}

// Validate returns a KindConfig error describing the first problem found.
// Missing credentials are reported together by their environment names.
func (c *Config) Validate() error {
	var missing []string
	if c.HasSink(SinkS3) && c.Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if c.NeedsAPIKey() && c.Search.APIKey == "" {
		missing = append(missing, "SERPAPI_API_KEY")
	}
	if len(missing) > 0 {
		return apperr.Configf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	switch c.Search.Provider {
	case "serpapi", "duckduckgo", "ddg":
	default:
		return apperr.Configf("unknown search provider %q", c.Search.Provider)
	}
	if c.Search.MaxPages < 1 {
		return apperr.Configf("search.max_pages must be at least 1, got %d", c.Search.MaxPages)
	}
	if c.Search.PageSize < 1 {
		return apperr.Configf("search.page_size must be at least 1, got %d", c.Search.PageSize)
	}
	if len(c.Keywords) == 0 {
		return apperr.Configf("no keywords configured")
	}
	if strings.TrimSpace(c.QueryFile) == "" {
		return apperr.Configf("query_file is empty")
	}

	if len(c.Storage.Sinks) == 0 {
		return apperr.Configf("no storage sinks configured")
	}
	for _, s := range c.Storage.Sinks {
		if !slices.Contains(knownSinks, s) {
			return apperr.Configf("unknown storage sink %q", s)
		}
	}
	if (c.HasSink(SinkFile) || c.HasSink(SinkCSV)) && c.Storage.Dir == "" {
		return apperr.Configf("storage.dir is required for the file and csv sinks")
	}
	if c.HasSink(SinkSQLite) && c.Storage.SQLitePath == "" {
		return apperr.Configf("storage.sqlite_path is required for the sqlite sink")
	}
	if c.HasSink(SinkPostgres) && c.Storage.PostgresDSN == "" {
		return apperr.Configf("storage.postgres_dsn is required for the postgres sink")
	}
	if c.HTTP.Timeout < 0 {
		return apperr.Configf("http.timeout must not be negative")
	}
	if c.HTTP.ProxyMaxFailures < 0 || c.HTTP.ProxyCooldown < 0 {
		return apperr.Configf("http.proxy_max_failures and http.proxy_cooldown must not be negative")
	}
	if _, err := useragent.ParseRotation(c.Search.UARotation); err != nil {
		return apperr.Configf("search.ua_rotation: %v", err)
	}
	return nil
}
