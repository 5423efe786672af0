package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	EDGAR      EDGARConfig      `yaml:"edgar" mapstructure:"edgar"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EDGARConfig configures access to the SEC endpoints.
type EDGARConfig struct {
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	SubmissionsBaseURL string `yaml:"submissions_base_url" mapstructure:"submissions_base_url"`
	ArchivesBaseURL    string `yaml:"archives_base_url" mapstructure:"archives_base_url"`
	BrowseBaseURL      string `yaml:"browse_base_url" mapstructure:"browse_base_url"`
	RequestDelayMs     int    `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// RequestDelay returns the per-host pacing interval.
func (c EDGARConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout.
func (c EDGARConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// IngestConfig configures the ingest engine.
type IngestConfig struct {
	InvestorsFile      string  `yaml:"investors_file" mapstructure:"investors_file"`
	WholeDollarFile    string  `yaml:"whole_dollar_file" mapstructure:"whole_dollar_file"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	QuarterConcurrency int     `yaml:"quarter_concurrency" mapstructure:"quarter_concurrency"`
	MaxQuarters        int     `yaml:"max_quarters" mapstructure:"max_quarters"`
	PlausibilityFactor float64 `yaml:"plausibility_factor" mapstructure:"plausibility_factor"`
}

// StoreConfig configures snapshot storage and the run log backend.
type StoreConfig struct {
	SnapshotDir string `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnalysisConfig holds change detection and trending thresholds.
type AnalysisConfig struct {
	CacheTTLMins              int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	MinInvestors              int     `yaml:"min_investors" mapstructure:"min_investors"`
	MinValueDelta             int64   `yaml:"min_value_delta" mapstructure:"min_value_delta"`
	MajorMoveThreshold        int64   `yaml:"major_move_threshold" mapstructure:"major_move_threshold"`
	SignificantValueThreshold int64   `yaml:"significant_value_threshold" mapstructure:"significant_value_threshold"`
	SignificantPercent        float64 `yaml:"significant_percent" mapstructure:"significant_percent"`
}

// CacheTTL returns the snapshot read cache TTL.
func (c AnalysisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMins) * time.Minute
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run-health alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SkipRateThreshold    float64 `yaml:"skip_rate_threshold" mapstructure:"skip_rate_threshold"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	RepeatAfterHours     int     `yaml:"repeat_after_hours" mapstructure:"repeat_after_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOLDINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("edgar.user_agent", "Sells Advisors research@sellsadvisors.com")
	v.SetDefault("edgar.submissions_base_url", "https://data.sec.gov/submissions")
	v.SetDefault("edgar.archives_base_url", "https://www.sec.gov/Archives/edgar/data")
	v.SetDefault("edgar.browse_base_url", "https://www.sec.gov/cgi-bin/browse-edgar")
	v.SetDefault("edgar.request_delay_ms", 2000)
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.max_retries", 3)
	v.SetDefault("edgar.retry_backoff_ms", 2000)
	v.SetDefault("ingest.investors_file", "investors.yaml")
	v.SetDefault("ingest.whole_dollar_file", "whole_dollar.yaml")
	v.SetDefault("ingest.concurrency", 2)
	v.SetDefault("ingest.quarter_concurrency", 2)
	v.SetDefault("ingest.max_quarters", 8)
	v.SetDefault("ingest.plausibility_factor", 50.0)
	v.SetDefault("store.snapshot_dir", "data/holdings")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "holdings.db")
	v.SetDefault("analysis.cache_ttl_mins", 30)
	v.SetDefault("analysis.min_investors", 2)
	v.SetDefault("analysis.min_value_delta", 100_000_000)
	v.SetDefault("analysis.major_move_threshold", 1_000_000_000)
	v.SetDefault("analysis.significant_value_threshold", 100_000_000)
	v.SetDefault("analysis.significant_percent", 10.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 900)
	v.SetDefault("monitoring.lookback_window_hours", 168)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.skip_rate_threshold", 0.5)
	v.SetDefault("monitoring.stale_after_hours", 48)
	v.SetDefault("monitoring.repeat_after_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if !strings.Contains(c.EDGAR.UserAgent, "@") {
		return eris.Errorf("config: edgar.user_agent %q must include a contact email", c.EDGAR.UserAgent)
	}
	if c.Ingest.Concurrency < 1 {
		return eris.Errorf("config: ingest.concurrency must be at least 1, got %d", c.Ingest.Concurrency)
	}
	if c.Ingest.QuarterConcurrency < 1 {
		return eris.Errorf("config: ingest.quarter_concurrency must be at least 1, got %d", c.Ingest.QuarterConcurrency)
	}
	if c.Ingest.PlausibilityFactor != 0 && c.Ingest.PlausibilityFactor <= 1 {
		return eris.Errorf("config: ingest.plausibility_factor must exceed 1, got %g", c.Ingest.PlausibilityFactor)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
