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
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Router RouterConfig `yaml:"router" mapstructure:"router"`
	Matrix MatrixConfig `yaml:"matrix" mapstructure:"matrix"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures the claims fetch stage.
type FetchConfig struct {
	TopK             int     `yaml:"topk" mapstructure:"topk"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	BackoffSecs      float64 `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	BackoffMult      float64 `yaml:"backoff_mult" mapstructure:"backoff_mult"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	SleepMillis      int     `yaml:"sleep_millis" mapstructure:"sleep_millis"`
	SleepJitterFrac  float64 `yaml:"sleep_jitter_fraction" mapstructure:"sleep_jitter_fraction"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	ClaimSources     string  `yaml:"claim_sources" mapstructure:"claim_sources"`
	StrictSources    bool    `yaml:"strict_sources" mapstructure:"strict_sources"`
	Resume           bool    `yaml:"resume" mapstructure:"resume"`
	Force            bool    `yaml:"force" mapstructure:"force"`
	MinClaimsOKRatio float64 `yaml:"min_claims_ok_ratio" mapstructure:"min_claims_ok_ratio"`
	FailOnLowOK      bool    `yaml:"fail_on_low_ok" mapstructure:"fail_on_low_ok"`
}

// CacheConfig configures the on-disk evidence cache.
type CacheConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MemTTLMins int    `yaml:"mem_ttl_mins" mapstructure:"mem_ttl_mins"`
}

// RouterConfig configures jurisdiction routing.
type RouterConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// MatrixConfig configures the novelty matrix stage.
type MatrixConfig struct {
	MaxDocs          int     `yaml:"max_docs" mapstructure:"max_docs"`
	MaxFeatures      int     `yaml:"max_features" mapstructure:"max_features"`
	YesThreshold     float64 `yaml:"yes_threshold" mapstructure:"yes_threshold"`
	PartialThreshold float64 `yaml:"partial_threshold" mapstructure:"partial_threshold"`
	SnippetWindow    int     `yaml:"snippet_window" mapstructure:"snippet_window"`
	MaxSnippets      int     `yaml:"max_snippets" mapstructure:"max_snippets"`
	MaxNovelty       int     `yaml:"max_novelty" mapstructure:"max_novelty"`
	MaxPairs         int     `yaml:"max_pairs" mapstructure:"max_pairs"`
	UnionThreshold   float64 `yaml:"union_threshold" mapstructure:"union_threshold"`
	CoThreshold      float64 `yaml:"co_threshold" mapstructure:"co_threshold"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	MinClaimsOKRatio float64 `yaml:"min_claims_ok_ratio" mapstructure:"min_claims_ok_ratio"`
	FailOnLowOK      bool    `yaml:"fail_on_low_ok" mapstructure:"fail_on_low_ok"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-request fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Backoff returns the initial retry backoff.
func (c FetchConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSecs * float64(time.Second))
}

// Sleep returns the politeness delay between page fetches.
func (c FetchConfig) Sleep() time.Duration {
	return time.Duration(c.SleepMillis) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRIORART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.topk", 10)
	v.SetDefault("fetch.timeout_secs", 40)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.backoff_secs", 2.0)
	v.SetDefault("fetch.backoff_mult", 2.0)
	v.SetDefault("fetch.jitter_fraction", 0.2)
	v.SetDefault("fetch.sleep_millis", 1500)
	v.SetDefault("fetch.sleep_jitter_fraction", 0.4)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) prior-art-research/1.0")
	v.SetDefault("fetch.claim_sources", "auto")
	v.SetDefault("fetch.strict_sources", false)
	v.SetDefault("fetch.resume", true)
	v.SetDefault("fetch.force", false)
	v.SetDefault("fetch.min_claims_ok_ratio", 0.6)
	v.SetDefault("fetch.fail_on_low_ok", false)
	v.SetDefault("cache.dir", ".cache/evidence")
	v.SetDefault("cache.mem_ttl_mins", 60)
	v.SetDefault("matrix.max_docs", 10)
	v.SetDefault("matrix.max_features", 12)
	v.SetDefault("matrix.yes_threshold", 0.6)
	v.SetDefault("matrix.partial_threshold", 0.25)
	v.SetDefault("matrix.snippet_window", 90)
	v.SetDefault("matrix.max_snippets", 3)
	v.SetDefault("matrix.max_novelty", 10)
	v.SetDefault("matrix.max_pairs", 12)
	v.SetDefault("matrix.union_threshold", 0.3)
	v.SetDefault("matrix.co_threshold", 0.2)
	v.SetDefault("matrix.workers", 4)
	v.SetDefault("matrix.min_claims_ok_ratio", 0.6)
	v.SetDefault("matrix.fail_on_low_ok", false)
	v.SetDefault("store.path", "priorart.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
