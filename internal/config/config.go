package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Network    NetworkConfig    `yaml:"network" mapstructure:"network"`
	Detect     DetectConfig     `yaml:"detect" mapstructure:"detect"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RegistryConfig holds registry API settings.
type RegistryConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SmoothRPS   int    `yaml:"smooth_rps" mapstructure:"smooth_rps"`
}

// RateLimitConfig bounds the shared registry request budget.
type RateLimitConfig struct {
	MaxRequests int `yaml:"max_requests" mapstructure:"max_requests"`
	WindowSecs  int `yaml:"window_secs" mapstructure:"window_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"`
	JobTimeoutSecs int `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
}

// NetworkConfig bounds officer-network expansion.
type NetworkConfig struct {
	MaxDepth    int  `yaml:"max_depth" mapstructure:"max_depth"`
	MaxEntities int  `yaml:"max_entities" mapstructure:"max_entities"`
	ActiveOnly  bool `yaml:"active_only" mapstructure:"active_only"`
}

// DetectConfig tunes mismatch detection.
type DetectConfig struct {
	NameThreshold float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
}

// CheckpointConfig configures durable run state.
type CheckpointConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig configures the scan result cache.
type CacheConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	TTLDays int    `yaml:"ttl_days" mapstructure:"ttl_days"`
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
	v.SetEnvPrefix("SIGNALWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.base_url", "https://api.company-information.service.gov.uk")
	v.SetDefault("registry.user_agent", "signalwatch/1.0")
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.smooth_rps", 5)
	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_secs", 300)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.job_timeout_secs", 120)
	v.SetDefault("network.max_depth", 1)
	v.SetDefault("network.max_entities", 500)
	v.SetDefault("network.active_only", true)
	v.SetDefault("detect.name_threshold", 0.85)
	v.SetDefault("checkpoint.path", "signalwatch.db")
	v.SetDefault("cache.path", "signalwatch.db")
	v.SetDefault("cache.ttl_days", 7)
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

// Validate checks the fields required for the given run mode. Scan and
// resume hit the registry, so they need credentials and sane bounds; status
// only reads local state.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scan", "resume":
		if c.Registry.Key == "" {
			problems = append(problems, "registry.key is required")
		}
		if c.Registry.BaseURL == "" {
			problems = append(problems, "registry.base_url is required")
		}
		if c.RateLimit.MaxRequests < 1 {
			problems = append(problems, "rate_limit.max_requests must be >= 1")
		}
		if c.RateLimit.WindowSecs < 1 {
			problems = append(problems, "rate_limit.window_secs must be >= 1")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			problems = append(problems, "batch.concurrency must be between 1 and 50")
		}
		if c.Network.MaxDepth < 0 {
			problems = append(problems, "network.max_depth must be >= 0")
		}
		if c.Network.MaxEntities < 1 {
			problems = append(problems, "network.max_entities must be >= 1")
		}
		if c.Detect.NameThreshold <= 0 || c.Detect.NameThreshold > 1 {
			problems = append(problems, "detect.name_threshold must be in (0, 1]")
		}
	case "status":
		if c.Checkpoint.Path == "" {
			problems = append(problems, "checkpoint.path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
