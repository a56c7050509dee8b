package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Messenger  MessengerConfig  `yaml:"messenger" mapstructure:"messenger"`
	Agent      ServerConfig     `yaml:"agent" mapstructure:"agent"`
	Evaluator  ServerConfig     `yaml:"evaluator" mapstructure:"evaluator"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// PerplexityConfig holds Perplexity Search API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig throttles and guards search provider calls.
type SearchConfig struct {
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Breaker returns the circuit breaker settings.
func (c SearchConfig) Breaker() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: c.BreakerFailures,
		ResetTimeout:     time.Duration(c.BreakerResetSecs) * time.Second,
	}
}

// MessengerConfig configures remote actor calls.
type MessengerConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-call timeout.
func (c MessengerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures one actor host.
type ServerConfig struct {
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
	CardURL string `yaml:"card_url" mapstructure:"card_url"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublicURL returns the URL advertised in the agent card.
func (c ServerConfig) PublicURL() string {
	if c.CardURL != "" {
		return c.CardURL
	}
	return fmt.Sprintf("http://%s:%d/", c.Host, c.Port)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("perplexity.key", "INVEST_PERPLEXITY_KEY", "PERPLEXITY_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("search.breaker_failures", 5)
	v.SetDefault("search.breaker_reset_secs", 30)
	v.SetDefault("messenger.timeout_secs", 300)
	v.SetDefault("agent.host", "127.0.0.1")
	v.SetDefault("agent.port", 9119)
	v.SetDefault("agent.card_url", "")
	v.SetDefault("evaluator.host", "127.0.0.1")
	v.SetDefault("evaluator.port", 9109)
	v.SetDefault("evaluator.card_url", "")
	v.SetDefault("pricing.perplexity.per_query", 0.005)

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

// Validate checks the settings a command needs. mode is one of "agent",
// "evaluator", "research" or "evaluate". The search credential is checked
// where the provider client is built.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Search.RatePerSec < 0 {
		errs = append(errs, "search.rate_per_sec must be >= 0")
	}
	if c.Search.BreakerResetSecs < 0 {
		errs = append(errs, "search.breaker_reset_secs must be >= 0")
	}

	switch mode {
	case "agent":
		errs = append(errs, c.Agent.validate("agent")...)
	case "evaluator":
		errs = append(errs, c.Evaluator.validate("evaluator")...)
		errs = append(errs, c.requireTimeout()...)
	case "research":
	case "evaluate":
		errs = append(errs, c.requireTimeout()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c ServerConfig) validate(section string) []string {
	var errs []string
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, section+".port must be between 1 and 65535")
	}
	return errs
}

func (c *Config) requireTimeout() []string {
	if c.Messenger.TimeoutSecs <= 0 {
		return []string{"messenger.timeout_secs must be > 0"}
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
