package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the runtime configuration of the checkout server.
type Settings struct {
	HTTPAddr      string          `mapstructure:"http_addr"`
	CatalogFile   string          `mapstructure:"catalog_file"`
	SubmitTimeout time.Duration   `mapstructure:"submit_timeout"`
	Retry         RetrySettings   `mapstructure:"retry"`
	Breaker       BreakerSettings `mapstructure:"breaker"`
	Health        HealthSettings  `mapstructure:"health"`
	Redis         RedisSettings   `mapstructure:"redis"`
}

// RetrySettings configures the retry policy.
type RetrySettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BreakerSettings configures the per-adapter circuit breaker.
type BreakerSettings struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
}

// HealthSettings configures the provider health window.
type HealthSettings struct {
	WindowSize     int           `mapstructure:"window_size"`
	WindowDuration time.Duration `mapstructure:"window_duration"`
}

// RedisSettings selects the Redis result store. An empty Addr keeps results in memory.
type RedisSettings struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Default returns settings built from the package constants.
func Default() Settings {
	return Settings{
		HTTPAddr:      ServerPort,
		SubmitTimeout: SubmitTimeout,
		Retry: RetrySettings{
			MaxAttempts: MaxSubmitAttempts,
			BaseDelay:   RetryBaseDelay,
			MaxDelay:    RetryMaxDelay,
		},
		Breaker: BreakerSettings{
			Enabled:             true,
			ConsecutiveFailures: BreakerConsecutiveFailures,
			OpenTimeout:         BreakerOpenTimeout,
		},
		Health: HealthSettings{
			WindowSize:     HealthWindowSize,
			WindowDuration: time.Duration(HealthWindowDurationMinutes) * time.Minute,
		},
		Redis: RedisSettings{
			TTL: 24 * time.Hour,
		},
	}
}

// Load reads settings from an optional YAML file and CHECKOUT_* environment variables.
// Values not present in either keep their defaults.
func Load(path string) (Settings, error) {
	def := Default()

	v := viper.New()
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("catalog_file", def.CatalogFile)
	v.SetDefault("submit_timeout", def.SubmitTimeout)
	v.SetDefault("retry.max_attempts", def.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", def.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", def.Retry.MaxDelay)
	v.SetDefault("breaker.enabled", def.Breaker.Enabled)
	v.SetDefault("breaker.consecutive_failures", def.Breaker.ConsecutiveFailures)
	v.SetDefault("breaker.open_timeout", def.Breaker.OpenTimeout)
	v.SetDefault("health.window_size", def.Health.WindowSize)
	v.SetDefault("health.window_duration", def.Health.WindowDuration)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.ttl", def.Redis.TTL)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return def, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return def, fmt.Errorf("decode config: %w", err)
	}
	if err := s.validate(); err != nil {
		return def, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", s.Retry.MaxAttempts)
	}
	if s.SubmitTimeout < 0 {
		return fmt.Errorf("submit_timeout must not be negative")
	}
	if s.Health.WindowSize < 1 {
		return fmt.Errorf("health.window_size must be at least 1, got %d", s.Health.WindowSize)
	}
	return nil
}
