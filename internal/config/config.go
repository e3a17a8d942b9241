package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// RateLimitConfig caps chat messages per session. Messages <= 0 disables it.
type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode            string          `mapstructure:"mode"`
	Port            int             `mapstructure:"port"`
	ReadLimit       int64           `mapstructure:"read_limit"`
	PingPeriod      time.Duration   `mapstructure:"ping_period"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	WriteWait       time.Duration   `mapstructure:"write_wait"`
	QueueSize       int             `mapstructure:"queue_size"`
	OverflowPolicy  string          `mapstructure:"overflow_policy"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	Secret          string          `mapstructure:"secret"`
	JWT             JWTConfig       `mapstructure:"jwt"`
	Store           StoreConfig     `mapstructure:"store"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("idle_timeout", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("queue_size", 64)
	v.SetDefault("overflow_policy", "disconnect")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.issuer", "chat")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "chat.db")
	v.SetDefault("store.path", "./data/messages")
	v.SetDefault("rate_limit.messages", 30)
	v.SetDefault("rate_limit.interval", "10s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) and applies
// CHAT_* environment overrides, e.g. CHAT_STORE_DRIVER=badger.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("chat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be positive")
	}
	if c.PingPeriod <= 0 || c.IdleTimeout <= c.PingPeriod {
		return fmt.Errorf("idle_timeout (%s) must exceed ping_period (%s)", c.IdleTimeout, c.PingPeriod)
	}
	if c.RateLimit.Messages > 0 && c.RateLimit.Interval <= 0 {
		return errors.New("rate_limit.interval must be positive")
	}
	switch c.OverflowPolicy {
	case "disconnect", "drop":
	default:
		return fmt.Errorf("unknown overflow_policy %q", c.OverflowPolicy)
	}
	return nil
}
