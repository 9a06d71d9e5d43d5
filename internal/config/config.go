// Package config loads settings from config/config.<CONFIG_ENV>.yaml, .env and
// CONSULT_-prefixed environment variables, in increasing precedence.
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

type ProbeConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Ceiling   time.Duration `mapstructure:"ceiling"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	URL           string `mapstructure:"url"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	// server
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	Secret           string        `mapstructure:"secret"`
	AppID            string        `mapstructure:"app_id"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`

	// client
	ServerURL      string        `mapstructure:"server_url"`
	ReservationURL string        `mapstructure:"reservation_url"`
	AutoJoin       bool          `mapstructure:"auto_join"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout"`

	Probe ProbeConfig `mapstructure:"probe"`
	Redis RedisConfig `mapstructure:"redis"`
	Log   LogConfig   `mapstructure:"log"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("module", "config").Err(err).Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("CONSULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("app_id", "consult")
	v.SetDefault("token_ttl", "2m")
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "3s")

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("reservation_url", "http://localhost:8081")
	v.SetDefault("auto_join", false)
	v.SetDefault("join_timeout", "15s")

	v.SetDefault("probe.endpoints", []string{
		"https://www.google.com/generate_204",
		"https://www.cloudflare.com/cdn-cgi/trace",
		"https://www.microsoft.com",
	})
	v.SetDefault("probe.ceiling", "3s")
	v.SetDefault("probe.timeout", "5s")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel_prefix", "consult:events:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	if cfg.JoinTimeout <= 0 {
		return nil, errors.New("config: join_timeout must be positive")
	}
	return &cfg, nil
}

// ValidateServer checks what the relay server needs beyond the defaults.
func (c *Config) ValidateServer() error {
	if c.Secret == "" {
		return errors.New("config: secret must be set to sign session tokens")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token_ttl must be positive")
	}
	return nil
}
