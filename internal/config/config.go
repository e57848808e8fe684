package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel    string `toml:"log_level"`
	LogsPath    string `toml:"logs_path"`
	LogToStdout bool   `toml:"log_to_stdout"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// redis, optional; when disabled the rate limiter counts in-process
	RedisEnabled bool   `toml:"redis_enabled"`
	RedisHost    string `toml:"redis_host"`
	RedisPort    int    `toml:"redis_port"`

	// admin gateway
	// AdminPath is a literal path, a dynamic sentinel (random/auto/rotate)
	// or empty for the default /admin. The seed for sentinel values comes
	// from the environment, never from this file.
	AdminPath            string `toml:"admin_path"`
	SessionTTLHours      int    `toml:"session_ttl_hours"`
	LoginWindowMinutes   int    `toml:"login_window_minutes"`
	LoginMaxAttempts     int    `toml:"login_max_attempts"`
	AdminStaticFilesPath string `toml:"admin_static_files_path"`

	AllowedOrigins []string `toml:"allowed_origins"`

	// telemetry
	PrometheusMetricsPort int  `toml:"prometheus_metrics_port"`
	TracingEnabled        bool `toml:"tracing_enabled"`
	SentryEnabled         bool `toml:"sentry_enabled"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var configs Toml
	if _, err := toml.DecodeFile(path, &configs); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := configs.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}
