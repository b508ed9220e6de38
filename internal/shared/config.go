package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv      string `yaml:"app_env"`
	AppVersion  string `yaml:"app_version"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	UpstreamURL        string `yaml:"upstream_url"`
	UpstreamKey        string `yaml:"upstream_api_key"`
	UpstreamTimeoutSec int    `yaml:"upstream_timeout_seconds"`
	RetryAttempts      int    `yaml:"upstream_retry_attempts"`
	UpstreamRPS        int    `yaml:"upstream_rps"`
	SearchWorkers      int    `yaml:"search_workers"`

	// Empty disables the store.
	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisPass string `yaml:"redis_password"`
	RedisDB   int    `yaml:"redis_db"`

	SessionTTLSeconds int `yaml:"booking_session_ttl_seconds"`
}

func Defaults() Config {
	return Config{
		AppEnv:             "prod",
		AppVersion:         "dev",
		HTTPAddr:           ":8080",
		UpstreamURL:        "https://hotel.sigtrip.ai/mcp",
		UpstreamTimeoutSec: 30,
		RetryAttempts:      2,
		UpstreamRPS:        5,
		SearchWorkers:      4,
		SessionTTLSeconds:  900,
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE, then
// environment variables.
func Load() Config {
	c := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.overlayFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config_file_ignored")
		}
	}
	c.overlayEnv()

	if c.UpstreamKey == "" {
		log.Warn().Msg("SIGTRIP_API_KEY is empty")
	}
	return c
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c.AppEnv = env("APP_ENV", c.AppEnv)
	c.AppVersion = env("APP_VERSION", c.AppVersion)
	c.HTTPAddr = env("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)
	c.UpstreamURL = env("SIGTRIP_UPSTREAM_URL", c.UpstreamURL)
	c.UpstreamKey = env("SIGTRIP_API_KEY", c.UpstreamKey)
	c.UpstreamTimeoutSec = atoi("SIGTRIP_TIMEOUT_SECONDS", c.UpstreamTimeoutSec)
	c.RetryAttempts = atoi("SIGTRIP_RETRY_ATTEMPTS", c.RetryAttempts)
	c.UpstreamRPS = atoi("SIGTRIP_RPS", c.UpstreamRPS)
	c.SearchWorkers = atoi("SEARCH_WORKERS", c.SearchWorkers)
	c.MySQLDSN = env("MYSQL_DSN", c.MySQLDSN)
	c.RedisAddr = env("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = env("REDIS_PASSWORD", c.RedisPass)
	c.RedisDB = atoi("REDIS_DB", c.RedisDB)
	c.SessionTTLSeconds = atoi("BOOKING_SESSION_TTL_SECONDS", c.SessionTTLSeconds)
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// ReadinessIssues lists what keeps the service from calling upstream.
func (c Config) ReadinessIssues() []string {
	var issues []string
	if c.UpstreamKey == "" {
		issues = append(issues, "SIGTRIP_API_KEY is not set")
	}
	if c.UpstreamURL == "" {
		issues = append(issues, "SIGTRIP_UPSTREAM_URL is not set")
	}
	return issues
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
