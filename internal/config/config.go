// Package config loads quakefusion's runtime configuration via viper,
// recognizing a YAML file plus environment-variable overrides, following
// the teacher stack's Load/MustLoad singleton convention.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/seismic-fusion/quakefusion/internal/source"
)

// ScoringWeights are the three match-scorer weights; they must sum to 1.
type ScoringWeights struct {
	Time      float64 `mapstructure:"time"`
	Distance  float64 `mapstructure:"distance"`
	Magnitude float64 `mapstructure:"magnitude"`
}

// ClusterConfig configures the clustering engine (§4.G).
type ClusterConfig struct {
	EpsKM          float64 `mapstructure:"eps_km"`
	DtSeconds      float64 `mapstructure:"dt_s"`
	DMag           float64 `mapstructure:"dmag"`
	MatchThreshold float64 `mapstructure:"match_threshold"`
}

// RetryConfig configures the transport client's retry policy (§4.B).
// BaseMS, CapMS and TimeoutMS feed every poller's RetryPolicy; MaxAttempts
// is loaded but not read by the pollers, whose attempt limit is each source
// descriptor's MaxRetries.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseMS      int `mapstructure:"base_ms"`
	CapMS       int `mapstructure:"cap_ms"`
	TimeoutMS   int `mapstructure:"timeout_ms"`
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the ambient HTTP/metrics listeners.
type ServerConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

// PostgresConfig configures the optional Postgres adapter.
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`
}

// NATSConfig configures the optional NATS adapter.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// OpenSearchConfig configures the optional OpenSearch adapter.
type OpenSearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
}

// RedisConfig configures the optional distributed rate-limiter adapter.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the full process configuration.
type Config struct {
	SourcesEnabled      []string         `mapstructure:"sources_enabled"`
	PollIntervalSec     map[string]int   `mapstructure:"poll_interval_sec"`
	WindowHours         int              `mapstructure:"window_hours"`
	ClusterIntervalSec  int              `mapstructure:"cluster_interval_sec"`
	Cluster             ClusterConfig    `mapstructure:"cluster"`
	ScoringWeights      ScoringWeights   `mapstructure:"scoring_weights"`
	Retry               RetryConfig      `mapstructure:"retry"`
	Log                 LogConfig        `mapstructure:"log"`
	Server              ServerConfig     `mapstructure:"server"`
	Postgres            PostgresConfig   `mapstructure:"postgres"`
	NATS                NATSConfig       `mapstructure:"nats"`
	OpenSearch          OpenSearchConfig `mapstructure:"opensearch"`
	Redis               RedisConfig      `mapstructure:"redis"`
}

// ClusterInterval returns the cadence at which the worker entry point runs
// the clustering-and-unification pass (spec.md §5's "own 5-minute-default
// cadence").
func (c *Config) ClusterInterval() time.Duration {
	return time.Duration(c.ClusterIntervalSec) * time.Second
}

// WindowDuration returns the clustering sliding-window width.
func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// RetryBase returns the retry backoff starting duration.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Retry.BaseMS) * time.Millisecond
}

// RetryCap returns the retry backoff cap.
func (c *Config) RetryCap() time.Duration {
	return time.Duration(c.Retry.CapMS) * time.Millisecond
}

// Timeout returns the per-source total fetch deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Retry.TimeoutMS) * time.Millisecond
}

// ApplyPollIntervalOverrides copies descriptors, replacing each one's
// MinPollInterval with the poll_interval_sec.<tag> config override when one
// is set (spec.md §6). Descriptors without an override pass through
// unchanged.
func (c *Config) ApplyPollIntervalOverrides(descriptors []source.Descriptor) []source.Descriptor {
	if len(c.PollIntervalSec) == 0 {
		return descriptors
	}
	out := make([]source.Descriptor, len(descriptors))
	for i, d := range descriptors {
		if sec, ok := c.PollIntervalSec[d.Tag]; ok && sec > 0 {
			d.MinPollInterval = time.Duration(sec) * time.Second
		}
		out[i] = d
	}
	return out
}

var (
	once   sync.Once
	global *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources_enabled", []string{"usgs", "emsc", "gfz", "isc", "ipgp", "geonet"})
	v.SetDefault("window_hours", 24)
	v.SetDefault("cluster_interval_sec", 300)

	v.SetDefault("cluster.eps_km", 100.0)
	v.SetDefault("cluster.dt_s", 30.0)
	v.SetDefault("cluster.dmag", 0.5)
	v.SetDefault("cluster.match_threshold", 0.6)

	v.SetDefault("scoring_weights.time", 0.4)
	v.SetDefault("scoring_weights.distance", 0.4)
	v.SetDefault("scoring_weights.magnitude", 0.2)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_ms", 1000)
	v.SetDefault("retry.cap_ms", 30000)
	v.SetDefault("retry.timeout_ms", 30000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.metrics_port", 9090)

	v.SetDefault("postgres.max_conns", 25)
	v.SetDefault("postgres.min_conns", 5)

	v.SetDefault("opensearch.index", "quakefusion-unified-events")
}

// Load reads configFile (if non-empty) plus QUAKEFUSION_* environment
// overrides into a Config. It does not install a process-wide singleton;
// call MustLoad for that.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUAKEFUSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validateWeights(cfg.ScoringWeights); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateWeights(w ScoringWeights) error {
	sum := w.Time + w.Distance + w.Magnitude
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring_weights must sum to 1, got %.3f", sum)
	}
	return nil
}

// MustLoad loads configuration once per process and caches it. Panics on
// error, matching the teacher's common/config startup convention — a
// ConfigError is fatal at startup only (spec.md §7).
func MustLoad(configFile string) *Config {
	once.Do(func() {
		cfg, err := Load(configFile)
		if err != nil {
			panic(fmt.Sprintf("config: %v", err))
		}
		global = cfg
	})
	return global
}

// Get returns the previously loaded singleton, or nil if MustLoad was never
// called.
func Get() *Config {
	return global
}
