// Package config loads pipex configuration from a YAML file and PIPEX_*
// environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
	"github.com/vnykmshr/pipex/pkg/common/validation"
	"github.com/vnykmshr/pipex/pkg/diagnostics"
	"github.com/vnykmshr/pipex/pkg/logging"
	"github.com/vnykmshr/pipex/pkg/metrics"
	"github.com/vnykmshr/pipex/pkg/scheduling/pipeline"
	"github.com/vnykmshr/pipex/pkg/strategy"
)

// EnvPrefix prefixes environment overrides: PIPEX_PIPELINE_DEFAULT_WINDOW
// overrides pipeline.default_window.
const EnvPrefix = "PIPEX"

// Diagnostics sink kinds.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkNone  = "none"
)

// Config is the root configuration.
type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Logging     logging.Config    `yaml:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" mapstructure:"diagnostics"`
}

// PipelineConfig holds executor defaults.
type PipelineConfig struct {
	DefaultWindow  int           `yaml:"default_window" mapstructure:"default_window"`
	DefaultWorkers int           `yaml:"default_workers" mapstructure:"default_workers"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	Address   string `yaml:"address" mapstructure:"address"`
}

// DiagnosticsConfig selects where LogAndIgnore failure records go.
type DiagnosticsConfig struct {
	Sink  string      `yaml:"sink" mapstructure:"sink"`
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the Redis stream sink.
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Stream   string        `yaml:"stream" mapstructure:"stream"`
	MaxLen   int64         `yaml:"max_len" mapstructure:"max_len"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{
			DefaultWindow: pipeline.DefaultWindow,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: metrics.DefaultNamespace,
			Address:   ":9090",
		},
		Diagnostics: DiagnosticsConfig{
			Sink: SinkLog,
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Stream:  diagnostics.DefaultStream,
				Timeout: 2 * time.Second,
			},
		},
	}
}

// Load reads path, when non-empty, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, gferrors.NewOperationError("config", "Load", err).WithContext(path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, gferrors.NewOperationError("config", "Unmarshal", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("pipeline.default_window", d.Pipeline.DefaultWindow)
	v.SetDefault("pipeline.default_workers", d.Pipeline.DefaultWorkers)
	v.SetDefault("pipeline.timeout", d.Pipeline.Timeout)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.no_color", d.Logging.NoColor)
	v.SetDefault("logging.timestamp", d.Logging.Timestamp)
	v.SetDefault("logging.caller", d.Logging.Caller)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.address", d.Metrics.Address)

	v.SetDefault("diagnostics.sink", d.Diagnostics.Sink)
	v.SetDefault("diagnostics.redis.addr", d.Diagnostics.Redis.Addr)
	v.SetDefault("diagnostics.redis.password", d.Diagnostics.Redis.Password)
	v.SetDefault("diagnostics.redis.db", d.Diagnostics.Redis.DB)
	v.SetDefault("diagnostics.redis.stream", d.Diagnostics.Redis.Stream)
	v.SetDefault("diagnostics.redis.max_len", d.Diagnostics.Redis.MaxLen)
	v.SetDefault("diagnostics.redis.timeout", d.Diagnostics.Redis.Timeout)
}

// Validate checks every section and joins the errors.
func (c Config) Validate() error {
	var errs []error

	errs = append(errs,
		validation.ValidateNonNegative("config", "pipeline.default_window", c.Pipeline.DefaultWindow),
		validation.ValidateNonNegative("config", "pipeline.default_workers", c.Pipeline.DefaultWorkers),
	)
	if c.Pipeline.Timeout < 0 {
		errs = append(errs, gferrors.NewValidationError("config", "pipeline.timeout", c.Pipeline.Timeout, "cannot be negative"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validation.ValidateOneOf("config", "diagnostics.sink", c.Diagnostics.Sink, SinkLog, SinkRedis, SinkNone))
	if strings.EqualFold(c.Diagnostics.Sink, SinkRedis) {
		errs = append(errs,
			validation.ValidateNotEmpty("config", "diagnostics.redis.addr", c.Diagnostics.Redis.Addr),
			validation.ValidateNonNegative("config", "diagnostics.redis.max_len", c.Diagnostics.Redis.MaxLen),
		)
	}

	return errors.Join(errs...)
}

// MetricsRegistry returns the registry selected by the metrics section, or
// nil when metrics are disabled.
func (c Config) MetricsRegistry(reg prometheus.Registerer) *metrics.Registry {
	return metrics.FromConfig(metrics.Config{
		Enabled:   c.Metrics.Enabled,
		Registry:  reg,
		Namespace: c.Metrics.Namespace,
	})
}

// Sink builds the diagnostics sink. The returned close function releases
// the Redis client, if any.
func (c Config) Sink(logger zerolog.Logger) (diagnostics.Sink, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(c.Diagnostics.Sink) {
	case SinkNone:
		return diagnostics.Nop(), noop, nil
	case SinkRedis:
		rc := c.Diagnostics.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		sink, err := diagnostics.NewRedisSink(diagnostics.RedisConfig{
			Client:  client,
			Stream:  rc.Stream,
			MaxLen:  rc.MaxLen,
			Timeout: rc.Timeout,
		})
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, client.Close, nil
	}
	return diagnostics.NewLogSink(logger), noop, nil
}

// Executor builds a pipeline executor from the pipeline section. The
// registry, logger and metrics are supplied by the caller.
func (c Config) Executor(registry *strategy.Registry, logger *zerolog.Logger, m *metrics.Registry) (*pipeline.Executor, error) {
	return pipeline.NewSafe(pipeline.Config{
		Registry:       registry,
		DefaultWindow:  c.Pipeline.DefaultWindow,
		DefaultWorkers: c.Pipeline.DefaultWorkers,
		Timeout:        c.Pipeline.Timeout,
		Logger:         logger,
		Metrics:        m,
	})
}
