package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-aegis/logger"
	"github.com/KOMKZ/go-aegis/stat"
)

// StatConfig sets the sliding-window geometry of resource statistics
type StatConfig struct {
	// SampleCountTotal buckets in the global write window
	SampleCountTotal uint32 `mapstructure:"sample_count_total" yaml:"sample_count_total"`
	// IntervalMsTotal span of the global write window in milliseconds
	IntervalMsTotal uint32 `mapstructure:"interval_ms_total" yaml:"interval_ms_total"`
	// SampleCount buckets in the default read window
	SampleCount uint32 `mapstructure:"sample_count" yaml:"sample_count"`
	// IntervalMs span of the default read window in milliseconds
	IntervalMs uint32 `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// SystemConfig controls the system metric collector
type SystemConfig struct {
	// Enabled starts the load and cpu collector with the engine
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// CollectIntervalMs sampling period, default 1000
	CollectIntervalMs uint32 `mapstructure:"collect_interval_ms" yaml:"collect_interval_ms"`
}

// MetricsConfig controls the OpenTelemetry instruments. Export cadence
// belongs to the host's metric reader, not to the engine.
type MetricsConfig struct {
	// Enabled registers the engine's instruments with the meter provider
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// EventConfig controls the event dispatcher
type EventConfig struct {
	// Enabled dispatches breaker transitions and rule reloads as events
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// PoolSize async worker pool size, default 100
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`
}

// EngineConfig is the whole engine configuration, one section per concern
type EngineConfig struct {
	// AppName identifies this process in logs and metrics
	AppName string `mapstructure:"app_name" yaml:"app_name"`

	Logger  logger.ManagerConfig `mapstructure:"logger" yaml:"logger"`
	Stat    StatConfig           `mapstructure:"stat" yaml:"stat"`
	System  SystemConfig         `mapstructure:"system" yaml:"system"`
	Metrics MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	Event   EventConfig          `mapstructure:"event" yaml:"event"`
}

// DefaultEngineConfig returns the configuration used when nothing is set
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AppName: "aegis",
		Logger:  logger.DefaultManagerConfig(),
		Stat: StatConfig{
			SampleCountTotal: stat.DefaultSampleCountTotal,
			IntervalMsTotal:  stat.DefaultIntervalMsTotal,
			SampleCount:      stat.DefaultSampleCount,
			IntervalMs:       stat.DefaultIntervalMs,
		},
		System: SystemConfig{
			Enabled:           true,
			CollectIntervalMs: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Event: EventConfig{
			Enabled:  true,
			PoolSize: 100,
		},
	}
}

// Validate reports whether the configuration is usable
func (c *EngineConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.AppName, validation.Required),
	)
	if err != nil {
		return err
	}
	if err := c.Stat.validate(); err != nil {
		return err
	}
	if c.System.Enabled && c.System.CollectIntervalMs == 0 {
		return fmt.Errorf("config: system.collect_interval_ms must be positive")
	}
	if c.Event.Enabled && c.Event.PoolSize <= 0 {
		return fmt.Errorf("config: event.pool_size must be positive")
	}
	return nil
}

func (s *StatConfig) validate() error {
	if s.SampleCountTotal == 0 || s.IntervalMsTotal == 0 {
		return fmt.Errorf("config: stat write window must have positive geometry")
	}
	if s.IntervalMsTotal%s.SampleCountTotal != 0 {
		return fmt.Errorf("config: stat.interval_ms_total must be divisible by stat.sample_count_total")
	}
	if s.SampleCount == 0 || s.IntervalMs == 0 {
		return fmt.Errorf("config: stat read window must have positive geometry")
	}
	if s.IntervalMs%s.SampleCount != 0 {
		return fmt.Errorf("config: stat.interval_ms must be divisible by stat.sample_count")
	}
	if s.IntervalMs > s.IntervalMsTotal {
		return fmt.Errorf("config: stat read window cannot exceed the write window")
	}
	return nil
}

// LoadEngineConfig builds the engine configuration from an optional file
// and AEGIS_-prefixed environment variables, lowest priority first.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	loader := NewLoader()
	if path != "" {
		loader.AddSource(NewFileSource(path, 10))
	}
	env := NewEnvSource("AEGIS", 50)
	// top-level multi-word key, out of reach of the prefix scan
	env.AddBinding("app_name", "APP_NAME")
	loader.AddSource(env)

	if err := loader.Load(); err != nil {
		return nil, err
	}

	cfg := DefaultEngineConfig()
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
