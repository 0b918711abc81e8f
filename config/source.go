package config

// ConfigSource is one origin of configuration data. Files, environment
// variables and in-memory overrides all implement it.
type ConfigSource interface {
	// Name identifies the source in logs
	Name() string

	// Priority orders merging, higher overrides lower.
	// Conventional values: defaults 1, config file 10, environment 50.
	Priority() int

	// Load returns the source's data as a flat map with dot-separated
	// keys, such as "system.collect_interval_ms".
	Load() (map[string]interface{}, error)
}
