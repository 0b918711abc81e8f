package config

import (
	"os"
	"strings"
)

// EnvSource reads configuration from environment variables. Every variable
// under the prefix is translated with the first underscore starting the
// leaf key: AEGIS_SYSTEM_COLLECT_INTERVAL_MS becomes
// system.collect_interval_ms. Top-level keys containing an underscore
// cannot be reached by the scan and need an explicit AddBinding; bindings
// take precedence over scanned values.
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string
}

// NewEnvSource creates an environment source with the given prefix
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding maps one config key to one environment variable, such as
// AddBinding("system.enabled", "SYSTEM_ENABLED").
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string {
	return "env:" + s.prefix
}

func (s *EnvSource) Priority() int {
	return s.priority
}

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	if s.prefix != "" {
		prefix := s.prefix + "_"
		for _, env := range os.Environ() {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := parts[0]
			value := parts[1]

			if strings.HasPrefix(key, prefix) {
				configKey := strings.ToLower(strings.TrimPrefix(key, prefix))
				// first underscore separates the section from the leaf,
				// the leaf keeps its underscores
				configKey = strings.Replace(configKey, "_", ".", 1)
				result[configKey] = value
			}
		}
	}

	for key, envKey := range s.bindings {
		fullEnvKey := envKey
		if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
			fullEnvKey = s.prefix + "_" + envKey
		}

		if value := os.Getenv(fullEnvKey); value != "" {
			result[key] = value
		}
	}

	return result, nil
}
