package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Loader merges multiple configuration sources into one view. Sources are
// applied from lowest to highest priority and the merged result is served
// through viper, so struct unmarshalling and typed getters come for free.
type Loader struct {
	sources      []ConfigSource
	mergedConfig map[string]interface{}
	v            *viper.Viper
	loadedFiles  []string
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		sources:      make([]ConfigSource, 0),
		mergedConfig: make(map[string]interface{}),
		v:            viper.New(),
		loadedFiles:  make([]string, 0),
	}
}

// AddSource registers a configuration source
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load reads every source and rebuilds the merged view
func (l *Loader) Load() error {
	sort.Slice(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	l.mergedConfig = make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("config: source %s: %w", source.Name(), err)
		}

		if fileSource, ok := source.(*FileSource); ok {
			l.loadedFiles = append(l.loadedFiles, fileSource.path)
		}

		for key, value := range data {
			l.mergedConfig[key] = value
		}
	}

	l.syncToViper()

	return nil
}

// Reload re-reads every source
func (l *Loader) Reload() error {
	return l.Load()
}

func (l *Loader) syncToViper() {
	nested := unflattenMap(l.mergedConfig)

	l.v = viper.New()
	for key, value := range nested {
		l.v.Set(key, value)
	}
}

// unflattenMap rebuilds the nested form viper expects:
// {"system.enabled": true} becomes {"system": {"enabled": true}}
func unflattenMap(flat map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range flat {
		setNestedValue(result, key, value)
	}

	return result
}

func setNestedValue(m map[string]interface{}, key string, value interface{}) {
	keys := strings.Split(key, ".")
	if len(keys) == 0 {
		return
	}

	current := m
	for i := 0; i < len(keys)-1; i++ {
		k := keys[i]
		if _, ok := current[k]; !ok {
			current[k] = make(map[string]interface{})
		}

		if nested, ok := current[k].(map[string]interface{}); ok {
			current = nested
		} else {
			// a scalar at a prefix of this key, the deeper key wins
			newMap := make(map[string]interface{})
			current[k] = newMap
			current = newMap
		}
	}

	current[keys[len(keys)-1]] = value
}

// Unmarshal decodes the whole merged configuration into v
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey decodes one section of the merged configuration into v
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

// Get returns the raw value of a key
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a key as a string
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt returns a key as an int
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool returns a key as a bool
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet reports whether any source provided the key
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns the merged configuration as a nested map
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// GetLoadedFiles lists the files that contributed to the merged view
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetViper exposes the underlying viper instance
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}
