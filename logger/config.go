package logger

// ManagerConfig global logger configuration shared by all modules
type ManagerConfig struct {
	// BaseLogDir log root directory (default logs/)
	BaseLogDir string `mapstructure:"base_log_dir"`

	// Level minimum level: debug, info, warn, error (default info)
	Level string `mapstructure:"level"`

	// AppName injected into every record as the app field
	AppName string `mapstructure:"app_name"`

	// Encoding json or console (default json)
	Encoding string `mapstructure:"encoding"`

	// EnableConsole mirror records to stderr
	EnableConsole bool `mapstructure:"enable_console"`

	// EnableFile write records to rotated files under BaseLogDir
	EnableFile bool `mapstructure:"enable_file"`

	// File rotation (lumberjack)
	MaxSize    int  `mapstructure:"max_size"`    // MB per file
	MaxBackups int  `mapstructure:"max_backups"` // old files kept
	MaxAge     int  `mapstructure:"max_age"`     // days kept
	Compress   bool `mapstructure:"compress"`

	// EnableCaller annotate records with file:line
	EnableCaller bool `mapstructure:"enable_caller"`
}

// DefaultManagerConfig returns the defaults used when a zero config is given
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseLogDir:    "logs",
		Level:         "info",
		AppName:       "aegis",
		Encoding:      "json",
		EnableConsole: true,
		EnableFile:    false,
		MaxSize:       100,
		MaxBackups:    5,
		MaxAge:        7,
	}
}

// ApplyDefaults fills zero-value fields in place
func (c *ManagerConfig) ApplyDefaults() {
	def := DefaultManagerConfig()
	if c.BaseLogDir == "" {
		c.BaseLogDir = def.BaseLogDir
	}
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.AppName == "" {
		c.AppName = def.AppName
	}
	if c.Encoding == "" {
		c.Encoding = def.Encoding
	}
	if c.MaxSize == 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = def.MaxAge
	}
	if !c.EnableConsole && !c.EnableFile {
		c.EnableConsole = true
	}
}
