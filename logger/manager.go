package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one zap logger per module name
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	writers    map[string]*lumberjack.Logger
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates an independent manager instance.
// Zero-value fields in cfg are filled with defaults.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		writers:    make(map[string]*lumberjack.Logger),
	}
}

// InitManager initializes the global manager, first call wins
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

func defaultManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(DefaultManagerConfig())
	})
	return globalManager
}

// GetLogger returns (and lazily creates) the logger bound to moduleName
func (m *Manager) GetLogger(moduleName string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[moduleName]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// double check
	if l, ok := m.loggers[moduleName]; ok {
		return l
	}
	base := m.createLogger(moduleName)
	l := &CtxZapLogger{base: base, module: moduleName}
	m.loggers[moduleName] = l
	return l
}

// createLogger builds the underlying zap.Logger for one module
func (m *Manager) createLogger(moduleName string) *zap.Logger {
	cfg := m.baseConfig

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	cores := make([]zapcore.Core, 0, 2)
	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
	}
	if cfg.EnableFile {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.BaseLogDir, moduleName+".log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		m.writers[moduleName] = w
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(w), level))
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	l := zap.New(zapcore.NewTee(cores...), opts...)
	return l.With(zap.String("app", cfg.AppName), zap.String("module", moduleName))
}

// CloseAll flushes and closes every file writer
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
}

// GetLogger returns the module logger from the global manager
func GetLogger(moduleName string) *CtxZapLogger {
	return defaultManager().GetLogger(moduleName)
}

// CloseAll flushes the global manager
func CloseAll() {
	if globalManager != nil {
		globalManager.CloseAll()
	}
}
