package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu         sync.Mutex
	file       *os.File
	base       *zap.Logger
	components map[string]*zap.SugaredLogger
	enabled    bool
)

// Init opens the log file and enables debug logging.
// If path is empty, logging is disabled.
func Init(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	mu.Lock()
	file = f
	base = zap.New(core)
	components = make(map[string]*zap.SugaredLogger)
	enabled = true
	mu.Unlock()
	Log("logger", "initialized, writing to %s", path)
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		_ = base.Sync()
		base = nil
	}
	if file != nil {
		file.Close()
		file = nil
	}
	components = nil
	enabled = false
}

// Log writes a debug line for the given component (e.g. "session",
// "worker", "catalogue"). Safe to call from any goroutine.
func Log(component, format string, args ...any) {
	if l := named(component); l != nil {
		l.Debugf(format, args...)
	}
}

// Error writes an error-level line for the given component.
func Error(component, format string, args ...any) {
	if l := named(component); l != nil {
		l.Errorf(format, args...)
	}
}

func named(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return nil
	}
	l, ok := components[component]
	if !ok {
		l = base.Named(component).Sugar()
		components[component] = l
	}
	return l
}
