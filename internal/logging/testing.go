// pattern: Imperative Shell

package logging

import (
	"log/slog"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
// Use in tests or when logging is not configured.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a LoggerProvider for tests. It keeps every entry in
// memory at debug level and never touches the filesystem.
type TestLogManager struct {
	ring    *RingSink
	baseZap *zap.Logger
	loggers map[string]*ScopedLogger
	mu      sync.Mutex
}

// NewTestLogManager creates a TestLogManager holding up to size entries.
func NewTestLogManager(size int) *TestLogManager {
	ring := NewRingSink(size)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.EpochTimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(ring),
		zapcore.DebugLevel,
	)

	return &TestLogManager{
		ring:    ring,
		baseZap: zap.New(core),
		loggers: make(map[string]*ScopedLogger),
	}
}

// For returns a scoped logger for the given scope name.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[scope]; ok {
		return logger
	}

	zapLogger := m.baseZap.Named(scope)
	logger := &ScopedLogger{
		slog: slog.New(&zapSlogHandler{zap: zapLogger, level: zapcore.DebugLevel}),
		zap:  zapLogger,
	}
	m.loggers[scope] = logger
	return logger
}

// Recent returns up to n captured entries, oldest first.
func (m *TestLogManager) Recent(n int) []LogEntry {
	return m.ring.Recent(n)
}

// Messages returns the message text of every captured entry.
func (m *TestLogManager) Messages() []string {
	entries := m.ring.Recent(0)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
