package obs

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu    sync.RWMutex
	base  = newLogger(zapcore.AddSync(os.Stderr), zapcore.InfoLevel)
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Fields are structured key/values attached to a log event.
type Fields map[string]any

// LogConfig selects where logs go. Stdout is never used: it carries the
// status line.
type LogConfig struct {
	Debug bool
	// File enables a rotating log file instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func newLogger(w zapcore.WriteSyncer, lvl zapcore.Level) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	level.SetLevel(lvl)
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, level))
}

// Setup replaces the process logger. The returned function flushes and
// releases the sink.
func Setup(cfg LogConfig) func() {
	lvl := zapcore.InfoLevel
	if cfg.Debug {
		lvl = zapcore.DebugLevel
	}
	var (
		w      zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
		closer io.Closer
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w, closer = zapcore.AddSync(lj), lj
	}
	l := newLogger(w, lvl)
	mu.Lock()
	base = l
	mu.Unlock()
	return func() {
		_ = l.Sync()
		if closer != nil {
			_ = closer.Close()
		}
	}
}

// SetOutput points the logger at w. Used by tests.
func SetOutput(w io.Writer, debug bool) {
	lvl := zapcore.InfoLevel
	if debug {
		lvl = zapcore.DebugLevel
	}
	l := newLogger(zapcore.AddSync(w), lvl)
	mu.Lock()
	base = l
	mu.Unlock()
}

// EnableDebug toggles debug logs at runtime.
func EnableDebug(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

func logWith(lvl zapcore.Level, msg string, f Fields) {
	mu.RLock()
	l := base
	mu.RUnlock()
	ce := l.Check(lvl, msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(f))
	for k, v := range f {
		zf = append(zf, zap.Any(k, v))
	}
	ce.Write(zf...)
}

func Info(msg string, f Fields)  { logWith(zapcore.InfoLevel, msg, f) }
func Warn(msg string, f Fields)  { logWith(zapcore.WarnLevel, msg, f) }
func Error(msg string, f Fields) { logWith(zapcore.ErrorLevel, msg, f) }
func Debug(msg string, f Fields) { logWith(zapcore.DebugLevel, msg, f) }
