// Package log provides structured logging with run context, mirroring the
// teacher repo's two-tier logger: a non-sugared zap.Logger for core
// runtime paths (extraction/restoration workers) and a SugaredLogger for
// CLI/debug surfaces where printf-style convenience matters more than
// allocation cost.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lookervault/lookervault/types"
)

// Logger wraps zap.Logger with run identity fields attached to every entry.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger wraps zap.SugaredLogger for printf-style call sites.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger carrying the given run's identity fields. Output
// defaults to os.Stderr as structured JSON.
func New(run *types.RunMeta) *Logger {
	return newWithWriter(run, os.Stderr)
}

func newWithWriter(run *types.RunMeta, w io.Writer) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.DebugLevel)
	l := zap.New(core)
	if run != nil {
		l = l.With(
			zap.String("session_id", run.SessionID),
			zap.String("kind", string(run.Kind)),
		)
	}
	return &Logger{zap: l}
}

// WithOutput returns a new logger with a different output writer. Used by
// tests to capture log output.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// With returns a child logger with additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...)}
}

// Sugar returns a SugaredLogger sharing this logger's core.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Sync flushes any buffered log entries. Callers should defer Sync on
// process exit; errors are intentionally ignored for stderr targets that
// don't support syncing (e.g. under test harnesses).
func (l *Logger) Sync() { _ = l.zap.Sync() }

func (s *SugaredLogger) Infof(tmpl string, args ...any)  { s.sugar.Infof(tmpl, args...) }
func (s *SugaredLogger) Warnf(tmpl string, args ...any)  { s.sugar.Warnf(tmpl, args...) }
func (s *SugaredLogger) Errorf(tmpl string, args ...any) { s.sugar.Errorf(tmpl, args...) }
