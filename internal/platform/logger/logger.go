// Package logger wraps a zap SugaredLogger with key/value methods that scrub
// credentials and searchable content before they reach the sink.
package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *redactor
}

// New builds a JSON logger for "prod"/"production" and a console logger otherwise.
// LOG_LEVEL overrides the level; LOG_REDACTION_ENABLED=false disables scrubbing.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	def := zapcore.DebugLevel
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		def = zapcore.InfoLevel
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv(def))
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: z.Sugar(), scrub: redactorFromEnv()}, nil
}

// FromEnv reads LOG_MODE, defaulting to development.
func FromEnv() (*Logger, error) {
	mode := os.Getenv("LOG_MODE")
	if mode == "" {
		mode = "development"
	}
	return New(mode)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), scrub: &redactor{}}
}

func levelFromEnv(def zapcore.Level) zapcore.Level {
	raw := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if raw == "" {
		return def
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		return def
	}
	return lvl
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.scrub.kvs(kv)...)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	l.SugaredLogger.Infow(msg, l.scrub.kvs(kv)...)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.scrub.kvs(kv)...)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.scrub.kvs(kv)...)
}

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.scrub.kvs(kv)...)
}

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.kvs(kv)...), scrub: l.scrub}
}

// WithContext attaches the trace and request ids carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	kv := ctxutil.TraceKVs(ctx)
	if len(kv) == 0 {
		return l
	}
	return l.With(kv...)
}
