package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured key/value logger used across the service.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
	Sync() error
}

type Config struct {
	Level       string
	Development bool
}

// ZapLogger implements Logger on a zap sugared logger.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

// New builds a JSON logger (console encoding in development mode).
func New(cfg Config) (*ZapLogger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: l.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l.Sugar()}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warnw(msg, keysAndValues...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *ZapLogger) With(keysAndValues ...any) Logger {
	return &ZapLogger{logger: l.logger.With(keysAndValues...)}
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
