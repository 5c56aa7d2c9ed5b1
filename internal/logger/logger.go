package logger

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	l *zap.Logger
}

// New builds a production logger for env "production" and a colored development logger otherwise.
func New(env string) (*Logger, error) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &Logger{l: z}, nil
}

func Wrap(z *zap.Logger) *Logger {
	return &Logger{l: z.WithOptions(zap.AddCallerSkip(1))}
}

func NewNop() *Logger {
	return &Logger{l: zap.NewNop()}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) LogDebug(format string, v ...any) {
	l.l.Debug(fmt.Sprintf(format, v...))
}

// StdLog adapts the logger for consumers that need a *log.Logger, such as http.Server.ErrorLog.
func (l *Logger) StdLog() *log.Logger {
	return zap.NewStdLog(l.l)
}

func (l *Logger) Sync() {
	_ = l.l.Sync()
}
