package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// NewLogger builds a zap logger writing to stderr. format is "console" or "json".
func NewLogger(level, format string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "console", "text":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q (valid: console, json)", format)
	}

	// 日志统一写到stderr，stdout留给进度输出和集群摘要
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: z}, nil
}

func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

func (l *Logger) CommandAttempt(host, command string, attempt, total int) {
	l.Debug("running remote command",
		zap.String("type", "remote_command"),
		zap.String("host", host),
		zap.String("command", command),
		zap.Int("attempt", attempt),
		zap.Int("attempts", total),
	)
}

func (l *Logger) PhaseStep(phase, step, host string) {
	l.Info("executing phase step",
		zap.String("type", "phase"),
		zap.String("phase", phase),
		zap.String("step", step),
		zap.String("host", host),
	)
}

func (l *Logger) PhaseError(phase, host string, err error) {
	l.Error("phase failed",
		zap.String("type", "phase"),
		zap.String("phase", phase),
		zap.String("host", host),
		zap.Error(err),
	)
}

func (l *Logger) PhaseSuccess(phase, host string) {
	l.Info("phase completed",
		zap.String("type", "phase"),
		zap.String("phase", phase),
		zap.String("host", host),
	)
}
