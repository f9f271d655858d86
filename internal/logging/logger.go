// Package logging builds the process logger. Logs never go to stdout,
// stdout carries relayed chat bytes only.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rectcircle/netchat/internal/config"
)

// New - build a logger writing to stderr and, when configured, a rotated file
func New(c config.LogConfig) (*zap.Logger, error) {
	return build(c, zapcore.Lock(os.Stderr), IsTerminal(os.Stderr))
}

func build(c config.LogConfig, console zapcore.WriteSyncer, consoleIsTerminal bool) (*zap.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(c.Format, consoleIsTerminal), console, level),
	}
	if c.File != "" {
		if dir := filepath.Dir(c.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create log dir %s", dir)
			}
		}
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    atLeast(c.MaxSizeMB, 1),
			MaxBackups: atLeast(c.MaxBackups, 0),
			MaxAge:     atLeast(c.MaxAgeDays, 0),
			Compress:   c.Compress,
		})
		// files are read by tools, not people
		cores = append(cores, zapcore.NewCore(encoder("json", false), file, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}

// ParseLevel - debug, info, warn (or warning) and error
func ParseLevel(s string) (zap.AtomicLevel, error) {
	if s == "warning" {
		s = "warn"
	}
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return zap.AtomicLevel{}, errors.Wrapf(err, "invalid log level %q", s)
	}
	return zap.NewAtomicLevelAt(l), nil
}

func encoder(format string, isTerminal bool) zapcore.Encoder {
	if format == "json" || (format == "auto" && !isTerminal) {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	if isTerminal {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// IsTerminal - whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// OrNop - l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func atLeast(v, min int) int {
	if v < min {
		return min
	}
	return v
}
