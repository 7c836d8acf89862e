// Package logger builds the zap logger shared by the engine and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level
type Level int

const (
	// LevelOff disables all logging
	LevelOff Level = iota
	// LevelError shows failures only
	LevelError
	// LevelWarn adds persistence and configuration warnings
	LevelWarn
	// LevelInfo shows basic progress information
	LevelInfo
	// LevelDebug shows detailed debugging information
	LevelDebug
)

var levelNames = map[string]Level{
	"off":   LevelOff,
	"error": LevelError,
	"warn":  LevelWarn,
	"info":  LevelInfo,
	"debug": LevelDebug,
}

// ParseLevel maps a level name to a Level. An empty name means warn.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return LevelWarn, nil
	}
	if name == "warning" {
		return LevelWarn, nil
	}
	lvl, ok := levelNames[name]
	if !ok {
		return LevelOff, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

func (l Level) String() string {
	for name, lvl := range levelNames {
		if lvl == l {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// FromFlags resolves the effective level. --debug beats --verbose, and both
// beat the configured level.
func FromFlags(configured string, verbose, debug bool) (Level, error) {
	switch {
	case debug:
		return LevelDebug, nil
	case verbose:
		return LevelInfo, nil
	}
	return ParseLevel(configured)
}

// Options configure New.
type Options struct {
	Level Level
	// JSON selects the JSON encoder instead of the console encoder.
	JSON bool
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a logger. LevelOff yields a no-op logger.
func New(opts Options) *zap.Logger {
	if opts.Level == LevelOff {
		return zap.NewNop()
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(opts.Level.zapLevel()))
	return zap.New(core)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
