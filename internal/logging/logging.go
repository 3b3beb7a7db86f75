// Package logging builds the process logger. Every entry goes to stdout, to an
// optional log file, and into an in-memory ring that the debug endpoint reads.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how New builds the logger.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // console or json
	File       string // empty disables the file sink
	BufferSize int    // ring capacity, DefaultRingSize when <= 0

	// Output overrides stdout, mostly for tests.
	Output io.Writer
}

// Logger bundles the zap logger with the ring it feeds.
type Logger struct {
	*zap.Logger
	Ring *Ring

	closeFile func()
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(consoleCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}

	ring := NewRing(opts.BufferSize)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(out), level),
		NewRingCore(ring, level),
	}

	closeFile := func() {}
	if opts.File != "" {
		ws, closer, err := zap.Open(opts.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		// The file always gets JSON so it can be parsed later.
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level))
		closeFile = closer
	}

	return &Logger{
		Logger:    zap.New(zapcore.NewTee(cores...)),
		Ring:      ring,
		closeFile: closeFile,
	}, nil
}

// Close flushes buffered output and closes the log file, if any.
func (l *Logger) Close() {
	_ = l.Sync()
	l.closeFile()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
