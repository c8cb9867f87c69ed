// Package logging builds the zap loggers used across the daemon.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// File receives JSON logs with rotation. Empty means console output to Console.
	File string
	// Console is the console sink; defaults to stderr.
	Console io.Writer
}

// New returns the root logger. The detached daemon has no terminal, so it
// logs to a rotating file; foreground runs log to the console.
func New(opts Options) (*zap.Logger, error) {
	var (
		enc  zapcore.Encoder
		sink zapcore.WriteSyncer
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     28,
		})
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc = zapcore.NewConsoleEncoder(ec)
		w := opts.Console
		if w == nil {
			w = os.Stderr
		}
		sink = zapcore.Lock(zapcore.AddSync(w))
	}

	// The core stays at debug; Component raises the floor per logger.
	return zap.New(zapcore.NewCore(enc, sink, zapcore.DebugLevel)), nil
}

// Component returns a named child logger that drops debug entries unless
// debug is set.
func Component(root *zap.Logger, name string, debug bool) *zap.Logger {
	l := root.Named(name)
	if debug {
		return l
	}
	return l.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
}
