// Package logging builds the zap logger shared by markbook components.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/markbook/markbook/internal/config"
)

// Logger wraps zap.SugaredLogger and owns the rotating file sink, if any.
type Logger struct {
	*zap.SugaredLogger
	closer io.Closer
}

// New creates a logger from cfg. Console format writes human readable lines
// to stderr; json format uses zap's production encoder. When cfg.File is set,
// output goes to a lumberjack rotating file instead.
func New(cfg config.LogConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var (
		sink   zapcore.WriteSyncer
		closer io.Closer
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		sink = zapcore.AddSync(lj)
		closer = lj
		// No color codes in files.
		if cfg.Format != "json" {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Format != "json" {
		opts = append(opts, zap.Development())
	}

	return &Logger{
		SugaredLogger: zap.New(core, opts...).Sugar(),
		closer:        closer,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *zap.SugaredLogger {
	return l.SugaredLogger.With("component", component)
}

// Close flushes buffered entries and closes the file sink.
func (l *Logger) Close() error {
	// Sync on stderr fails with EINVAL on some platforms; nothing to report.
	_ = l.SugaredLogger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
