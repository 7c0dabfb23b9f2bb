// File: logging/logger.go
// Structured logging setup: logrus JSON output with optional rotation.
// License: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describe where and how verbosely to log.
type Options struct {
	Level      string // logrus level name, e.g. "info"
	FilePath   string // empty means stdout
	MaxSizeMB  int    // rotation threshold per file
	MaxBackups int
	Compress   bool
}

// Init builds the process logger. A log file that cannot be opened degrades
// to stdout with a warning rather than failing startup.
func Init(opts Options) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: parse level %q: %w", opts.Level, err)
	}

	output, outErr := buildOutput(opts)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outErr != nil {
		logger.WithField("path", opts.FilePath).Warn(outErr.Error())
	}
	return logger, nil
}

// buildOutput resolves the log destination; on failure it falls back to
// stdout and reports why.
func buildOutput(opts Options) (io.Writer, error) {
	if opts.FilePath == "" {
		return os.Stdout, nil
	}
	dir := filepath.Dir(opts.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("logging: create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
		LocalTime:  true,
	}, nil
}
