// Package log builds the process logger from the log section of the
// configuration.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/realDragonium/bungeespoof/config"
)

// Init creates the logger described by cfg. Output always goes to stdout,
// and to a rotated file when file output is enabled.
func Init(cfg config.LogConfig) (*logrus.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, stdout io.Writer) (*logrus.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	writers := []io.Writer{stdout}
	if cfg.File.Enabled {
		w, err := createFileWriter(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}
	return logger, nil
}

func parseLevel(levelStr string) (logrus.Level, error) {
	switch strings.ToLower(levelStr) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func createFileWriter(fc config.FileLogConfig) (io.Writer, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSize,    // megabytes
		MaxBackups: fc.MaxBackups, // number of backups
		MaxAge:     fc.MaxAge,     // days
		Compress:   fc.Compress,
	}, nil
}
