// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Level  string `yaml:"level"`  // logrus level name, default info
	Format string `yaml:"format"` // text or json, default text
}

// New returns a logger writing to stderr.
func New(cfg Config) (*logrus.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg Config, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid log level", goerr.Value("level", cfg.Level))
		}
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, goerr.New("invalid log format", goerr.Value("format", cfg.Format))
	}
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and library defaults.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
