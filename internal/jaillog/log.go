// Package jaillog configures the process-wide logrus logger used by every
// jailrun component. All packages take a *logrus.Entry rather than reaching
// for a package-level global, so tests can swap in a discard logger.
package jaillog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Format selects the logrus formatter used for a logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Path   string // empty means stderr
	Format Format
	Level  logrus.Level
}

// New builds a *logrus.Logger per Options and returns it along with the
// open log file (nil when logging to stderr) so the caller can close it on
// exit.
func New(opts Options) (*logrus.Logger, *os.File, error) {
	logger := logrus.New()

	switch opts.Format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("jaillog: unknown log format %q", opts.Format)
	}

	level := opts.Level
	if level == 0 {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.Path == "" {
		logger.SetOutput(os.Stderr)
		return logger, nil, nil
	}

	f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("jaillog: open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// Component returns a child entry tagged with a "component" field, the
// logrus analogue of a "[prefix] " log.Logger convention.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
