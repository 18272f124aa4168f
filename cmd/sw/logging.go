package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger backed by a charmbracelet console handler.
func newLogger(w io.Writer, level log.Level) *slog.Logger {
	h := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return slog.New(h)
}

// setupLogging installs the console logger as the process default.
func setupLogging(debug bool) *slog.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	l := newLogger(os.Stderr, level)
	slog.SetDefault(l)
	return l
}

// serverLogLevel parses STORYWEB_LOG_LEVEL. --debug always wins.
func serverLogLevel(name string, debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
