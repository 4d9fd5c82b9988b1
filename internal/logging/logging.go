// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// FileName is the log file created inside Options.Dir.
const FileName = "quarry.log"

// Options controls where and how logs are written.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	// Dir receives FileName. Empty disables file logging.
	Dir string
	// Verbose forces debug level.
	Verbose bool
	// Console defaults to os.Stderr. Stdout is never used: it carries the
	// stdio transport.
	Console io.Writer
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from opts and installs it as the slog default. The
// returned closer releases the log file and is never nil.
func Setup(opts Options) (io.Closer, error) {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if opts.Console != nil {
		out = opts.Console
	}

	var closer io.Closer = nopCloser{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return closer, quarryerr.Wrapf(err, quarryerr.CodeCLISetupFailure, "creating log directory %s", opts.Dir)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closer, quarryerr.Wrapf(err, quarryerr.CodeCLISetupFailure, "opening log file in %s", opts.Dir)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
