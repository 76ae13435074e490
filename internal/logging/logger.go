// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

// Package logging provides centralized zerolog-based logging for the API
// server and the job workers.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Service: "worker"})
//
//	logging.Info().Msg("Worker starting")
//	logging.Error().Err(err).Msg("Operation failed")
//
//	// With request or job context
//	logging.Ctx(ctx).Info().Str("experiment_id", id).Msg("Listing results")
//
// Server and worker processes usually ship into one log stream, so every
// line carries the "service" field set at Init. Always terminate log
// chains with .Msg() or .Send(); an unterminated event is never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string
	// Format is json or console.
	Format string
	// Caller includes caller file and line number in logs.
	Caller    bool
	Timestamp bool
	// Service names the process (server, worker) on every line. Optional.
	Service string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // logging must work before an explicit Init call
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	log = build(DefaultConfig())
}

// Init reconfigures the global logger. Later calls replace earlier ones.
func Init(cfg Config) {
	logger := build(cfg)
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	mu.Lock()
	defer mu.Unlock()
	log = logger
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return ctx.Logger()
}

// parseLevel maps a configured level to zerolog. Unknown or empty levels
// fall back to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger instance.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With creates a child logger context with additional fields.
//
//	storageLogger := logging.With().Str("backend", "webdav").Logger()
func With() zerolog.Context {
	l := Logger()
	return l.With()
}

func event(level zerolog.Level) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.WithLevel(level)
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event { return event(zerolog.DebugLevel) }

// Info starts a new message with info level.
func Info() *zerolog.Event { return event(zerolog.InfoLevel) }

// Warn starts a new message with warning level.
func Warn() *zerolog.Event { return event(zerolog.WarnLevel) }

// Error starts a new message with error level.
func Error() *zerolog.Event { return event(zerolog.ErrorLevel) }

// Fatal starts a new message with fatal level. The process exits after
// the message is written.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// NewTestLogger creates a logger that writes to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
