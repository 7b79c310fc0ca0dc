// Copyright 2024-2026 George (earentir) Pantazis (https://earentir.dev)
// SPDX-License-Identifier: GPL-2.0-only
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"publicresolvers/config"

	"golang.org/x/term"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	rotationCheckInterval = 5 * time.Minute
	// RunLog is the file written under the configured log directory.
	RunLog = "publicresolvers.log"
)

// safeWriter wraps a writer and on write failure falls back to stderr without failing.
type safeWriter struct {
	inner io.Writer
}

func (w *safeWriter) Write(p []byte) (n int, err error) {
	n, err = w.inner.Write(p)
	if err != nil {
		_, _ = os.Stderr.Write([]byte("[log write failed, logging to stderr] "))
		_, _ = os.Stderr.Write(p)
		return len(p), nil
	}
	return n, nil
}

// throttleRotateWriter wraps lumberjack and only runs a time-based rotation check every 5m.
type throttleRotateWriter struct {
	lj         *lj.Logger
	lastCheck  time.Time
	mu         sync.Mutex
	maxAgeDays int
}

func (w *throttleRotateWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	if time.Since(w.lastCheck) > rotationCheckInterval {
		w.lastCheck = time.Now()
		info, err := os.Stat(w.lj.Filename)
		if err == nil && info.ModTime().Before(time.Now().Add(-time.Duration(w.maxAgeDays)*24*time.Hour)) {
			_ = w.lj.Rotate()
		}
	}
	w.mu.Unlock()
	return w.lj.Write(p)
}

// buildLumberjack creates a lumberjack logger for the given path and config.
// For rotation "none", maxSize and maxAge are 0 (no rotation).
func buildLumberjack(logPath string, logCfg config.LogConfig) *lj.Logger {
	rot := &lj.Logger{Filename: logPath}
	switch logCfg.Rotation {
	case config.LogRotationSize:
		rot.MaxSize = logCfg.RotationSizeMB
		if rot.MaxSize <= 0 {
			rot.MaxSize = 100
		}
		rot.MaxAge = logCfg.RotationDays
		rot.MaxBackups = 3
	case config.LogRotationTime:
		rot.MaxAge = logCfg.RotationDays
		if rot.MaxAge <= 0 {
			rot.MaxAge = 7
		}
		rot.MaxBackups = 3
	}
	return rot
}

// SeverityNone disables logging: no files are created, all output is discarded.
const SeverityNone = "none"

func isSeverityNone(severity string) bool {
	return strings.EqualFold(strings.TrimSpace(severity), SeverityNone)
}

// levelFromSeverity maps config severity string to slog.Level.
func levelFromSeverity(severity string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case SeverityNone:
		return slog.LevelError + 1000
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newFileWriter creates an io.Writer for the given path and log config.
// It creates the directory if needed. On write failure it falls back to stderr (safeWriter).
func newFileWriter(logPath string, logCfg config.LogConfig) (io.Writer, error) {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	rot := buildLumberjack(logPath, logCfg)
	var inner io.Writer = rot
	if logCfg.Rotation == config.LogRotationTime {
		inner = &throttleRotateWriter{lj: rot, maxAgeDays: logCfg.RotationDays}
	}
	return &safeWriter{inner: inner}, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1000}))
}

// New builds the run logger. Console output goes to console with a text
// handler when it is an interactive terminal and JSON otherwise, so CI logs
// stay machine readable. When logCfg.Dir is set, records are also written as
// JSON to Dir/RunLog with lumberjack rotation. If severity is "none", no
// files are created and all log output is discarded.
func New(logCfg config.LogConfig, console io.Writer) *slog.Logger {
	if isSeverityNone(logCfg.Severity) {
		return Discard()
	}
	if console == nil {
		console = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: levelFromSeverity(logCfg.Severity)}

	var consoleHandler slog.Handler
	if isTerminal(console) {
		consoleHandler = slog.NewTextHandler(console, opts)
	} else {
		consoleHandler = slog.NewJSONHandler(console, opts)
	}
	if strings.TrimSpace(logCfg.Dir) == "" {
		return slog.New(consoleHandler)
	}

	logPath := filepath.Join(logCfg.Dir, RunLog)
	wr, err := newFileWriter(logPath, logCfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger: failed to open %s: %v; using console only\n", logPath, err)
		return slog.New(consoleHandler)
	}
	return slog.New(fanout{consoleHandler, slog.NewJSONHandler(wr, opts)})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
