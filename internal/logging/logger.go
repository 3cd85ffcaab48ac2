// Package logging configures the structured logger the pipelines thread
// through as an explicit dependency.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds logger configuration.
type Config struct {
	Level      slog.Level
	OutputFile string // path to a log file (empty = stderr only)
	JSONFormat bool   // JSON handler instead of text
	AddSource  bool   // include source file and line
}

// DefaultConfig returns a sensible configuration: debug runs get readable
// text with source locations, everything else structured JSON at info.
func DefaultConfig(debug bool) Config {
	if debug {
		return Config{Level: slog.LevelDebug, AddSource: true}
	}
	return Config{Level: slog.LevelInfo, JSONFormat: true}
}

// New builds a logger from the configuration. The returned closer is non-nil
// when a log file was opened.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	writers = append(writers, os.Stderr)

	var closer io.Closer
	if cfg.OutputFile != "" {
		dir := filepath.Dir(cfg.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
		file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputFile, err)
		}
		writers = append(writers, file)
		closer = file
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}
