// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured logger for bureau-preview
// binaries.
//
// When the output is a terminal the logger uses slog.TextHandler for
// human-readable lines; when it is piped or redirected (the normal
// case inside a sandbox, where a log relay collects stderr) it uses
// slog.JSONHandler. --log-format forces either one.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects the slog handler.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New. The zero value logs at Info to stderr with
// automatic format detection.
type Options struct {
	Format Format
	Level  slog.Level
	// Output defaults to os.Stderr. Terminal detection only applies
	// when Output is an *os.File.
	Output io.Writer
}

// New creates a logger according to options.
func New(options Options) *slog.Logger {
	output := options.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOptions := &slog.HandlerOptions{Level: options.Level}

	var handler slog.Handler
	if resolveFormat(options.Format, output) == FormatText {
		handler = slog.NewTextHandler(output, handlerOptions)
	} else {
		handler = slog.NewJSONHandler(output, handlerOptions)
	}
	return slog.New(handler)
}

func resolveFormat(format Format, output io.Writer) Format {
	switch format {
	case FormatText, FormatJSON:
		return format
	}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// ParseFormat validates a --log-format value.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(value)) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q (want auto, text, or json)", value)
}

// ParseLevel validates a --log-level value (debug, info, warn, error).
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if value == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", value, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything. Tests use it for
// components whose log output is not under test.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
