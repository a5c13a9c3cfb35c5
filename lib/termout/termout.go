// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package termout formats command output for terminals and pipes.
//
// The one-shot tools print JSON that is consumed by scripts most of
// the time and read by a person some of the time. Output is colored
// only when stdout is a terminal, so piped output stays plain JSON.
package termout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// WriteJSON writes v as indented JSON followed by a newline, syntax
// highlighted when color is true.
func WriteJSON(w io.Writer, v any, color bool) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')
	if color {
		var highlighted strings.Builder
		if err := quick.Highlight(&highlighted, string(data), "json", "terminal256", "monokai"); err == nil {
			_, err = io.WriteString(w, highlighted.String())
			return err
		}
	}
	_, err = w.Write(data)
	return err
}

// Renderer returns a lipgloss renderer for w. The color profile is set
// explicitly: lipgloss would otherwise re-detect it from the
// environment and ignore color.
func Renderer(w io.Writer, color bool) *lipgloss.Renderer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return renderer
}
