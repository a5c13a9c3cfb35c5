// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-preview-status prints the status file written by
// bureau-preview-stream --status-file:
//
//	bureau-preview-status --status-file /run/bureau/preview.status [--json | --raw]
//
// On a terminal the snapshot is rendered as a short colored summary;
// with --json, or when stdout is not a terminal, it is printed as
// JSON. --raw prints the CBOR diagnostic notation of the file as
// written. Exits 1 when the file is missing or unreadable.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/preview/lib/codec"
	"github.com/bureau-foundation/preview/lib/process"
	"github.com/bureau-foundation/preview/lib/statusfile"
	"github.com/bureau-foundation/preview/lib/termout"
	"github.com/bureau-foundation/preview/lib/version"
)

const binaryName = "bureau-preview-status"

// statusFileVariable names the status file when --status-file is not
// given.
const statusFileVariable = "BUREAU_PREVIEW_STATUS_FILE"

func main() {
	process.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) error {
	var (
		path        string
		jsonOutput  bool
		raw         bool
		showHelp    bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.StringVar(&path, "status-file", "", fmt.Sprintf("status file to read (default: $%s)", statusFileVariable))
	flagSet.BoolVar(&jsonOutput, "json", false, "print JSON even on a terminal")
	flagSet.BoolVar(&raw, "raw", false, "print the file in CBOR diagnostic notation")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			flagSet.SetOutput(os.Stderr)
			flagSet.PrintDefaults()
			return nil
		}
		return err
	}
	if showHelp {
		fmt.Fprintf(os.Stderr, "Show the state of a running preview agent.\n\nUsage:\n  %s --status-file PATH [--json]\n\nFlags:\n", binaryName)
		flagSet.SetOutput(os.Stderr)
		flagSet.PrintDefaults()
		return nil
	}
	if showVersion {
		version.Print(binaryName)
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if path == "" {
		path = os.Getenv(statusFileVariable)
	}
	if path == "" {
		return fmt.Errorf("--status-file is required (or set $%s)", statusFileVariable)
	}

	if raw {
		return printDiagnostic(stdout, path)
	}

	status, err := statusfile.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no status file at %s: is bureau-preview-stream running with --status-file?", path)
		}
		return err
	}

	color := termout.IsTerminal(stdout)
	if jsonOutput || !color {
		return termout.WriteJSON(stdout, status, color)
	}
	_, err = io.WriteString(stdout, render(status, time.Now(), termout.Renderer(stdout, color)))
	return err
}

// printDiagnostic dumps the undecoded file, for status files written
// by a newer agent than this reader understands.
func printDiagnostic(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	_, err = fmt.Fprintln(w, diagnostic)
	return err
}

// render formats status as a labelled summary.
func render(status statusfile.Status, now time.Time, renderer *lipgloss.Renderer) string {
	label := renderer.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	phase := renderer.NewStyle().Bold(true).Foreground(phaseColor(status))
	faint := renderer.NewStyle().Faint(true)

	var builder strings.Builder
	line := func(name, value string) {
		builder.WriteString("  " + label.Render(name) + value + "\n")
	}

	builder.WriteString("preview agent " + phase.Render(status.Phase) + "\n")
	line("session", status.SessionID)
	line("target", status.TargetURL)
	if status.PID != 0 {
		line("pid", fmt.Sprint(status.PID))
	}
	line("frames", fmt.Sprintf("%d sent, %d dropped, %d unchanged, %d capture failures",
		status.Sent, status.Dropped, status.Duplicates, status.CaptureFailures))
	if status.LastFrameNumber > 0 {
		line("last", fmt.Sprintf("#%d %s", status.LastFrameNumber, faint.Render(status.LastFingerprint)))
	}
	if !status.StartedAt.IsZero() {
		line("started", fmt.Sprintf("%s %s", status.StartedAt.Local().Format(time.DateTime),
			faint.Render("("+formatDuration(now.Sub(status.StartedAt))+" ago)")))
	}
	if !status.UpdatedAt.IsZero() {
		line("updated", formatDuration(status.Age(now))+" ago")
	}
	if status.Error != "" {
		errorStyle := renderer.NewStyle().Foreground(lipgloss.Color("196"))
		line("error", errorStyle.Render(status.Error))
	}
	return builder.String()
}

func phaseColor(status statusfile.Status) lipgloss.Color {
	switch {
	case status.Error != "":
		return lipgloss.Color("196")
	case status.Phase == "streaming":
		return lipgloss.Color("42")
	case status.Phase == "waiting_for_target" || status.Phase == "init":
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("245")
	}
}

// formatDuration rounds to whole seconds below an hour and to minutes
// above.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Hour {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Minute).String()
}
