// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-preview-inspect describes the DOM element under a point of a
// page, for the "click to select" feature of the preview pane:
//
//	bureau-preview-inspect [flags] <url> <x> <y> [width height]
//
// It prints one JSON object on stdout: {"element": {...}} with the
// element's selector, tag name, visible text, bounding rectangle and
// (for React pages) the owning component, or {"error": "No element at
// point"}. Failures, including bad arguments, print {"error": "..."} on
// stderr and exit 1. Output is syntax highlighted when stdout is a
// terminal. Flags must precede <url>, so negative coordinates parse as
// arguments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/process"
	"github.com/bureau-foundation/preview/lib/termout"
	"github.com/bureau-foundation/preview/lib/version"
)

const binaryName = "bureau-preview-inspect"

const noElement = "No element at point"

var defaultViewport = browser.Viewport{Width: 1280, Height: 720}

func main() {
	process.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type request struct {
	url      string
	x, y     int
	viewport browser.Viewport
}

type result struct {
	Element *browser.Element `json:"element,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		browserBin       string
		browserNoSandbox bool
		showHelp         bool
		showVersion      bool
	)
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&browserBin, "browser-bin", "", "Chromium executable (default: locate or download)")
	flagSet.BoolVar(&browserNoSandbox, "browser-no-sandbox", false, "run Chromium with --no-sandbox")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return reportFailure(stderr, err)
	}
	if showHelp {
		printHelp(stderr, flagSet)
		return nil
	}
	if showVersion {
		version.Print(binaryName)
		return nil
	}
	parsed, err := parseRequest(flagSet.Args())
	if err != nil {
		return reportFailure(stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()
	engine := &browser.Rod{Bin: browserBin, NoSandbox: browserNoSandbox}
	return inspect(ctx, engine, parsed, stdout, stderr)
}

// reportFailure writes err as {"error": "..."} on stderr and returns a
// silent exit 1.
func reportFailure(stderr io.Writer, err error) error {
	if writeErr := termout.WriteJSON(stderr, result{Error: err.Error()}, termout.IsTerminal(stderr)); writeErr != nil {
		return writeErr
	}
	return &process.ExitError{Code: 1}
}

// parseRequest reads <url> <x> <y> [width height]. A viewport that does
// not parse falls back to the default.
func parseRequest(args []string) (request, error) {
	if len(args) < 3 {
		return request{}, fmt.Errorf("expected <url> <x> <y> [width height], got %d arguments", len(args))
	}
	if len(args) > 5 {
		return request{}, fmt.Errorf("unexpected argument: %s", args[5])
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return request{}, fmt.Errorf("x must be an integer: %q", args[1])
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return request{}, fmt.Errorf("y must be an integer: %q", args[2])
	}

	parsed := request{url: args[0], x: x, y: y, viewport: defaultViewport}
	if len(args) == 5 {
		width, widthErr := strconv.Atoi(args[3])
		height, heightErr := strconv.Atoi(args[4])
		if widthErr == nil && heightErr == nil && width > 0 && height > 0 {
			parsed.viewport = browser.Viewport{Width: width, Height: height}
		}
	}
	return parsed, nil
}

// inspect prints the result JSON. Engine failures are reported as JSON
// on stderr and returned as a silent exit 1.
func inspect(ctx context.Context, engine browser.InspectEngine, parsed request, stdout, stderr io.Writer) error {
	element, err := browser.InspectPoint(ctx, engine, parsed.url, parsed.x, parsed.y, parsed.viewport)
	if err != nil {
		return reportFailure(stderr, err)
	}
	output := result{Element: element}
	if element == nil {
		output.Error = noElement
	}
	return termout.WriteJSON(stdout, output, termout.IsTerminal(stdout))
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Describe the element under a point of a page as JSON.

Usage:
  %s [flags] <url> <x> <y> [width height]

Flags must come before <url>.

Examples:
  %[1]s http://localhost:5173 200 140
  %[1]s http://localhost:5173 40 600 390 844

Flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
