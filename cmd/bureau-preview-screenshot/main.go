// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-preview-screenshot saves one screenshot of a page:
//
//	bureau-preview-screenshot [flags] <url> <output>
//
// The page is loaded in headless Chromium and captured once the
// network has been idle for half a second (at most 30s). The output
// is PNG unless the path ends in .jpg or .jpeg. --full-page captures
// the whole scrollable document instead of the viewport.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/process"
	"github.com/bureau-foundation/preview/lib/version"
)

const binaryName = "bureau-preview-screenshot"

func main() {
	process.Exit(run(os.Args[1:]))
}

type options struct {
	url      string
	output   string
	fullPage bool
	viewport browser.Viewport
	quality  int
}

func run(args []string) error {
	var (
		parsed           options
		browserBin       string
		browserNoSandbox bool
		showHelp         bool
		showVersion      bool
	)
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.BoolVar(&parsed.fullPage, "full-page", false, "capture the full scrollable page")
	flagSet.IntVar(&parsed.viewport.Width, "viewport-width", 1280, "viewport width in pixels")
	flagSet.IntVar(&parsed.viewport.Height, "viewport-height", 720, "viewport height in pixels")
	flagSet.IntVar(&parsed.quality, "quality", 90, "JPEG quality (0-100), ignored for PNG")
	flagSet.StringVar(&browserBin, "browser-bin", "", "Chromium executable (default: locate or download)")
	flagSet.BoolVar(&browserNoSandbox, "browser-no-sandbox", false, "run Chromium with --no-sandbox")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(os.Stderr, flagSet)
			return nil
		}
		return err
	}
	if showHelp {
		printHelp(os.Stderr, flagSet)
		return nil
	}
	if showVersion {
		version.Print(binaryName)
		return nil
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("expected <url> <output>, got %d arguments", flagSet.NArg())
	}
	parsed.url, parsed.output = flagSet.Arg(0), flagSet.Arg(1)
	if parsed.viewport.Width <= 0 || parsed.viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %v", parsed.viewport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()
	engine := &browser.Rod{Bin: browserBin, NoSandbox: browserNoSandbox}
	return capture(ctx, engine, parsed)
}

func capture(ctx context.Context, engine browser.ScreenshotEngine, parsed options) error {
	data, err := browser.Screenshot(ctx, engine, parsed.url, browser.ScreenshotOptions{
		Viewport: parsed.viewport,
		Format:   browser.FormatForPath(parsed.output),
		Quality:  parsed.quality,
		FullPage: parsed.fullPage,
	})
	if err != nil {
		return fmt.Errorf("capturing %s: %w", parsed.url, err)
	}
	if err := os.WriteFile(parsed.output, data, 0644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Save one screenshot of a page.

Usage:
  %s [flags] <url> <output>

Examples:
  %[1]s http://localhost:5173 preview.png
  %[1]s --full-page http://localhost:5173 page.jpg

Flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
