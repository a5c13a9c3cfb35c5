// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/capture"
	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/config"
	"github.com/bureau-foundation/preview/lib/delivery"
	"github.com/bureau-foundation/preview/lib/logging"
	"github.com/bureau-foundation/preview/lib/probe"
	"github.com/bureau-foundation/preview/lib/process"
	"github.com/bureau-foundation/preview/lib/stream"
	"github.com/bureau-foundation/preview/lib/version"
)

const binaryName = "bureau-preview-stream"

// Exit codes beyond 0 (stopped) and 1 (could not start).
const (
	exitUnavailable = 2
	exitSetup       = 3
)

func main() {
	process.Exit(run(os.Args[1:]))
}

func run(args []string) error {
	var values flagValues
	flagSet := newFlagSet(&values)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(os.Stderr, flagSet)
			return nil
		}
		return err
	}
	if values.help {
		printHelp(os.Stderr, flagSet)
		return nil
	}
	if values.version {
		fmt.Printf("%s %s\n", binaryName, version.Full())
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	logger, err := newLogger(values.logFormat, values.logLevel)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(flagSet, &values)
	if err != nil {
		return err
	}

	return withExitCode(runAgent(cfg, logger))
}

// runAgent wires the collaborators and runs the loop until it stops.
func runAgent(cfg *config.Stream, logger *slog.Logger) error {
	clk := clock.Real()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	httpClient := &http.Client{Transport: transport}
	defer httpClient.CloseIdleConnections()

	sender, err := delivery.NewClient(delivery.Options{
		ControlPlaneURL: cfg.ControlPlaneURL,
		SessionID:       cfg.SessionID,
		AuthToken:       cfg.AuthToken,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay(),
		AttemptTimeout:  cfg.DeliveryTimeout(),
		Encoding:        delivery.Encoding(cfg.ContentEncoding),
		HTTPClient:      httpClient,
	}, clk, logger.With("component", "delivery"))
	if err != nil {
		return err
	}

	engine := &browser.Rod{
		Bin:       cfg.BrowserBin,
		NoSandbox: cfg.BrowserNoSandbox,
		Logger:    logger.With("component", "browser"),
	}
	session := capture.NewSession(engine, capture.Options{
		TargetURL:         cfg.TargetURL,
		Viewport:          browser.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		Quality:           cfg.Quality,
		NavigationTimeout: cfg.NavigationTimeout(),
	})

	var observer stream.Observer
	if cfg.StatusFile != "" {
		observer = newStatusPublisher(cfg, clk, os.Getpid(), logger)
	}

	loop, err := stream.New(stream.Options{
		Config:   cfg,
		Prober:   probe.New(httpClient, clk, logger.With("component", "probe")),
		Session:  session,
		Sender:   sender,
		Clock:    clk,
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		return err
	}

	signals, stopSignals := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stopSignals()
	unregister := context.AfterFunc(signals, loop.Stop)
	defer unregister()

	logger.Info("preview agent starting",
		"target_url", cfg.TargetURL,
		"endpoint", sender.Endpoint(),
		"interval", cfg.Interval(),
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"quality", cfg.Quality,
		"content_encoding", cfg.ContentEncoding,
		"version", version.Info(),
	)
	return loop.Run(context.Background())
}

// withExitCode attaches the exit code for fatal stream errors.
func withExitCode(err error) error {
	switch {
	case errors.Is(err, stream.ErrAvailabilityTimeout):
		return process.WithCode(exitUnavailable, err)
	case errors.Is(err, stream.ErrSetup), errors.Is(err, stream.ErrNavigation):
		return process.WithCode(exitSetup, err)
	default:
		return err
	}
}

func newLogger(format, level string) (*slog.Logger, error) {
	parsedFormat, err := logging.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	parsedLevel, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{Format: parsedFormat, Level: parsedLevel}), nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Bureau preview agent: streams screenshots of a page to the control plane.

Usage:
  %s --target-url URL --control-plane-url URL --session-id ID --auth-token TOKEN [flags]

Examples:
  # Stream the Vite dev server every two seconds
  %[1]s --target-url http://localhost:5173 \
    --control-plane-url https://control.example --session-id abc123 \
    --auth-token-file /run/secrets/preview-token

  # Everything from a config file, overriding the interval
  %[1]s --config preview.yaml --interval 0.5

Flags:
`, binaryName)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
