// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/preview/lib/config"
)

// flagValues holds parsed flags. Stream-setting flags bind into stream,
// which starts at config.Default() so --help shows real defaults; only
// flags the user set are copied onto the loaded configuration.
type flagValues struct {
	stream config.Stream

	configPath string
	logFormat  string
	logLevel   string
	help       bool
	version    bool
}

func newFlagSet(values *flagValues) *pflag.FlagSet {
	values.stream = *config.Default()
	s := &values.stream

	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SortFlags = false

	flagSet.StringVar(&s.TargetURL, "target-url", "", "URL of the page to capture (required)")
	flagSet.StringVar(&s.ControlPlaneURL, "control-plane-url", "", "base URL of the control plane (required)")
	flagSet.StringVar(&s.SessionID, "session-id", "", "preview session identifier (required)")
	flagSet.StringVar(&s.AuthToken, "auth-token", "", "bearer token for the control plane")
	flagSet.StringVar(&s.AuthTokenFile, "auth-token-file", "", "read the bearer token from this file instead of --auth-token")

	flagSet.Float64Var(&s.IntervalSeconds, "interval", s.IntervalSeconds, "seconds between captures")
	flagSet.IntVar(&s.ViewportWidth, "width", s.ViewportWidth, "viewport width in pixels")
	flagSet.IntVar(&s.ViewportHeight, "height", s.ViewportHeight, "viewport height in pixels")
	flagSet.IntVar(&s.Quality, "quality", s.Quality, "JPEG quality (0-100)")

	flagSet.IntVar(&s.MaxRetries, "max-retries", s.MaxRetries, "additional delivery attempts per frame")
	flagSet.Float64Var(&s.RetryDelaySeconds, "retry-delay", s.RetryDelaySeconds, "seconds between delivery attempts")
	flagSet.Float64Var(&s.ProbeTimeoutSeconds, "probe-timeout", s.ProbeTimeoutSeconds, "seconds to wait for the target to answer")
	flagSet.Float64Var(&s.NavigationTimeoutSeconds, "navigation-timeout", s.NavigationTimeoutSeconds, "seconds allowed for the initial page load")
	flagSet.Float64Var(&s.DeliveryTimeoutSeconds, "delivery-timeout", s.DeliveryTimeoutSeconds, "seconds allowed for one frame POST")
	flagSet.StringVar(&s.ContentEncoding, "content-encoding", s.ContentEncoding, "frame body encoding: identity, gzip, or zstd")
	flagSet.StringVar(&s.StatusFile, "status-file", "", "write a status snapshot to this path")
	flagSet.StringVar(&s.BrowserBin, "browser-bin", "", "Chromium executable (default: locate or download)")
	flagSet.BoolVar(&s.BrowserNoSandbox, "browser-no-sandbox", false, "run Chromium with --no-sandbox")

	flagSet.StringVar(&values.configPath, "config", "", fmt.Sprintf("YAML or JSONC config file (default: $%s)", config.EnvironmentVariable))
	flagSet.StringVar(&values.logFormat, "log-format", "auto", "log format: auto, text, or json")
	flagSet.StringVar(&values.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flagSet.BoolVarP(&values.help, "help", "h", false, "show help")
	flagSet.BoolVar(&values.version, "version", false, "print version and exit")
	return flagSet
}

// overrides copies one flag's value onto the loaded configuration.
var overrides = map[string]func(dst, src *config.Stream){
	"target-url":        func(dst, src *config.Stream) { dst.TargetURL = src.TargetURL },
	"control-plane-url": func(dst, src *config.Stream) { dst.ControlPlaneURL = src.ControlPlaneURL },
	"session-id":        func(dst, src *config.Stream) { dst.SessionID = src.SessionID },
	"auth-token": func(dst, src *config.Stream) {
		dst.AuthToken = src.AuthToken
		dst.AuthTokenFile = ""
	},
	"auth-token-file": func(dst, src *config.Stream) {
		dst.AuthTokenFile = src.AuthTokenFile
		dst.AuthToken = ""
	},
	"interval":           func(dst, src *config.Stream) { dst.IntervalSeconds = src.IntervalSeconds },
	"width":              func(dst, src *config.Stream) { dst.ViewportWidth = src.ViewportWidth },
	"height":             func(dst, src *config.Stream) { dst.ViewportHeight = src.ViewportHeight },
	"quality":            func(dst, src *config.Stream) { dst.Quality = src.Quality },
	"max-retries":        func(dst, src *config.Stream) { dst.MaxRetries = src.MaxRetries },
	"retry-delay":        func(dst, src *config.Stream) { dst.RetryDelaySeconds = src.RetryDelaySeconds },
	"probe-timeout":      func(dst, src *config.Stream) { dst.ProbeTimeoutSeconds = src.ProbeTimeoutSeconds },
	"navigation-timeout": func(dst, src *config.Stream) { dst.NavigationTimeoutSeconds = src.NavigationTimeoutSeconds },
	"delivery-timeout":   func(dst, src *config.Stream) { dst.DeliveryTimeoutSeconds = src.DeliveryTimeoutSeconds },
	"content-encoding":   func(dst, src *config.Stream) { dst.ContentEncoding = src.ContentEncoding },
	"status-file":        func(dst, src *config.Stream) { dst.StatusFile = src.StatusFile },
	"browser-bin":        func(dst, src *config.Stream) { dst.BrowserBin = src.BrowserBin },
	"browser-no-sandbox": func(dst, src *config.Stream) { dst.BrowserNoSandbox = src.BrowserNoSandbox },
}

// resolveConfig loads the config file (if any), applies the flags the
// user set, resolves the auth token, and validates the result.
func resolveConfig(flagSet *pflag.FlagSet, values *flagValues) (*config.Stream, error) {
	cfg, err := config.Load(config.ResolvePath(values.configPath))
	if err != nil {
		return nil, err
	}
	flagSet.Visit(func(flag *pflag.Flag) {
		if apply, ok := overrides[flag.Name]; ok {
			apply(cfg, &values.stream)
		}
	})
	if err := cfg.ResolveAuthToken(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}
