// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe waits for a URL to start answering HTTP requests.
//
// The target is usually a development server that the sandbox starts
// concurrently with the preview agent, so the first few requests are
// expected to fail with connection refused. Any response below 500
// counts as available: a 404 or a 401 still means something is
// listening and rendering.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/netutil"
)

const (
	// DefaultTimeout is the overall availability budget callers use
	// when they have no configured value.
	DefaultTimeout = 60 * time.Second

	// RequestTimeout bounds a single probe request.
	RequestTimeout = 5 * time.Second

	// RetryInterval is the pause between attempts.
	RetryInterval = time.Second
)

// Prober checks target availability.
type Prober struct {
	client *http.Client
	clock  clock.Clock
	logger *slog.Logger
}

// New returns a Prober. A nil client uses http.DefaultClient.
func New(client *http.Client, clk clock.Clock, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client, clock: clk, logger: logger}
}

// Wait issues GET requests against targetURL until one returns a
// status below 500, the timeout elapses, or ctx is cancelled. It
// reports whether the target became available.
func (p *Prober) Wait(ctx context.Context, targetURL string, timeout time.Duration) bool {
	p.logger.Info("waiting for target", "target_url", targetURL, "timeout", timeout)
	start := p.clock.Now()
	attempts := 0
	for p.clock.Now().Sub(start) < timeout {
		if ctx.Err() != nil {
			return false
		}
		attempts++
		status, err := p.attempt(ctx, targetURL)
		if err == nil && status < http.StatusInternalServerError {
			p.logger.Info("target available", "status", status, "attempts", attempts)
			return true
		}
		if err != nil {
			p.logger.Debug("probe attempt failed", "attempt", attempts, "error", err)
		} else {
			p.logger.Debug("probe attempt failed", "attempt", attempts, "status", status)
		}

		select {
		case <-p.clock.After(RetryInterval):
		case <-ctx.Done():
			return false
		}
	}
	p.logger.Warn("target did not become available", "attempts", attempts, "timeout", timeout)
	return false
}

func (p *Prober) attempt(ctx context.Context, targetURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, err
	}
	response, err := p.client.Do(request)
	if err != nil {
		return 0, err
	}
	netutil.Drain(response.Body)
	return response.StatusCode, nil
}
