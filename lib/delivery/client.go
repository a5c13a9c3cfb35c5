// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/netutil"
)

// DefaultAttemptTimeout bounds one POST when Options leaves
// AttemptTimeout zero.
const DefaultAttemptTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	ControlPlaneURL string
	SessionID       string
	AuthToken       string

	// MaxRetries is the number of attempts after the first. Zero
	// means a single attempt.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	AttemptTimeout time.Duration
	Encoding       Encoding

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Result describes a delivered frame.
type Result struct {
	// Attempts is the number of POSTs made, including the
	// successful one.
	Attempts int
}

// StatusError is a non-200 response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("control plane returned %d", e.Status)
	}
	return fmt.Sprintf("control plane returned %d: %s", e.Status, e.Body)
}

// DeliveryError reports a frame dropped after every attempt failed.
type DeliveryError struct {
	Attempts int
	Last     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("frame dropped after %d attempts: %v", e.Attempts, e.Last)
}

func (e *DeliveryError) Unwrap() error { return e.Last }

// Client sends frames for one session. It is safe for concurrent use,
// though the stream loop only ever has one Send in flight.
type Client struct {
	options  Options
	endpoint string
	client   *http.Client
	clock    clock.Clock
	logger   *slog.Logger
}

// NewClient validates options and resolves the endpoint URL.
func NewClient(options Options, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	if options.SessionID == "" {
		return nil, errors.New("delivery: session ID is required")
	}
	if options.MaxRetries < 0 {
		return nil, fmt.Errorf("delivery: max retries must not be negative, got %d", options.MaxRetries)
	}
	encoding, err := ParseEncoding(string(options.Encoding))
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}
	options.Encoding = encoding
	if options.AttemptTimeout <= 0 {
		options.AttemptTimeout = DefaultAttemptTimeout
	}

	endpoint, err := url.JoinPath(options.ControlPlaneURL, "sessions", url.PathEscape(options.SessionID), "stream-frame")
	if err != nil {
		return nil, fmt.Errorf("delivery: building endpoint: %w", err)
	}

	client := options.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		options:  options,
		endpoint: endpoint,
		client:   client,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Endpoint returns the stream-frame URL frames are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Send POSTs payload, retrying failed attempts. It returns a
// *DeliveryError when every attempt failed, or ctx.Err() when ctx was
// cancelled first.
func (c *Client) Send(ctx context.Context, payload Payload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encoding payload: %w", err)
	}
	body, err = c.options.Encoding.encode(body)
	if err != nil {
		return Result{}, err
	}

	maxAttempts := c.options.MaxRetries + 1
	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		last = c.post(ctx, body)
		if last == nil {
			return Result{Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.logger.Warn("frame delivery attempt failed",
			"frame_number", payload.FrameNumber,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", last,
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-c.clock.After(c.options.RetryDelay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{}, &DeliveryError{Attempts: maxAttempts, Last: last}
}

func (c *Client) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.options.AttemptTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+c.options.AuthToken)
	request.Header.Set("Content-Type", "application/json")
	if encoding := c.options.Encoding.header(); encoding != "" {
		request.Header.Set("Content-Encoding", encoding)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return err
	}
	defer netutil.Drain(response.Body)
	if response.StatusCode != http.StatusOK {
		return &StatusError{Status: response.StatusCode, Body: netutil.ErrorBody(response.Body)}
	}
	return nil
}
