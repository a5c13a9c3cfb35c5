// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browser

import (
	"context"
	"fmt"
	"time"
)

// ScreenshotTimeout bounds the page load for Screenshot.
const ScreenshotTimeout = 30 * time.Second

// ScreenshotEngine is what Screenshot needs from an engine.
type ScreenshotEngine interface {
	Capability
	PageCapturer
}

// ScreenshotOptions configures a one-shot capture.
type ScreenshotOptions struct {
	Viewport Viewport
	Format   ImageFormat
	// Quality applies to JPEG only.
	Quality int
	// FullPage captures the whole scrollable page instead of the
	// viewport.
	FullPage bool
}

// Screenshot opens url, waits for the network to go idle, and returns
// one encoded image.
func Screenshot(ctx context.Context, engine ScreenshotEngine, url string, options ScreenshotOptions) ([]byte, error) {
	handle, err := engine.Launch(ctx, options.Viewport)
	if err != nil {
		return nil, err
	}

	data, err := screenshot(ctx, engine, handle, url, options)
	if closeErr := engine.Close(handle); closeErr != nil && err == nil {
		return nil, fmt.Errorf("closing browser: %w", closeErr)
	}
	return data, err
}

func screenshot(ctx context.Context, engine ScreenshotEngine, handle Handle, url string, options ScreenshotOptions) ([]byte, error) {
	if err := engine.Navigate(ctx, handle, url, WaitNetworkIdle, ScreenshotTimeout); err != nil {
		return nil, err
	}
	if options.FullPage {
		return engine.CaptureFullPage(ctx, handle, options.Format, options.Quality)
	}
	return engine.CaptureViewport(ctx, handle, options.Format, options.Quality)
}
