// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Viewport is the size of the rendered area in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) String() string { return fmt.Sprintf("%dx%d", v.Width, v.Height) }

// WaitPolicy selects when a navigation counts as complete.
type WaitPolicy int

const (
	// WaitLoad waits for the window load event.
	WaitLoad WaitPolicy = iota
	// WaitDOMContentLoaded waits for DOMContentLoaded only.
	WaitDOMContentLoaded
	// WaitNetworkIdle waits until no requests have been in flight for
	// NetworkIdleWindow. Dev servers keep loading modules after the
	// load event, so previews use this.
	WaitNetworkIdle
)

// NetworkIdleWindow is how long the network must stay quiet for
// WaitNetworkIdle to consider a page settled.
const NetworkIdleWindow = 500 * time.Millisecond

func (w WaitPolicy) String() string {
	switch w {
	case WaitLoad:
		return "load"
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitNetworkIdle:
		return "networkidle"
	default:
		return fmt.Sprintf("unknown(%d)", int(w))
	}
}

// ImageFormat is the encoding of captured images.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// FormatForPath picks JPEG for .jpg/.jpeg output paths and PNG for
// everything else.
func FormatForPath(path string) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// Handle is an open engine session returned by Launch. Handles are
// owned by one caller and never used concurrently.
type Handle interface {
	Viewport() Viewport
}

// Capability is a headless rendering engine.
type Capability interface {
	// Launch starts an engine with one page sized to viewport.
	Launch(ctx context.Context, viewport Viewport) (Handle, error)

	// Navigate loads url and waits according to wait, failing if the
	// page has not settled within timeout.
	Navigate(ctx context.Context, handle Handle, url string, wait WaitPolicy, timeout time.Duration) error

	// CaptureViewport returns the visible viewport as an encoded
	// image. quality applies to JPEG only.
	CaptureViewport(ctx context.Context, handle Handle, format ImageFormat, quality int) ([]byte, error)

	// Close releases the engine. Closing an already-closed handle
	// returns the result of the first Close.
	Close(handle Handle) error
}

// Evaluator runs a JavaScript function expression in the page with
// JSON-serializable arguments and returns the JSON encoding of its
// result, or nil when the function returned null or undefined.
type Evaluator interface {
	Evaluate(ctx context.Context, handle Handle, function string, args ...any) ([]byte, error)
}

// PageCapturer captures the full scrollable page rather than only the
// viewport.
type PageCapturer interface {
	CaptureFullPage(ctx context.Context, handle Handle, format ImageFormat, quality int) ([]byte, error)
}
