// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rod is the production Capability: a headless Chromium driven through
// the DevTools protocol by go-rod. Each Launch starts its own browser
// process; Close kills it and removes its profile directory.
type Rod struct {
	// Bin is the Chromium executable. Empty lets the rod launcher
	// locate an installed browser or download one.
	Bin string

	// NoSandbox passes --no-sandbox to Chromium. Required when the
	// agent already runs inside a container sandbox without user
	// namespaces.
	NoSandbox bool

	Logger *slog.Logger
}

type rodHandle struct {
	viewport Viewport
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (h *rodHandle) Viewport() Viewport { return h.viewport }

// Launch starts Chromium and opens a blank page at viewport.
func (r *Rod) Launch(ctx context.Context, viewport Viewport) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// ctx bounds browser lookup, download and process start. The
	// launcher releases it once Launch returns.
	chromium := launcher.New().Context(ctx).Headless(true).NoSandbox(r.NoSandbox)
	if r.Bin != "" {
		chromium = chromium.Bin(r.Bin)
	}

	controlURL, err := chromium.Launch()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	if err := ctx.Err(); err != nil {
		chromium.Kill()
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		chromium.Kill()
		return nil, fmt.Errorf("connecting to chromium: %w", err)
	}

	handle := &rodHandle{viewport: viewport, launcher: chromium, browser: browser}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		r.Close(handle)
		return nil, fmt.Errorf("opening page: %w", err)
	}
	// Detach the page from the launch context; later operations
	// supply their own.
	handle.page = page.Context(context.Background())

	if err := handle.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewport.Width,
		Height:            viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		r.Close(handle)
		return nil, fmt.Errorf("setting viewport %s: %w", viewport, err)
	}

	if r.Logger != nil {
		r.Logger.Debug("chromium launched", "control_url", controlURL, "viewport", viewport.String())
	}
	return handle, nil
}

// Navigate loads url in the handle's page.
func (r *Rod) Navigate(ctx context.Context, handle Handle, url string, wait WaitPolicy, timeout time.Duration) error {
	h, err := r.handle(handle)
	if err != nil {
		return err
	}

	page := h.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	switch wait {
	case WaitNetworkIdle:
		waitIdle := page.WaitRequestIdle(NetworkIdleWindow, nil, nil, nil)
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigating to %s: %w", url, err)
		}
		waitIdle()
	case WaitDOMContentLoaded:
		waitLoaded := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigating to %s: %w", url, err)
		}
		waitLoaded()
	default:
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigating to %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("waiting for %s to load: %w", url, err)
		}
	}

	// The wait functions above return silently when the timeout
	// context expires; surface that as a failed navigation.
	if err := page.GetContext().Err(); err != nil {
		return fmt.Errorf("waiting for %s (%s): %w", url, wait, err)
	}
	return nil
}

// CaptureViewport screenshots the visible viewport.
func (r *Rod) CaptureViewport(ctx context.Context, handle Handle, format ImageFormat, quality int) ([]byte, error) {
	return r.capture(ctx, handle, format, quality, false)
}

// CaptureFullPage screenshots the whole scrollable page.
func (r *Rod) CaptureFullPage(ctx context.Context, handle Handle, format ImageFormat, quality int) ([]byte, error) {
	return r.capture(ctx, handle, format, quality, true)
}

func (r *Rod) capture(ctx context.Context, handle Handle, format ImageFormat, quality int, fullPage bool) ([]byte, error) {
	h, err := r.handle(handle)
	if err != nil {
		return nil, err
	}

	request := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if format == FormatJPEG {
		request.Format = proto.PageCaptureScreenshotFormatJpeg
		request.Quality = &quality
	}

	data, err := h.page.Context(ctx).Screenshot(fullPage, request)
	if err != nil {
		return nil, fmt.Errorf("capturing %s screenshot: %w", format, err)
	}
	return data, nil
}

// Evaluate runs function in the page.
func (r *Rod) Evaluate(ctx context.Context, handle Handle, function string, args ...any) ([]byte, error) {
	h, err := r.handle(handle)
	if err != nil {
		return nil, err
	}
	result, err := h.page.Context(ctx).Eval(function, args...)
	if err != nil {
		return nil, fmt.Errorf("evaluating script: %w", err)
	}
	if result.Value.Nil() {
		return nil, nil
	}
	return []byte(result.Value.JSON("", "")), nil
}

// Close closes the browser and kills its process. Idempotent.
func (r *Rod) Close(handle Handle) error {
	h, err := r.handle(handle)
	if err != nil {
		return err
	}
	h.closeOnce.Do(func() {
		h.closeErr = h.browser.Close()
		h.launcher.Kill()
		h.launcher.Cleanup()
	})
	return h.closeErr
}

func (r *Rod) handle(handle Handle) (*rodHandle, error) {
	h, ok := handle.(*rodHandle)
	if !ok || h == nil {
		return nil, fmt.Errorf("browser: handle %T was not created by Rod", handle)
	}
	return h, nil
}
