// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package browsertest provides a scripted browser.Capability for
// tests that must not start a real rendering engine.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bureau-foundation/preview/lib/browser"
)

// Capture is one scripted CaptureViewport result.
type Capture struct {
	Data []byte
	Err  error
}

// Navigation records one Navigate call.
type Navigation struct {
	URL     string
	Wait    browser.WaitPolicy
	Timeout time.Duration
}

// Fake implements browser.Capability, browser.Evaluator and
// browser.PageCapturer from scripted results. Set the exported fields
// before use; read results through the accessor methods, which are
// safe to call while another goroutine drives the fake.
type Fake struct {
	// LaunchErr and NavigateErr fail the corresponding call.
	LaunchErr   error
	NavigateErr error

	// Captures are returned by successive CaptureViewport calls. Once
	// exhausted, the last entry repeats. With no entries every capture
	// returns a fixed placeholder image.
	Captures []Capture

	// FullPage is returned by CaptureFullPage.
	FullPage []byte

	// EvalResult and EvalErr are returned by Evaluate.
	EvalResult []byte
	EvalErr    error

	// CloseErr is returned by every Close.
	CloseErr error

	// CaptureHook, when set, runs at the start of every
	// CaptureViewport call with the 1-based call number.
	CaptureHook func(call int)

	mu          sync.Mutex
	launches    []browser.Viewport
	navigations []Navigation
	captures    int
	qualities   []int
	evalArgs    [][]any
	closes      int
	open        int
}

type handle struct {
	viewport browser.Viewport
}

func (h *handle) Viewport() browser.Viewport { return h.viewport }

// ErrNotLaunched is returned when an operation receives a handle the
// fake did not create.
var ErrNotLaunched = errors.New("browsertest: handle was not launched by this fake")

func (f *Fake) Launch(ctx context.Context, viewport browser.Viewport) (browser.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches = append(f.launches, viewport)
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.open++
	return &handle{viewport: viewport}, nil
}

func (f *Fake) Navigate(ctx context.Context, h browser.Handle, url string, wait browser.WaitPolicy, timeout time.Duration) error {
	if _, ok := h.(*handle); !ok {
		return ErrNotLaunched
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, Navigation{URL: url, Wait: wait, Timeout: timeout})
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	return ctx.Err()
}

func (f *Fake) CaptureViewport(ctx context.Context, h browser.Handle, format browser.ImageFormat, quality int) ([]byte, error) {
	if _, ok := h.(*handle); !ok {
		return nil, ErrNotLaunched
	}
	f.mu.Lock()
	f.captures++
	call := f.captures
	f.qualities = append(f.qualities, quality)
	hook := f.CaptureHook
	var result Capture
	switch {
	case len(f.Captures) == 0:
		result = Capture{Data: []byte("\xff\xd8placeholder")}
	case call <= len(f.Captures):
		result = f.Captures[call-1]
	default:
		result = f.Captures[len(f.Captures)-1]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result.Data, result.Err
}

func (f *Fake) CaptureFullPage(ctx context.Context, h browser.Handle, format browser.ImageFormat, quality int) ([]byte, error) {
	if _, ok := h.(*handle); !ok {
		return nil, ErrNotLaunched
	}
	return f.FullPage, ctx.Err()
}

func (f *Fake) Evaluate(ctx context.Context, h browser.Handle, function string, args ...any) ([]byte, error) {
	if _, ok := h.(*handle); !ok {
		return nil, ErrNotLaunched
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalArgs = append(f.evalArgs, args)
	return f.EvalResult, f.EvalErr
}

// Close counts every call. It does not deduplicate: idempotence is
// the caller's responsibility, and CloseCount exposes whether the
// caller honored it.
func (f *Fake) Close(h browser.Handle) error {
	if _, ok := h.(*handle); !ok {
		return ErrNotLaunched
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.open--
	return f.CloseErr
}

// Launches returns the viewports passed to Launch.
func (f *Fake) Launches() []browser.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Viewport(nil), f.launches...)
}

// Navigations returns every Navigate call.
func (f *Fake) Navigations() []Navigation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Navigation(nil), f.navigations...)
}

// CaptureCount returns the number of CaptureViewport calls.
func (f *Fake) CaptureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// Qualities returns the quality argument of every CaptureViewport call.
func (f *Fake) Qualities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.qualities...)
}

// EvalArgs returns the arguments of every Evaluate call.
func (f *Fake) EvalArgs() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.evalArgs...)
}

// CloseCount returns the number of Close calls.
func (f *Fake) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// OpenCount returns launched handles minus Close calls.
func (f *Fake) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
