// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture owns the browser session of one streaming run.
//
// A Session launches the engine once, navigates to the target once,
// and then serves repeated viewport captures until Close. Navigation
// failure is reported as a *NavigationError because it is fatal to
// the run: without a loaded page no meaningful frame can follow.
// Capture failures are ordinary errors the caller may retry next
// cycle.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/preview/lib/browser"
)

// DefaultNavigationTimeout bounds the initial page load when Options
// leaves NavigationTimeout zero.
const DefaultNavigationTimeout = 30 * time.Second

// Options configures a Session.
type Options struct {
	TargetURL         string
	Viewport          browser.Viewport
	Quality           int
	NavigationTimeout time.Duration
}

// NavigationError reports that the initial page load failed.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

var (
	// ErrNotOpen is returned by operations that need a launched engine.
	ErrNotOpen = errors.New("capture session is not open")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("capture session is closed")
	// ErrAlreadyNavigated is returned by a second NavigateOnce.
	ErrAlreadyNavigated = errors.New("capture session already navigated")
)

// Session is not safe for concurrent use except for Close, which may
// race with nothing else but itself.
type Session struct {
	engine  browser.Capability
	options Options

	handle    browser.Handle
	navigated bool

	closeOnce sync.Once
	closed    bool
	closeErr  error
	mu        sync.Mutex
}

// NewSession returns an unopened session.
func NewSession(engine browser.Capability, options Options) *Session {
	if options.NavigationTimeout <= 0 {
		options.NavigationTimeout = DefaultNavigationTimeout
	}
	return &Session{engine: engine, options: options}
}

// Open launches the engine sized to the configured viewport.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.handle != nil {
		return nil
	}
	handle, err := s.engine.Launch(ctx, s.options.Viewport)
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	s.handle = handle
	return nil
}

// NavigateOnce loads the target URL and waits for network activity to
// settle. It may succeed at most once per session.
func (s *Session) NavigateOnce(ctx context.Context) error {
	handle, err := s.openHandle()
	if err != nil {
		return err
	}
	if s.navigated {
		return ErrAlreadyNavigated
	}
	err = s.engine.Navigate(ctx, handle, s.options.TargetURL, browser.WaitNetworkIdle, s.options.NavigationTimeout)
	if err != nil {
		return &NavigationError{URL: s.options.TargetURL, Err: err}
	}
	s.navigated = true
	return nil
}

// Capture returns the current viewport as JPEG bytes.
func (s *Session) Capture(ctx context.Context) ([]byte, error) {
	handle, err := s.openHandle()
	if err != nil {
		return nil, err
	}
	data, err := s.engine.CaptureViewport(ctx, handle, browser.FormatJPEG, s.options.Quality)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("browser returned an empty image")
	}
	return data, nil
}

// Close releases the engine. Every call after the first returns the
// first call's result. Closing a session that was never opened is a
// no-op.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		if s.handle != nil {
			s.closeErr = s.engine.Close(s.handle)
		}
	})
	return s.closeErr
}

func (s *Session) openHandle() (browser.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.handle == nil {
		return nil, ErrNotOpen
	}
	return s.handle, nil
}
