// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/browser/browsertest"
)

func newTestSession(fake *browsertest.Fake) *Session {
	return NewSession(fake, Options{
		TargetURL: "http://localhost:5173",
		Viewport:  browser.Viewport{Width: 1280, Height: 720},
		Quality:   80,
	})
}

func TestOpenLaunchesAtViewport(t *testing.T) {
	fake := &browsertest.Fake{}
	session := newTestSession(fake)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	launches := fake.Launches()
	if len(launches) != 1 || launches[0] != (browser.Viewport{Width: 1280, Height: 720}) {
		t.Errorf("launches = %v", launches)
	}

	// A second Open reuses the engine.
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if len(fake.Launches()) != 1 {
		t.Errorf("second Open launched again")
	}
}

func TestOpenLaunchFailure(t *testing.T) {
	launchErr := errors.New("chromium missing")
	session := newTestSession(&browsertest.Fake{LaunchErr: launchErr})
	if err := session.Open(context.Background()); !errors.Is(err, launchErr) {
		t.Fatalf("Open error = %v, want %v", err, launchErr)
	}
}

func TestNavigateOnceUsesNetworkIdle(t *testing.T) {
	fake := &browsertest.Fake{}
	session := newTestSession(fake)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := session.NavigateOnce(context.Background()); err != nil {
		t.Fatalf("NavigateOnce: %v", err)
	}
	navigations := fake.Navigations()
	if len(navigations) != 1 {
		t.Fatalf("navigations = %v", navigations)
	}
	navigation := navigations[0]
	if navigation.URL != "http://localhost:5173" || navigation.Wait != browser.WaitNetworkIdle || navigation.Timeout != DefaultNavigationTimeout {
		t.Errorf("navigation = %+v", navigation)
	}

	if err := session.NavigateOnce(context.Background()); !errors.Is(err, ErrAlreadyNavigated) {
		t.Errorf("second NavigateOnce error = %v, want ErrAlreadyNavigated", err)
	}
}

func TestNavigateOnceFailureIsNavigationError(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_REFUSED")
	session := newTestSession(&browsertest.Fake{NavigateErr: cause})
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	err := session.NavigateOnce(context.Background())
	var navigationError *NavigationError
	if !errors.As(err, &navigationError) {
		t.Fatalf("NavigateOnce error = %T %v, want *NavigationError", err, err)
	}
	if navigationError.URL != "http://localhost:5173" || !errors.Is(err, cause) {
		t.Errorf("NavigationError = %+v", navigationError)
	}
}

func TestNavigateBeforeOpen(t *testing.T) {
	session := newTestSession(&browsertest.Fake{})
	if err := session.NavigateOnce(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("NavigateOnce before Open = %v, want ErrNotOpen", err)
	}
	if _, err := session.Capture(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Capture before Open = %v, want ErrNotOpen", err)
	}
}

func TestCaptureReturnsJPEGAtQuality(t *testing.T) {
	fake := &browsertest.Fake{Captures: []browsertest.Capture{{Data: []byte("frame-1")}, {Data: []byte("frame-2")}}}
	session := newTestSession(fake)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, want := range []string{"frame-1", "frame-2"} {
		data, err := session.Capture(context.Background())
		if err != nil {
			t.Fatalf("Capture: %v", err)
		}
		if string(data) != want {
			t.Errorf("Capture = %q, want %q", data, want)
		}
	}
	for _, quality := range fake.Qualities() {
		if quality != 80 {
			t.Errorf("capture quality = %d, want 80", quality)
		}
	}
}

func TestCaptureErrorsPassThrough(t *testing.T) {
	captureErr := errors.New("target closed")
	fake := &browsertest.Fake{Captures: []browsertest.Capture{{Err: captureErr}, {Data: nil}}}
	session := newTestSession(fake)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := session.Capture(context.Background()); !errors.Is(err, captureErr) {
		t.Errorf("Capture error = %v, want %v", err, captureErr)
	}
	if _, err := session.Capture(context.Background()); err == nil {
		t.Error("empty capture should be an error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	fake := &browsertest.Fake{CloseErr: errors.New("already dead")}
	session := newTestSession(fake)
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := session.Close(); err == nil || err.Error() != "already dead" {
				t.Errorf("Close = %v, want first close error", err)
			}
		}()
	}
	wg.Wait()

	if fake.CloseCount() != 1 {
		t.Errorf("engine closed %d times, want 1", fake.CloseCount())
	}
	if _, err := session.Capture(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Capture after Close = %v, want ErrClosed", err)
	}
	if err := session.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close = %v, want ErrClosed", err)
	}
}

func TestCloseWithoutOpen(t *testing.T) {
	fake := &browsertest.Fake{}
	session := newTestSession(fake)
	if err := session.Close(); err != nil {
		t.Errorf("Close without Open = %v", err)
	}
	if fake.CloseCount() != 0 {
		t.Errorf("engine closed %d times without a launch", fake.CloseCount())
	}
}

func TestCustomNavigationTimeout(t *testing.T) {
	fake := &browsertest.Fake{}
	session := NewSession(fake, Options{TargetURL: "http://localhost:3000", NavigationTimeout: 5 * time.Second})
	if err := session.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := session.NavigateOnce(context.Background()); err != nil {
		t.Fatalf("NavigateOnce: %v", err)
	}
	if timeout := fake.Navigations()[0].Timeout; timeout != 5*time.Second {
		t.Errorf("navigation timeout = %v, want 5s", timeout)
	}
}
