// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrAvailabilityTimeout ends a run whose target never answered
	// within the probe budget.
	ErrAvailabilityTimeout = errors.New("target did not become available")

	// ErrSetup ends a run whose browser could not be launched.
	ErrSetup = errors.New("browser setup failed")

	// ErrNavigation ends a run whose initial page load failed. The
	// returned error also wraps the *capture.NavigationError.
	ErrNavigation = errors.New("initial navigation failed")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("stream loop has already run")
)

// CaptureError is a failed capture. The cycle is abandoned and the
// loop continues.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capturing frame: %v", e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }
