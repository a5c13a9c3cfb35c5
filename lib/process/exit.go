// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError attaches an exit code to an error. Exit prints Err (when
// non-nil) and exits with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for this error.
func (e *ExitError) ExitCode() int { return e.Code }

// WithCode wraps err so that Exit uses code. A nil err stays nil.
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// Exit terminates the process according to err: it returns normally
// for nil, and otherwise reports err on stderr and exits with the code
// from an ExitCode method anywhere in the chain, or 1.
func Exit(err error) {
	if err == nil {
		return
	}
	code := Code(err)
	report(os.Stderr, err)
	os.Exit(code)
}

// Code returns the exit code Exit would use for err: 0 for nil, the
// code of the first ExitCode implementation in the chain, else 1.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

func report(w io.Writer, err error) {
	var exitError *ExitError
	if errors.As(err, &exitError) && exitError.Err == nil {
		// The binary already reported the outcome itself.
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
