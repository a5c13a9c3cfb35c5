// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response body helpers for the
// preview agent.
//
// The agent never needs a response body for its own logic: the probe
// only looks at the status code and the control plane answers frame
// posts with a status. Bodies are read only to keep keep-alive
// connections reusable (Drain) or to quote a short excerpt in an error
// message (ErrorBody). Both are bounded so a misbehaving server cannot
// make the agent buffer an unbounded body.
package netutil

import (
	"io"
	"strings"
)

// MaxDrainSize bounds how much of an unwanted body Drain will read.
// Past this, closing the body (and losing the connection) is cheaper
// than reading on.
const MaxDrainSize int64 = 64 << 10

// MaxErrorBodySize bounds the excerpt ErrorBody returns.
const MaxErrorBodySize int64 = 512

// Drain discards up to MaxDrainSize bytes of body and closes it, so
// the underlying connection can return to the transport's idle pool.
func Drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxDrainSize))
	body.Close()
}

// ErrorBody reads at most MaxErrorBodySize bytes of an error response
// and returns them trimmed, for use in diagnostic messages. Read
// errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
	return strings.TrimSpace(string(data))
}
