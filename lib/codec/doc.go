// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every on-disk
// state format in the preview agent.
//
// JSON is used where something outside the process reads the data:
// the control-plane wire protocol and CLI --json output. CBOR is used
// for the agent's own state files (see lib/statusfile). Encoding uses
// Core Deterministic Encoding (RFC 8949 §4.2), so the same status
// always produces the same bytes.
//
// Types that appear both in a CBOR file and in CLI JSON output carry
// only `json` struct tags; fxamacker/cbor falls back to them when no
// `cbor` tag is present.
package codec
