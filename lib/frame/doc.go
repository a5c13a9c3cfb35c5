// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame defines a captured preview frame and the change
// detection that decides whether a frame is worth sending.
//
// A Fingerprint is a BLAKE3 keyed hash of the raw image bytes in the
// "bureau.preview.frame" domain, truncated to 8 bytes and rendered as
// 16 hex characters. It is only ever compared for equality against the
// previous frame, so the truncation is acceptable: a collision costs
// one skipped frame, and the next visual change is sent anyway.
package frame
