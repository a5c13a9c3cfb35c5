// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package delivery posts captured frames to the control plane.
//
// Each frame is one JSON document POSTed to
// {control_plane_url}/sessions/{session_id}/stream-frame with a Bearer
// token. Only a 200 response counts as delivered. A failed attempt
// (any other status or a transport error) is retried after a fixed
// delay up to MaxRetries more times; after that the frame is dropped
// and Send returns a *DeliveryError. Nothing is queued: a slow control
// plane lowers the effective frame rate instead of building a backlog.
//
// Bodies may be compressed with gzip or zstd (Content-Encoding) for
// control planes that accept them. JPEG payloads are already
// compressed, but base64 inflates them by a third and compression
// recovers most of that.
package delivery
