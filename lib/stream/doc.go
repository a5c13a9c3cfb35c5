// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream runs the capture-and-stream loop of a preview agent.
//
// A Loop moves through four phases:
//
//	init → waiting_for_target → streaming → stopped
//
// While waiting it probes the target URL until it answers. It then
// opens the capture session and navigates once; both must succeed
// before streaming begins. Each streaming cycle captures the
// viewport, skips the frame if its fingerprint matches the previous
// capture, and otherwise reserves the next sequence number and hands
// the frame to the delivery client. The loop then sleeps for the
// configured interval. A cycle that fails (capture error, frame
// dropped after retries) is logged and counted and the loop carries
// on; only an unreachable target, a browser that cannot launch, or a
// failed navigation end the run with an error.
//
// Stop (or cancellation of the context passed to Run) interrupts
// whatever the loop is blocked on: a probe request, a navigation, a
// capture, a delivery attempt or retry delay, or the inter-cycle
// sleep. Run then closes the session exactly once and returns nil.
//
// Exactly one cycle is in flight at a time, so a slow control plane
// lowers the effective frame rate rather than queuing frames.
package stream
