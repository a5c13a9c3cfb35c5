// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for the preview agent. The prober's pause
// between attempts, the delivery client's retry delay, and the stream
// loop's inter-cycle sleep all go through a Clock so tests can drive
// them with Fake instead of waiting on wall-clock time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	// Callers that must also observe cancellation select on the
	// returned channel together with ctx.Done().
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}
