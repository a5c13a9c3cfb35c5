// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// preview agent's probe, delivery, and stream loops.
//
// Production code holds a Clock field set to Real(). Tests construct
// a FakeClock, start the component under test in a goroutine, and
// step time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop.Run(ctx)
//	fake.WaitForTimers(1)        // the loop is now sleeping
//	fake.Advance(2 * time.Second) // wake it deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// sleep and the test advancing time past it.
package clock
