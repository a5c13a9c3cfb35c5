// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for bureau-preview
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so individual tests never call time.After themselves.
// They are the only place test code waits on the wall clock; all
// component timing goes through lib/clock's FakeClock.
//
// [EventLog] is a goroutine-safe ordered record that fakes append to,
// for asserting the sequence of calls a component made.
package testutil
