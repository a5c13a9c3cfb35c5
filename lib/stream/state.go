// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/bureau-foundation/preview/lib/frame"
)

// Phase is the lifecycle position of a Loop.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWaitingForTarget
	PhaseStreaming
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseWaitingForTarget:
		return "waiting_for_target"
	case PhaseStreaming:
		return "streaming"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Counters tally cycle outcomes over a run.
type Counters struct {
	// Captured counts successful captures, duplicates included.
	Captured        uint64
	Sent            uint64
	Dropped         uint64
	Duplicates      uint64
	CaptureFailures uint64
}

// RunState is the mutable state of one run. Only the loop goroutine
// writes it.
type RunState struct {
	Running bool

	// FrameCount is the last sequence number handed out. The first
	// new frame gets 1. Dropped frames keep their number, so
	// delivered sequence numbers are strictly increasing but may have
	// gaps.
	FrameCount uint64

	// LastFingerprint is nil until the first successful capture. It
	// is updated before delivery, so a frame that is dropped is not
	// resent when the page stays unchanged.
	LastFingerprint *frame.Fingerprint

	Counters
}

// Snapshot is a copy of a loop's state handed to an Observer.
type Snapshot struct {
	Phase Phase
	RunState
	// Err is set on the final snapshot of a run that ended with an
	// error.
	Err error
}

// Observer receives a Snapshot after every phase change and every
// cycle. Observe runs on the loop goroutine and should return
// quickly.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(snapshot Snapshot) { f(snapshot) }
