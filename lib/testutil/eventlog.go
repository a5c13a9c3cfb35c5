// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"slices"
	"sync"
)

// EventLog records named events in order. Safe for concurrent use so
// a fake called from the goroutine under test and the test goroutine
// reading it do not race.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (l *EventLog) Add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Count returns how many times event was recorded.
func (l *EventLog) Count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, recorded := range l.events {
		if recorded == event {
			count++
		}
	}
	return count
}
