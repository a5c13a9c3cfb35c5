// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statusfile publishes the state of a running preview agent
// to a file that other processes can poll.
//
// The agent rewrites the file after every phase change and every
// frame outcome. Writes are atomic (temporary file, fsync, rename,
// directory fsync) so a reader sees either the previous snapshot or
// the new one, never a torn write. The encoding is deterministic CBOR
// from lib/codec; bureau-preview-status renders it for humans.
//
// The file is left in place when the agent exits so the final phase
// and counters stay inspectable. Clear removes it.
package statusfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/preview/lib/codec"
)

// Status is one snapshot of an agent run.
type Status struct {
	// Phase is the stream phase name: init, waiting_for_target,
	// streaming, or stopped.
	Phase string `json:"phase"`

	SessionID string `json:"session_id"`
	TargetURL string `json:"target_url"`
	PID       int    `json:"pid"`

	Captured        uint64 `json:"captured"`
	Sent            uint64 `json:"sent"`
	Dropped         uint64 `json:"dropped"`
	Duplicates      uint64 `json:"duplicates"`
	CaptureFailures uint64 `json:"capture_failures"`

	// LastFrameNumber is the most recently reserved sequence number,
	// whether or not that frame was delivered.
	LastFrameNumber uint64 `json:"last_frame_number"`
	LastFingerprint string `json:"last_fingerprint,omitempty"`

	// Error is the reason a run ended abnormally.
	Error string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Write atomically replaces the file at path with status. The parent
// directory must exist. The file is created with mode 0644: status is
// not secret and the reader may run as another user.
func Write(path string, status Status) error {
	data, err := codec.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary status file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary status file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary status file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary status file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming status file into place: %w", err)
	}

	directory, err := os.Open(filepath.Dir(path))
	if err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read decodes the file at path. A missing file returns an error
// wrapping os.ErrNotExist.
func Read(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := codec.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("decoding status file %s: %w", path, err)
	}
	return status, nil
}

// Clear removes the file. Removing a missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing status file: %w", err)
	}
	return nil
}

// Age is how long ago the snapshot was written.
func (s Status) Age(now time.Time) time.Duration {
	if s.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}
