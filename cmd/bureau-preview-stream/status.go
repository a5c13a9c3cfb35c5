// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/config"
	"github.com/bureau-foundation/preview/lib/statusfile"
	"github.com/bureau-foundation/preview/lib/stream"
)

// statusPublisher writes every loop snapshot to the status file. A
// failed write is logged once and otherwise ignored: the status file
// is a diagnostic aid and must never stop the stream.
type statusPublisher struct {
	path      string
	sessionID string
	targetURL string
	pid       int
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger

	failing bool
}

func newStatusPublisher(cfg *config.Stream, clk clock.Clock, pid int, logger *slog.Logger) *statusPublisher {
	return &statusPublisher{
		path:      cfg.StatusFile,
		sessionID: cfg.SessionID,
		targetURL: cfg.TargetURL,
		pid:       pid,
		clock:     clk,
		startedAt: clk.Now(),
		logger:    logger,
	}
}

func (p *statusPublisher) Observe(snapshot stream.Snapshot) {
	status := statusfile.Status{
		Phase:           snapshot.Phase.String(),
		SessionID:       p.sessionID,
		TargetURL:       p.targetURL,
		PID:             p.pid,
		Captured:        snapshot.Captured,
		Sent:            snapshot.Sent,
		Dropped:         snapshot.Dropped,
		Duplicates:      snapshot.Duplicates,
		CaptureFailures: snapshot.CaptureFailures,
		LastFrameNumber: snapshot.FrameCount,
		StartedAt:       p.startedAt,
		UpdatedAt:       p.clock.Now(),
	}
	if snapshot.LastFingerprint != nil {
		status.LastFingerprint = snapshot.LastFingerprint.String()
	}
	if snapshot.Err != nil {
		status.Error = snapshot.Err.Error()
	}

	if err := statusfile.Write(p.path, status); err != nil {
		if !p.failing {
			p.logger.Warn("writing status file", "path", p.path, "error", err)
			p.failing = true
		}
		return
	}
	if p.failing {
		p.logger.Info("status file writable again", "path", p.path)
		p.failing = false
	}
}
