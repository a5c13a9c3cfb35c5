// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/config"
	"github.com/bureau-foundation/preview/lib/delivery"
	"github.com/bureau-foundation/preview/lib/frame"
	"github.com/bureau-foundation/preview/lib/logging"
)

// logEvery is the delivered-frame interval between Info log lines.
const logEvery = 10

// Prober waits for the target to become reachable.
type Prober interface {
	Wait(ctx context.Context, targetURL string, timeout time.Duration) bool
}

// Session is the browser page being captured. *capture.Session
// implements it.
type Session interface {
	Open(ctx context.Context) error
	NavigateOnce(ctx context.Context) error
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Sender delivers one frame. *delivery.Client implements it.
type Sender interface {
	Send(ctx context.Context, payload delivery.Payload) (delivery.Result, error)
}

// Options configures a Loop. Config, Prober, Session, Sender and Clock
// are required.
type Options struct {
	Config   *config.Stream
	Prober   Prober
	Session  Session
	Sender   Sender
	Clock    clock.Clock
	Logger   *slog.Logger
	Observer Observer
}

// Loop runs one streaming session. Create it with New, run it once
// with Run, and stop it from any goroutine with Stop.
type Loop struct {
	config   *config.Stream
	viewport browser.Viewport
	prober   Prober
	session  Session
	sender   Sender
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	stopContext context.Context
	stopCancel  context.CancelFunc
	stopOnce    sync.Once
	started     atomic.Bool

	mu    sync.Mutex
	phase Phase
	state RunState
}

// New validates options and returns a Loop in PhaseInit.
func New(options Options) (*Loop, error) {
	var missing []error
	if options.Config == nil {
		missing = append(missing, errors.New("config"))
	}
	if options.Prober == nil {
		missing = append(missing, errors.New("prober"))
	}
	if options.Session == nil {
		missing = append(missing, errors.New("session"))
	}
	if options.Sender == nil {
		missing = append(missing, errors.New("sender"))
	}
	if options.Clock == nil {
		missing = append(missing, errors.New("clock"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("stream: missing required options: %w", errors.Join(missing...))
	}
	if options.Config.Interval() <= 0 {
		return nil, fmt.Errorf("stream: interval must be positive, got %v", options.Config.Interval())
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	stopContext, stopCancel := context.WithCancel(context.Background())
	return &Loop{
		config:      options.Config,
		viewport:    browser.Viewport{Width: options.Config.ViewportWidth, Height: options.Config.ViewportHeight},
		prober:      options.Prober,
		session:     options.Session,
		sender:      options.Sender,
		clock:       options.Clock,
		logger:      logger,
		observer:    options.Observer,
		stopContext: stopContext,
		stopCancel:  stopCancel,
	}, nil
}

// Stop requests shutdown. It returns immediately; Run returns once the
// loop has released the session. Calls after the first do nothing.
// Stop before Run makes Run return nil without streaming.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.logger.Info("stop requested")
		l.stopCancel()
	})
}

// Phase returns the current phase.
func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Snapshot returns a copy of the current state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{Phase: l.phase, RunState: l.state}
}

// Run streams until stopped or until a fatal error. It returns nil
// when the run ended because of Stop or ctx cancellation, and
// otherwise an error matching ErrAvailabilityTimeout, ErrSetup, or
// ErrNavigation. Run may be called once.
func (l *Loop) Run(ctx context.Context) (err error) {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unlink := context.AfterFunc(l.stopContext, cancel)
	defer unlink()

	l.mu.Lock()
	l.state.Running = true
	l.mu.Unlock()
	defer func() { l.finish(err) }()

	l.transition(PhaseWaitingForTarget)
	if !l.prober.Wait(ctx, l.config.TargetURL, l.config.ProbeTimeout()) {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w within %v: %s", ErrAvailabilityTimeout, l.config.ProbeTimeout(), l.config.TargetURL)
	}

	if err := l.session.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if err := l.session.NavigateOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	l.transition(PhaseStreaming)
	interval := l.config.Interval()
	for ctx.Err() == nil {
		if err := l.cycle(ctx); err != nil && ctx.Err() == nil {
			var deliveryError *delivery.DeliveryError
			if errors.As(err, &deliveryError) {
				l.logger.Warn("frame dropped", "attempts", deliveryError.Attempts, "error", deliveryError.Last)
			} else {
				l.logger.Warn("capture cycle abandoned", "error", err)
			}
		}
		l.observe(nil)

		select {
		case <-l.clock.After(interval):
		case <-ctx.Done():
		}
	}
	return nil
}

// cycle captures one frame and delivers it if it changed.
func (l *Loop) cycle(ctx context.Context) error {
	data, err := l.session.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.update(func(state *RunState) { state.CaptureFailures++ })
		}
		return &CaptureError{Err: err}
	}
	capturedAt := l.clock.Now()

	var (
		isNew       bool
		fingerprint frame.Fingerprint
		sequence    uint64
	)
	l.update(func(state *RunState) {
		state.Captured++
		isNew, fingerprint = frame.Detect(data, state.LastFingerprint)
		if !isNew {
			state.Duplicates++
			return
		}
		state.LastFingerprint = &fingerprint
		state.FrameCount++
		sequence = state.FrameCount
	})
	if !isNew {
		return nil
	}

	payload := delivery.NewPayload(frame.Frame{
		Data:        data,
		Fingerprint: fingerprint,
		Sequence:    sequence,
		CapturedAt:  capturedAt,
	}, l.viewport)
	if _, err := l.sender.Send(ctx, payload); err != nil {
		if ctx.Err() == nil {
			l.update(func(state *RunState) { state.Dropped++ })
		}
		return err
	}

	l.update(func(state *RunState) { state.Sent++ })
	if sequence%logEvery == 0 {
		l.logger.Info("sent frame", "frame_number", sequence, "fingerprint", fingerprint.String())
	}
	return nil
}

func (l *Loop) update(apply func(*RunState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	apply(&l.state)
}

func (l *Loop) transition(phase Phase) {
	l.mu.Lock()
	previous := l.phase
	l.phase = phase
	l.mu.Unlock()

	l.logger.Info("stream phase changed", "from", previous.String(), "to", phase.String())
	l.observe(nil)
}

// finish releases the session and enters PhaseStopped. It runs once,
// deferred by Run.
func (l *Loop) finish(runErr error) {
	if err := l.session.Close(); err != nil {
		l.logger.Warn("closing capture session", "error", err)
	}

	l.mu.Lock()
	previous := l.phase
	l.phase = PhaseStopped
	l.state.Running = false
	counters := l.state.Counters
	frameCount := l.state.FrameCount
	l.mu.Unlock()

	if runErr != nil {
		l.logger.Error("stream stopped", "from", previous.String(), "error", runErr,
			"frames", frameCount, "sent", counters.Sent, "dropped", counters.Dropped)
	} else {
		l.logger.Info("stream stopped", "from", previous.String(),
			"frames", frameCount, "sent", counters.Sent, "dropped", counters.Dropped)
	}
	l.observe(runErr)
}

func (l *Loop) observe(err error) {
	if l.observer == nil {
		return
	}
	snapshot := l.Snapshot()
	snapshot.Err = err
	l.observer.Observe(snapshot)
}
