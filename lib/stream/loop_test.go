// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/browser/browsertest"
	"github.com/bureau-foundation/preview/lib/capture"
	"github.com/bureau-foundation/preview/lib/clock"
	"github.com/bureau-foundation/preview/lib/config"
	"github.com/bureau-foundation/preview/lib/delivery"
	"github.com/bureau-foundation/preview/lib/frame"
	"github.com/bureau-foundation/preview/lib/logging"
	"github.com/bureau-foundation/preview/lib/testutil"
)

const testInterval = 2 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeProber answers Wait with available. With block set it instead
// waits for ctx to end and reports unavailable; entered is closed
// once Wait is called.
type fakeProber struct {
	available bool
	block     bool
	entered   chan struct{}
	once      sync.Once
}

func newFakeProber(available bool) *fakeProber {
	return &fakeProber{available: available, entered: make(chan struct{})}
}

func (p *fakeProber) Wait(ctx context.Context, targetURL string, timeout time.Duration) bool {
	p.once.Do(func() { close(p.entered) })
	if p.block {
		<-ctx.Done()
		return false
	}
	return p.available
}

// fakeSender records payloads and fails the calls listed in failOn
// (1-based).
type fakeSender struct {
	mu       sync.Mutex
	failOn   map[int]bool
	payloads []delivery.Payload
}

func (s *fakeSender) Send(ctx context.Context, payload delivery.Payload) (delivery.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	if s.failOn[len(s.payloads)] {
		return delivery.Result{}, &delivery.DeliveryError{Attempts: 4, Last: errors.New("control plane returned 503")}
	}
	return delivery.Result{Attempts: 1}, nil
}

func (s *fakeSender) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sequences []uint64
	for _, payload := range s.payloads {
		sequences = append(sequences, payload.FrameNumber)
	}
	return sequences
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (o *recordingObserver) Observe(snapshot Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, snapshot)
}

func (o *recordingObserver) phases() []Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	var phases []Phase
	for _, snapshot := range o.snapshots {
		if len(phases) == 0 || phases[len(phases)-1] != snapshot.Phase {
			phases = append(phases, snapshot.Phase)
		}
	}
	return phases
}

func (o *recordingObserver) last() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshots[len(o.snapshots)-1]
}

type harness struct {
	t        *testing.T
	browser  *browsertest.Fake
	prober   *fakeProber
	sender   *fakeSender
	clock    *clock.FakeClock
	observer *recordingObserver
	loop     *Loop
	done     chan error
}

func testConfig() *config.Stream {
	cfg := config.Default()
	cfg.TargetURL = "http://localhost:5173"
	cfg.ControlPlaneURL = "http://control-plane.test"
	cfg.SessionID = "session-1"
	cfg.AuthToken = "token"
	cfg.IntervalSeconds = testInterval.Seconds()
	return cfg
}

func newHarness(t *testing.T, fake *browsertest.Fake, prober *fakeProber, sender *fakeSender, logger *slog.Logger) *harness {
	t.Helper()
	cfg := testConfig()
	if logger == nil {
		logger = logging.Discard()
	}
	h := &harness{
		t:        t,
		browser:  fake,
		prober:   prober,
		sender:   sender,
		clock:    clock.Fake(epoch),
		observer: &recordingObserver{},
		done:     make(chan error, 1),
	}
	session := capture.NewSession(fake, capture.Options{
		TargetURL:         cfg.TargetURL,
		Viewport:          browser.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		Quality:           cfg.Quality,
		NavigationTimeout: cfg.NavigationTimeout(),
	})
	loop, err := New(Options{
		Config:   cfg,
		Prober:   prober,
		Session:  session,
		Sender:   sender,
		Clock:    h.clock,
		Logger:   logger,
		Observer: h.observer,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.loop = loop
	return h
}

func (h *harness) start() {
	go func() { h.done <- h.loop.Run(context.Background()) }()
}

// sleepThrough lets n inter-cycle sleeps elapse.
func (h *harness) sleepThrough(n int) {
	for range n {
		h.clock.WaitForTimers(1)
		h.clock.Advance(testInterval)
	}
}

// stopWhileSleeping waits for the loop to reach its sleep, stops it and
// returns Run's result.
func (h *harness) stopWhileSleeping() error {
	h.t.Helper()
	h.clock.WaitForTimers(1)
	h.loop.Stop()
	return h.wait()
}

func (h *harness) wait() error {
	h.t.Helper()
	return testutil.RequireReceive(h.t, h.done, 5*time.Second, "waiting for Run to return")
}

func captures(frames ...string) []browsertest.Capture {
	var result []browsertest.Capture
	for _, data := range frames {
		result = append(result, browsertest.Capture{Data: []byte(data)})
	}
	return result
}

func equalSequences(got, want []uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Target immediately available, three captures A, A, B: two frames
// sent with sequence numbers 1 and 2, the repeat skipped.
func TestStreamSkipsDuplicateFrames(t *testing.T) {
	fake := &browsertest.Fake{Captures: captures("A", "A", "B")}
	sender := &fakeSender{}
	h := newHarness(t, fake, newFakeProber(true), sender, nil)

	h.start()
	h.sleepThrough(2)
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sender.sequences(); !equalSequences(got, []uint64{1, 2}) {
		t.Errorf("sent sequences = %v, want [1 2]", got)
	}
	if sender.payloads[0].FrameHash != frame.Compute([]byte("A")).String() ||
		sender.payloads[1].FrameHash != frame.Compute([]byte("B")).String() {
		t.Errorf("frame hashes = %q, %q", sender.payloads[0].FrameHash, sender.payloads[1].FrameHash)
	}

	snapshot := h.loop.Snapshot()
	want := Counters{Captured: 3, Sent: 2, Duplicates: 1}
	if snapshot.Counters != want {
		t.Errorf("counters = %+v, want %+v", snapshot.Counters, want)
	}
	if snapshot.FrameCount != 2 {
		t.Errorf("frame count = %d, want 2", snapshot.FrameCount)
	}
	if fake.CloseCount() != 1 {
		t.Errorf("browser closed %d times, want 1", fake.CloseCount())
	}
}

func TestStreamSequenceIsGapFreeWhenDeliverySucceeds(t *testing.T) {
	fake := &browsertest.Fake{Captures: captures("1", "2", "3", "4", "5")}
	sender := &fakeSender{}
	h := newHarness(t, fake, newFakeProber(true), sender, nil)

	h.start()
	h.sleepThrough(4)
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sequences(); !equalSequences(got, []uint64{1, 2, 3, 4, 5}) {
		t.Errorf("sent sequences = %v, want [1 2 3 4 5]", got)
	}
	for _, payload := range sender.payloads {
		if payload.Width != 1280 || payload.Height != 720 || payload.Type != delivery.PayloadType {
			t.Errorf("payload %d = %+v", payload.FrameNumber, payload)
		}
	}
}

// A dropped frame keeps its sequence number and its fingerprint: the
// unchanged page is not resent and the next change gets the next
// number.
func TestStreamDroppedFrameLeavesGap(t *testing.T) {
	fake := &browsertest.Fake{Captures: captures("A", "B", "B", "C")}
	sender := &fakeSender{failOn: map[int]bool{2: true}}
	h := newHarness(t, fake, newFakeProber(true), sender, nil)

	h.start()
	h.sleepThrough(3)
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sender.sequences(); !equalSequences(got, []uint64{1, 2, 3}) {
		t.Errorf("attempted sequences = %v, want [1 2 3]", got)
	}
	if got := sender.payloads[2].FrameHash; got != frame.Compute([]byte("C")).String() {
		t.Errorf("third send hash = %q, want C's", got)
	}
	want := Counters{Captured: 4, Sent: 2, Dropped: 1, Duplicates: 1}
	if got := h.loop.Snapshot().Counters; got != want {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}

func TestStreamContinuesAfterCaptureFailure(t *testing.T) {
	fake := &browsertest.Fake{Captures: []browsertest.Capture{
		{Err: errors.New("target crashed")},
		{Data: []byte("A")},
	}}
	sender := &fakeSender{}
	h := newHarness(t, fake, newFakeProber(true), sender, nil)

	h.start()
	h.sleepThrough(1)
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sequences(); !equalSequences(got, []uint64{1}) {
		t.Errorf("sent sequences = %v, want [1]", got)
	}
	want := Counters{Captured: 1, Sent: 1, CaptureFailures: 1}
	if got := h.loop.Snapshot().Counters; got != want {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}

// The target never answers: the run ends with ErrAvailabilityTimeout
// and the browser is never launched.
func TestStreamAvailabilityTimeout(t *testing.T) {
	fake := &browsertest.Fake{}
	h := newHarness(t, fake, newFakeProber(false), &fakeSender{}, nil)

	h.start()
	err := h.wait()
	if !errors.Is(err, ErrAvailabilityTimeout) {
		t.Fatalf("Run = %v, want ErrAvailabilityTimeout", err)
	}
	if len(fake.Launches()) != 0 || fake.CaptureCount() != 0 {
		t.Errorf("browser used: launches=%d captures=%d", len(fake.Launches()), fake.CaptureCount())
	}
	if h.loop.Phase() != PhaseStopped {
		t.Errorf("phase = %v, want stopped", h.loop.Phase())
	}
	if last := h.observer.last(); last.Phase != PhaseStopped || !errors.Is(last.Err, ErrAvailabilityTimeout) {
		t.Errorf("final snapshot = %+v", last)
	}
}

func TestStreamNavigationFailureIsFatal(t *testing.T) {
	fake := &browsertest.Fake{NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	sender := &fakeSender{}
	h := newHarness(t, fake, newFakeProber(true), sender, nil)

	h.start()
	err := h.wait()
	if !errors.Is(err, ErrNavigation) {
		t.Fatalf("Run = %v, want ErrNavigation", err)
	}
	var navigationError *capture.NavigationError
	if !errors.As(err, &navigationError) {
		t.Errorf("Run error does not wrap *capture.NavigationError: %v", err)
	}
	if fake.CloseCount() != 1 {
		t.Errorf("browser closed %d times, want 1", fake.CloseCount())
	}
	if fake.CaptureCount() != 0 || len(sender.payloads) != 0 {
		t.Errorf("streamed after navigation failure")
	}
	if phases := h.observer.phases(); len(phases) == 0 || phases[len(phases)-1] != PhaseStopped {
		t.Errorf("phases = %v", phases)
	}
	for _, phase := range h.observer.phases() {
		if phase == PhaseStreaming {
			t.Error("entered streaming despite navigation failure")
		}
	}
}

func TestStreamLaunchFailureIsSetupError(t *testing.T) {
	fake := &browsertest.Fake{LaunchErr: errors.New("no chromium")}
	h := newHarness(t, fake, newFakeProber(true), &fakeSender{}, nil)

	h.start()
	if err := h.wait(); !errors.Is(err, ErrSetup) {
		t.Fatalf("Run = %v, want ErrSetup", err)
	}
	if fake.CloseCount() != 0 {
		t.Errorf("closed a browser that never launched")
	}
}

// Stop during the inter-cycle sleep returns promptly and releases the
// browser exactly once, however many times Stop is called.
func TestStreamStopDuringSleep(t *testing.T) {
	fake := &browsertest.Fake{Captures: captures("A")}
	h := newHarness(t, fake, newFakeProber(true), &fakeSender{}, nil)

	h.start()
	h.clock.WaitForTimers(1)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.loop.Stop()
		}()
	}
	wg.Wait()
	if err := h.wait(); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	h.loop.Stop()

	if fake.CloseCount() != 1 {
		t.Errorf("browser closed %d times, want 1", fake.CloseCount())
	}
	snapshot := h.loop.Snapshot()
	if snapshot.Phase != PhaseStopped || snapshot.Running {
		t.Errorf("snapshot = %+v, want stopped and not running", snapshot)
	}
	if fake.OpenCount() != 0 {
		t.Errorf("%d browsers left open", fake.OpenCount())
	}
}

func TestStreamStopDuringProbe(t *testing.T) {
	fake := &browsertest.Fake{}
	prober := newFakeProber(false)
	prober.block = true
	h := newHarness(t, fake, prober, &fakeSender{}, nil)

	h.start()
	testutil.RequireClosed(t, prober.entered, 5*time.Second, "waiting for the probe to start")
	h.loop.Stop()
	if err := h.wait(); err != nil {
		t.Fatalf("Run = %v, want nil after Stop", err)
	}
	if len(fake.Launches()) != 0 {
		t.Errorf("browser launched after Stop")
	}
}

func TestStreamContextCancellation(t *testing.T) {
	fake := &browsertest.Fake{}
	prober := newFakeProber(false)
	prober.block = true
	h := newHarness(t, fake, prober, &fakeSender{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.loop.Run(ctx) }()
	testutil.RequireClosed(t, prober.entered, 5*time.Second, "waiting for the probe to start")
	cancel()
	if err := h.wait(); err != nil {
		t.Fatalf("Run = %v, want nil after cancellation", err)
	}
}

func TestStreamStopBeforeRun(t *testing.T) {
	fake := &browsertest.Fake{}
	prober := newFakeProber(false)
	prober.block = true
	h := newHarness(t, fake, prober, &fakeSender{}, nil)

	h.loop.Stop()
	h.start()
	if err := h.wait(); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if h.loop.Phase() != PhaseStopped {
		t.Errorf("phase = %v, want stopped", h.loop.Phase())
	}
}

func TestStreamRunOnce(t *testing.T) {
	h := newHarness(t, &browsertest.Fake{}, newFakeProber(false), &fakeSender{}, nil)
	h.start()
	if err := h.wait(); !errors.Is(err, ErrAvailabilityTimeout) {
		t.Fatalf("Run = %v", err)
	}
	if err := h.loop.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run = %v, want ErrAlreadyRun", err)
	}
}

func TestStreamObserverSeesPhases(t *testing.T) {
	fake := &browsertest.Fake{Captures: captures("A")}
	h := newHarness(t, fake, newFakeProber(true), &fakeSender{}, nil)

	h.start()
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Phase{PhaseWaitingForTarget, PhaseStreaming, PhaseStopped}
	got := h.observer.phases()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phases = %v, want %v", got, want)
			break
		}
	}
	last := h.observer.last()
	if last.Err != nil || last.Running || last.Sent != 1 {
		t.Errorf("final snapshot = %+v", last)
	}
}

// Every tenth delivered frame is logged at Info.
func TestStreamLogsEveryTenthFrame(t *testing.T) {
	var frames []string
	for i := range 12 {
		frames = append(frames, string(rune('a'+i)))
	}
	fake := &browsertest.Fake{Captures: captures(frames...)}
	var output bytes.Buffer
	logger := logging.New(logging.Options{Format: logging.FormatJSON, Output: &output})
	h := newHarness(t, fake, newFakeProber(true), &fakeSender{}, logger)

	h.start()
	h.sleepThrough(11)
	if err := h.stopWhileSleeping(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sentLines []map[string]any
	for _, line := range bytes.Split(output.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if record["msg"] == "sent frame" {
			sentLines = append(sentLines, record)
		}
	}
	if len(sentLines) != 1 || sentLines[0]["frame_number"] != float64(10) {
		t.Errorf("sent frame log lines = %v, want one for frame 10", sentLines)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New with no options succeeded")
	}
	cfg := testConfig()
	cfg.IntervalSeconds = 0
	_, err := New(Options{
		Config:  cfg,
		Prober:  newFakeProber(true),
		Session: capture.NewSession(&browsertest.Fake{}, capture.Options{}),
		Sender:  &fakeSender{},
		Clock:   clock.Fake(epoch),
	})
	if err == nil {
		t.Error("New with a zero interval succeeded")
	}
}

func TestPhaseString(t *testing.T) {
	for phase, want := range map[Phase]string{
		PhaseInit:             "init",
		PhaseWaitingForTarget: "waiting_for_target",
		PhaseStreaming:        "streaming",
		PhaseStopped:          "stopped",
		Phase(9):              "phase(9)",
	} {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(phase), got, want)
		}
	}
}

// eventSession records the order of session calls.
type eventSession struct {
	Session
	events *testutil.EventLog
}

func (s *eventSession) Open(ctx context.Context) error {
	s.events.Add("open")
	return s.Session.Open(ctx)
}

func (s *eventSession) NavigateOnce(ctx context.Context) error {
	s.events.Add("navigate")
	return s.Session.NavigateOnce(ctx)
}

func (s *eventSession) Capture(ctx context.Context) ([]byte, error) {
	s.events.Add("capture")
	return s.Session.Capture(ctx)
}

func (s *eventSession) Close() error {
	s.events.Add("close")
	return s.Session.Close()
}

type eventProber struct{ events *testutil.EventLog }

func (p eventProber) Wait(ctx context.Context, targetURL string, timeout time.Duration) bool {
	p.events.Add("probe")
	return true
}

type eventSender struct{ events *testutil.EventLog }

func (s eventSender) Send(ctx context.Context, payload delivery.Payload) (delivery.Result, error) {
	s.events.Add("send")
	return delivery.Result{Attempts: 1}, nil
}

func TestStreamCallOrder(t *testing.T) {
	events := &testutil.EventLog{}
	fake := &browsertest.Fake{Captures: captures("A", "A")}
	session := &eventSession{
		Session: capture.NewSession(fake, capture.Options{TargetURL: "http://localhost:5173"}),
		events:  events,
	}
	fakeClock := clock.Fake(epoch)
	loop, err := New(Options{
		Config:  testConfig(),
		Prober:  eventProber{events: events},
		Session: session,
		Sender:  eventSender{events: events},
		Clock:   fakeClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(testInterval)
	fakeClock.WaitForTimers(1)
	loop.Stop()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run to return"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"probe", "open", "navigate", "capture", "send", "capture", "close"}
	got := events.Events()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("events = %v, want %v", got, want)
	}
	if closes := events.Count("close"); closes != 1 {
		t.Errorf("session closed %d times, want 1", closes)
	}
}

// launchingSession blocks in Open until its context ends, as a browser
// launch does while Chromium is being located or downloaded.
type launchingSession struct {
	entered chan struct{}
	closes  atomic.Int32
}

func (s *launchingSession) Open(ctx context.Context) error {
	close(s.entered)
	<-ctx.Done()
	return ctx.Err()
}

func (s *launchingSession) NavigateOnce(ctx context.Context) error { return nil }

func (s *launchingSession) Capture(ctx context.Context) ([]byte, error) { return nil, nil }

func (s *launchingSession) Close() error {
	s.closes.Add(1)
	return nil
}

func TestStreamStopDuringLaunch(t *testing.T) {
	session := &launchingSession{entered: make(chan struct{})}
	loop, err := New(Options{
		Config:  testConfig(),
		Prober:  newFakeProber(true),
		Session: session,
		Sender:  &fakeSender{},
		Clock:   clock.Fake(epoch),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	testutil.RequireClosed(t, session.entered, 5*time.Second, "waiting for the launch to start")
	loop.Stop()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run to return"); err != nil {
		t.Fatalf("Run = %v, want nil after Stop", err)
	}
	if closes := session.closes.Load(); closes != 1 {
		t.Errorf("Close called %d times, want 1", closes)
	}
	if loop.Phase() != PhaseStopped {
		t.Errorf("phase = %v, want stopped", loop.Phase())
	}
}
