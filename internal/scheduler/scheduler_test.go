package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/network-status/internal/history"
	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/probe"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stubCheck returns a fixed result and counts its runs.
type stubCheck struct {
	name   string
	target probe.Target
	ok     bool

	mu   sync.Mutex
	runs int
}

func (c *stubCheck) Name() string         { return c.name }
func (c *stubCheck) Target() probe.Target { return c.target }

func (c *stubCheck) Run(context.Context) probe.Result {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	if c.ok {
		return probe.Result{OK: true, Detail: "ok"}
	}
	return probe.Result{Detail: "unreachable"}
}

func (c *stubCheck) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// gateCheck blocks every run until released.
type gateCheck struct {
	started chan struct{}
	release chan struct{}
}

func newGateCheck() *gateCheck {
	return &gateCheck{started: make(chan struct{}, 10), release: make(chan struct{}, 10)}
}

func (c *gateCheck) Name() string         { return "gate" }
func (c *gateCheck) Target() probe.Target { return probe.External }

func (c *gateCheck) Run(ctx context.Context) probe.Result {
	c.started <- struct{}{}
	select {
	case <-c.release:
		return probe.Result{OK: true}
	case <-ctx.Done():
		return probe.Result{Err: ctx.Err()}
	}
}

type panicCheck struct{}

func (panicCheck) Name() string                     { return "broken" }
func (panicCheck) Target() probe.Target             { return probe.Printer }
func (panicCheck) Run(context.Context) probe.Result { panic("nil resolver") }

type recorder struct {
	started   chan Cycle
	completed chan Cycle
}

func newRecorder() *recorder {
	return &recorder{started: make(chan Cycle, 10), completed: make(chan Cycle, 10)}
}

func (r *recorder) CycleStarted(c Cycle)   { r.started <- c }
func (r *recorder) CycleCompleted(c Cycle) { r.completed <- c }

func waitCycle(t *testing.T, ch <-chan Cycle) Cycle {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle")
		return Cycle{}
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for check to start")
	}
}

func expectNoCycle(t *testing.T, ch <-chan Cycle) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected cycle %s (%s)", c.Kind, c.Trigger)
	case <-time.After(50 * time.Millisecond):
	}
}

// quiet pushes both background timers far out so only holds run.
func quiet(s *Scheduler, now time.Time) {
	s.mu.Lock()
	s.nextNormal = now.Add(24 * time.Hour)
	s.nextExtended = now.Add(24 * time.Hour)
	s.mu.Unlock()
}

func startRun(t *testing.T, s *Scheduler, tick <-chan time.Time) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, tick)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestBackgroundCadence(t *testing.T) {
	clock := &fakeClock{t: t0}
	normal := &stubCheck{name: "external-ping", target: probe.External, ok: true}
	extended := &stubCheck{name: "speedtest", target: probe.External, ok: true}
	rec := newRecorder()
	s := New(probe.Suite{Normal: []probe.Check{normal}, Extended: []probe.Check{extended}},
		history.NewStore(), clock.Now, rec)

	tick := make(chan time.Time)
	stop := startRun(t, s, tick)
	defer stop()

	c := waitCycle(t, rec.completed)
	if c.Kind != KindExtended || c.Trigger != TriggerTimer {
		t.Fatalf("first cycle: got %s/%s, want EXTENDED/timer", c.Kind, c.Trigger)
	}
	if normal.Runs() != 1 || extended.Runs() != 1 {
		t.Fatalf("extended cycle runs normal and extended checks, got %d/%d", normal.Runs(), extended.Runs())
	}

	clock.Advance(30 * time.Second)
	tick <- clock.Now()
	expectNoCycle(t, rec.completed)

	clock.Advance(30 * time.Second)
	tick <- clock.Now()
	c = waitCycle(t, rec.completed)
	if c.Kind != KindNormal {
		t.Fatalf("expected NORMAL after one minute, got %s", c.Kind)
	}
	if extended.Runs() != 1 {
		t.Errorf("normal cycle must not run extended checks")
	}

	clock.Advance(time.Hour)
	tick <- clock.Now()
	c = waitCycle(t, rec.completed)
	if c.Kind != KindExtended {
		t.Fatalf("expected EXTENDED after one hour, got %s", c.Kind)
	}
}

func TestShortHoldWhileIdle(t *testing.T) {
	// Scenario D
	clock := &fakeClock{t: t0}
	gate := newGateCheck()
	rec := newRecorder()
	store := history.NewStore()
	s := New(probe.Suite{Normal: []probe.Check{gate}}, store, clock.Now, rec)
	quiet(s, t0)

	s.Submit(logic.HoldShort)
	if got := s.Indicator(clock.Now()); got != logic.Off {
		t.Fatalf("pending hold: got %s, want OFF", got)
	}

	stop := startRun(t, s, nil)
	defer stop()

	waitSignal(t, gate.started)
	if got := s.Indicator(clock.Now()); got != logic.Orange {
		t.Fatalf("running: got %s, want ORANGE", got)
	}
	if st := s.State(); st.Pending != logic.HoldNone {
		t.Errorf("hold should be consumed when the cycle starts, got %s", st.Pending)
	}

	gate.release <- struct{}{}
	c := waitCycle(t, rec.completed)
	if c.Trigger != TriggerShort || c.Kind != KindNormal {
		t.Errorf("got %s/%s, want NORMAL/short-hold", c.Kind, c.Trigger)
	}
	if got := s.Indicator(clock.Now()); got != logic.SolidGreen {
		t.Errorf("after a clean cycle: got %s, want SOLID_GREEN", got)
	}
}

func TestHoldDuringRunningIsQueued(t *testing.T) {
	// Scenario E
	clock := &fakeClock{t: t0}
	gate := newGateCheck()
	extended := &stubCheck{name: "speedtest", target: probe.External, ok: true}
	rec := newRecorder()
	s := New(probe.Suite{Normal: []probe.Check{gate}, Extended: []probe.Check{extended}},
		history.NewStore(), clock.Now, rec)

	// Only the normal timer is due: the first cycle is a background normal one.
	s.mu.Lock()
	s.nextExtended = t0.Add(ExtendedInterval)
	s.mu.Unlock()

	stop := startRun(t, s, nil)
	defer stop()
	waitSignal(t, gate.started)

	// Two holds while running: the later one wins.
	s.Submit(logic.HoldShort)
	s.Submit(logic.HoldLong)
	if got := s.Indicator(clock.Now()); got != logic.Orange {
		t.Fatalf("running with pending hold: got %s, want ORANGE", got)
	}
	if st := s.State(); st.Run != logic.Running || st.Pending != logic.HoldLong {
		t.Fatalf("got %+v, want RUNNING with pending LONG", st)
	}

	gate.release <- struct{}{}
	first := waitCycle(t, rec.completed)
	if first.Trigger != TriggerTimer || first.Kind != KindNormal {
		t.Fatalf("first cycle: got %s/%s, want NORMAL/timer", first.Kind, first.Trigger)
	}
	if extended.Runs() != 0 {
		t.Fatalf("background normal cycle ran %d extended checks", extended.Runs())
	}

	waitSignal(t, gate.started)
	gate.release <- struct{}{}
	second := waitCycle(t, rec.completed)
	if second.Trigger != TriggerLong || second.Kind != KindExtended {
		t.Fatalf("queued cycle: got %s/%s, want EXTENDED/long-hold", second.Kind, second.Trigger)
	}
	if extended.Runs() != 1 {
		t.Errorf("queued long hold should run the extended checks once, got %d", extended.Runs())
	}
	if len(second.Observations) != 2 {
		t.Errorf("expected normal and extended observations, got %d", len(second.Observations))
	}

	expectNoCycle(t, rec.completed)
}

func TestRunOnceNotifiesObservers(t *testing.T) {
	clock := &fakeClock{t: t0}
	rec := newRecorder()
	s := New(probe.Suite{}, history.NewStore(), clock.Now, rec)

	s.RunOnce(context.Background(), KindNormal)
	c := waitCycle(t, rec.started)
	if !c.Finished.IsZero() {
		t.Error("started cycle should have no finish time")
	}
	if st := s.State(); st.Run != logic.Idle {
		t.Errorf("expected IDLE after RunOnce, got %s", st.Run)
	}
}

func TestPanickingCheckBecomesFailure(t *testing.T) {
	clock := &fakeClock{t: t0}
	ok := &stubCheck{name: "external-ping", target: probe.External, ok: true}
	store := history.NewStore()
	s := New(probe.Suite{Normal: []probe.Check{panicCheck{}, ok}}, store, clock.Now)

	c := s.RunOnce(context.Background(), KindNormal)

	if len(c.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(c.Observations))
	}
	broken := c.Observations[0]
	if !broken.Failed() || broken.Target != probe.Printer.ID {
		t.Errorf("panicking check: got %+v", broken)
	}
	if !strings.Contains(broken.Detail, "nil resolver") {
		t.Errorf("detail should carry the panic value, got %q", broken.Detail)
	}
	if ok.Runs() != 1 {
		t.Error("cycle must continue after a panicking check")
	}
	if store.LastCycleOutcome() != logic.OutcomeFail {
		t.Error("cycle with a panicking check should fail")
	}
}

func TestFailedCycleShowsRed(t *testing.T) {
	clock := &fakeClock{t: t0}
	down := &stubCheck{name: "printer-ping", target: probe.Printer}
	s := New(probe.Suite{Normal: []probe.Check{down}}, history.NewStore(), clock.Now)

	c := s.RunOnce(context.Background(), KindNormal)
	if !c.Failed() || c.Failures() != 1 {
		t.Fatalf("expected one failure, got %d", c.Failures())
	}
	if got := s.Indicator(clock.Now()); got != logic.SolidRed {
		t.Errorf("got %s, want SOLID_RED", got)
	}

	down.ok = true
	clock.Advance(time.Minute)
	s.RunOnce(context.Background(), KindNormal)
	if got := s.Indicator(clock.Now()); got != logic.FastBlinkGreen {
		t.Errorf("got %s, want FAST_BLINK_GREEN", got)
	}
}

func TestManualCyclesResetTimers(t *testing.T) {
	clock := &fakeClock{t: t0}
	s := New(probe.Suite{}, history.NewStore(), clock.Now)

	s.RunOnce(context.Background(), KindExtended)

	if _, _, ok := s.next(t0.Add(59 * time.Second)); ok {
		t.Fatal("nothing should be due before the normal interval")
	}
	kind, trigger, ok := s.next(t0.Add(time.Minute))
	if !ok || kind != KindNormal || trigger != TriggerTimer {
		t.Fatalf("got %s/%s/%v, want NORMAL/timer", kind, trigger, ok)
	}
	s.finish(kind, t0.Add(time.Minute))

	// A normal cycle resets only the normal timer.
	s.RunOnce(context.Background(), KindNormal)
	kind, _, ok = s.next(t0.Add(time.Hour))
	if !ok || kind != KindExtended {
		t.Fatalf("extended timer should still fire at one hour, got %s/%v", kind, ok)
	}
}

func TestCanceledCycleIsNotRecorded(t *testing.T) {
	clock := &fakeClock{t: t0}
	down := &stubCheck{name: "printer-ping", target: probe.Printer}
	store := history.NewStore()
	s := New(probe.Suite{Normal: []probe.Check{down}}, store, clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx, KindNormal)

	if store.Cycles() != 0 || store.Len() != 0 {
		t.Errorf("aborted cycle must not reach history, got %d cycles", store.Cycles())
	}
	if s.State().Run != logic.Idle {
		t.Error("aborted cycle must leave the scheduler idle")
	}
}

func TestConcurrentCyclesPanic(t *testing.T) {
	s := New(probe.Suite{}, history.NewStore(), (&fakeClock{t: t0}).Now)
	s.runMu.Lock()
	defer s.runMu.Unlock()

	defer func() {
		if recover() == nil {
			t.Error("expected panic when a second cycle starts")
		}
	}()
	s.execute(context.Background(), KindNormal, TriggerTimer)
}

func TestSubmitNeverBlocks(t *testing.T) {
	s := New(probe.Suite{}, history.NewStore(), (&fakeClock{t: t0}).Now)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Submit(logic.HoldShort)
		}
		s.Submit(logic.HoldNone)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked without a running scheduler")
	}
	if st := s.State(); st.Pending != logic.HoldShort {
		t.Errorf("HoldNone must not clear a pending hold, got %q", st.Pending)
	}
}
