// Package scheduler decides when test cycles run and executes them. It owns
// the run state and the single-slot mailbox of pending manual triggers.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/network-status/internal/history"
	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/probe"
)

// Background cadence.
const (
	NormalInterval   = time.Minute
	ExtendedInterval = time.Hour
)

// CheckTimeout bounds a single check regardless of its own timeouts.
const CheckTimeout = probe.SpeedTimeout + probe.Timeout

// Kind selects which checks a cycle runs.
type Kind string

const (
	KindNormal   Kind = "NORMAL"
	KindExtended Kind = "EXTENDED"
)

// Trigger records why a cycle ran.
type Trigger string

const (
	TriggerTimer Trigger = "timer"
	TriggerShort Trigger = "short-hold"
	TriggerLong  Trigger = "long-hold"
	TriggerOnce  Trigger = "once"
)

// Cycle describes one test cycle.
type Cycle struct {
	Kind         Kind
	Trigger      Trigger
	Started      time.Time
	Finished     time.Time // zero while running
	Observations []logic.Observation
}

// Failed reports whether any observation of the cycle failed.
func (c Cycle) Failed() bool {
	for _, o := range c.Observations {
		if o.Failed() {
			return true
		}
	}
	return false
}

// Failures returns the number of failed observations.
func (c Cycle) Failures() int {
	n := 0
	for _, o := range c.Observations {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Observer is notified at cycle boundaries. Calls are made from the goroutine
// running the cycle and must not block.
type Observer interface {
	CycleStarted(c Cycle)
	CycleCompleted(c Cycle)
}

// State is a consistent view of the scheduler's state.
type State struct {
	Run     logic.RunState
	Pending logic.HoldKind
}

// Scheduler runs background and manually triggered cycles, one at a time.
type Scheduler struct {
	suite     probe.Suite
	store     *history.Store
	now       func() time.Time
	observers []Observer

	mu           sync.Mutex
	running      bool
	pending      logic.HoldKind
	nextNormal   time.Time
	nextExtended time.Time

	wake  chan struct{}
	runMu sync.Mutex
}

// New creates a scheduler. The first background cycle is extended and due
// immediately.
func New(suite probe.Suite, store *history.Store, now func() time.Time, observers ...Observer) *Scheduler {
	return &Scheduler{
		suite:     suite,
		store:     store,
		now:       now,
		observers: observers,
		wake:      make(chan struct{}, 1),
	}
}

// Submit queues a manual trigger. It never blocks; a newer hold replaces one
// that has not started yet. A hold submitted while a cycle is running runs
// right after that cycle.
func (s *Scheduler) Submit(kind logic.HoldKind) {
	if kind == logic.HoldNone {
		return
	}
	s.mu.Lock()
	replaced := s.pending
	s.pending = kind
	running := s.running
	s.mu.Unlock()

	switch {
	case replaced != logic.HoldNone:
		log.Printf("cycle: %s hold replaces pending %s hold", kind, replaced)
	case running:
		log.Printf("cycle: %s hold queued behind running cycle", kind)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// State returns the current run state and pending hold.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Run: logic.Idle, Pending: s.pending}
	if s.running {
		st.Run = logic.Running
	}
	return st
}

// Indicator derives the indicator state at now.
func (s *Scheduler) Indicator(now time.Time) logic.IndicatorState {
	st := s.State()
	return logic.Aggregate(st.Run, st.Pending, s.store, now)
}

// Run executes due cycles until ctx is canceled. Pending holds are checked
// first, then the background timers. tick paces the timer checks.
func (s *Scheduler) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		for ctx.Err() == nil {
			kind, trigger, ok := s.next(s.now())
			if !ok {
				break
			}
			s.execute(ctx, kind, trigger)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-s.wake:
		}
	}
}

// RunOnce runs a single cycle synchronously and returns it.
func (s *Scheduler) RunOnce(ctx context.Context, kind Kind) Cycle {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		panic("scheduler: RunOnce while a cycle is running")
	}
	s.running = true
	s.mu.Unlock()
	return s.execute(ctx, kind, TriggerOnce)
}

// next picks the next cycle to run at now and, if there is one, marks the
// scheduler running in the same critical section that takes the pending hold.
func (s *Scheduler) next(now time.Time) (Kind, Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		kind    Kind
		trigger Trigger
	)
	switch {
	case s.pending == logic.HoldLong:
		kind, trigger = KindExtended, TriggerLong
	case s.pending == logic.HoldShort:
		kind, trigger = KindNormal, TriggerShort
	case !now.Before(s.nextExtended):
		kind, trigger = KindExtended, TriggerTimer
	case !now.Before(s.nextNormal):
		kind, trigger = KindNormal, TriggerTimer
	default:
		return "", "", false
	}
	s.pending = logic.HoldNone
	s.running = true
	return kind, trigger, true
}

// execute runs one cycle. The caller has already set running.
func (s *Scheduler) execute(ctx context.Context, kind Kind, trigger Trigger) Cycle {
	if !s.runMu.TryLock() {
		panic("scheduler: two cycles running at once")
	}
	defer s.runMu.Unlock()

	c := Cycle{Kind: kind, Trigger: trigger, Started: s.now()}
	log.Printf("cycle: start %s (%s)", kind, trigger)
	for _, o := range s.observers {
		o.CycleStarted(c)
	}

	for _, check := range s.suite.Checks(kind == KindExtended) {
		if ctx.Err() != nil {
			break
		}
		obs := s.runCheck(ctx, check)
		log.Printf("cycle: %s %s %s %s", obs.Target, obs.Check, obs.Outcome, obs.Detail)
		c.Observations = append(c.Observations, obs)
	}
	c.Finished = s.now()

	if ctx.Err() != nil {
		// Shutting down: a partial cycle says nothing about the network.
		log.Printf("cycle: %s aborted", kind)
		s.finish(kind, c.Finished)
		return c
	}

	s.store.RecordCycle(c.Finished, c.Observations)
	s.finish(kind, c.Finished)

	log.Printf("cycle: end %s %s (%d checks, %d failed, %v)",
		kind, logic.OutcomeOf(!c.Failed()), len(c.Observations), c.Failures(),
		c.Finished.Sub(c.Started).Round(time.Millisecond))
	for _, o := range s.observers {
		o.CycleCompleted(c)
	}
	return c
}

// finish clears the running flag and resets the timers the cycle covered.
func (s *Scheduler) finish(kind Kind, at time.Time) {
	s.mu.Lock()
	s.running = false
	s.nextNormal = at.Add(NormalInterval)
	if kind == KindExtended {
		s.nextExtended = at.Add(ExtendedInterval)
	}
	s.mu.Unlock()
}

// runCheck runs one check and converts its result, or a panic, into an
// observation.
func (s *Scheduler) runCheck(ctx context.Context, check probe.Check) (obs logic.Observation) {
	obs = logic.Observation{Target: check.Target().ID, Check: check.Name()}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cycle: check %s panicked: %v", check.Name(), r)
			obs.Outcome = logic.OutcomeFail
			obs.Timestamp = s.now()
			obs.Detail = fmt.Sprintf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	res := check.Run(ctx)
	obs.Outcome = logic.OutcomeOf(res.OK)
	obs.Timestamp = s.now()
	obs.Latency = res.Latency
	obs.Detail = res.Detail
	if !res.OK && obs.Detail == "" && res.Err != nil {
		obs.Detail = res.Err.Error()
	}
	return obs
}
