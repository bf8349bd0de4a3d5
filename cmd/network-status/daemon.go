package main

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/network-status/internal/gpio"
	"github.com/sweeney/network-status/internal/history"
	"github.com/sweeney/network-status/internal/indicator"
	"github.com/sweeney/network-status/internal/input"
	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/mqtt"
	"github.com/sweeney/network-status/internal/probe"
	"github.com/sweeney/network-status/internal/scheduler"
	"github.com/sweeney/network-status/internal/status"
)

// daemon wires the loops to the status tracker and the MQTT publisher.
type daemon struct {
	sched   *scheduler.Scheduler
	store   *history.Store
	monitor *input.Monitor
	driver  *indicator.Driver

	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	now        func() time.Time
}

// loopTicks paces each loop; a nil channel disables the heartbeat.
type loopTicks struct {
	input     <-chan time.Time
	render    <-chan time.Time
	sched     <-chan time.Time
	heartbeat <-chan time.Time
}

func newDaemon(suite probe.Suite, store *history.Store, button gpio.Button, light gpio.Light,
	publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time) *daemon {
	d := &daemon{
		store:      store,
		tracker:    tracker,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		now:        now,
	}
	d.sched = scheduler.New(suite, store, now, d)
	d.monitor = input.NewMonitor(button, input.SinkFunc(d.onHold), now)
	d.driver = indicator.NewDriver(light, d.sched, now)
	d.driver.OnChange = d.onIndicator
	return d
}

func (d *daemon) onHold(kind logic.HoldKind) {
	d.sched.Submit(kind)
	st := d.sched.State()
	d.tracker.SetRunState(st.Run, st.Pending)
	d.tracker.SetHoldCounts(d.monitor.Counts())
}

func (d *daemon) onIndicator(state logic.IndicatorState) {
	st := d.sched.State()
	d.tracker.SetIndicator(state, st.Run, st.Pending)
}

// CycleStarted implements scheduler.Observer.
func (d *daemon) CycleStarted(c scheduler.Cycle) {
	d.driver.CycleStarted(c.Started)
	st := d.sched.State()
	d.tracker.SetRunState(st.Run, st.Pending)
}

// CycleCompleted implements scheduler.Observer.
func (d *daemon) CycleCompleted(c scheduler.Cycle) {
	st := d.sched.State()
	d.tracker.SetRunState(st.Run, st.Pending)
	d.tracker.RecordCycle(c, d.failures())

	if err := d.publisher.PublishCycle(c); err != nil {
		log.Printf("cycle publish error: %v", err)
	}
	d.refreshMQTT()
}

func (d *daemon) failures() status.Failures {
	now := d.now()
	return status.Failures{
		Hour: d.store.FailuresSince(now.Add(-logic.Hour)),
		Day:  d.store.FailuresSince(now.Add(-logic.Day)),
		Week: d.store.FailuresSince(now.Add(-logic.Week)),
	}
}

func (d *daemon) refreshMQTT() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

// publishSystem sends a retained lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	d.refreshMQTT()
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}

func (d *daemon) heartbeat(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			// Refresh network info and window counts for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.tracker.SetFailures(d.failures())
			d.tracker.SetHoldCounts(d.monitor.Counts())
			snap := d.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v indicator=%s cycles=%d failed=%d",
				snap.Uptime().Truncate(time.Second), snap.Indicator, snap.Cycles, snap.FailedCycles)
			d.publishSystem("HEARTBEAT", "")
		}
	}
}

// runLoop runs every loop until a signal arrives or ctx is canceled, then
// publishes the SHUTDOWN event.
func runLoop(ctx context.Context, d *daemon, ticks loopTicks, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reason := "CANCELED"
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			reason = signalName(s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error { return d.monitor.Run(gctx, ticks.input) })
	g.Go(func() error { return d.driver.Run(gctx, ticks.render) })
	g.Go(func() error { return d.sched.Run(gctx, ticks.sched) })
	if ticks.heartbeat != nil {
		g.Go(func() error { return d.heartbeat(gctx, ticks.heartbeat) })
	}

	err := g.Wait()
	d.publishSystem("SHUTDOWN", reason)
	return err
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
