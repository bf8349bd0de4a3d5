// Command network-status probes the local printer and the internet
// connection, and shows the result on a bi-color LED.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/network-status/internal/gpio"
	"github.com/sweeney/network-status/internal/history"
	"github.com/sweeney/network-status/internal/indicator"
	"github.com/sweeney/network-status/internal/input"
	"github.com/sweeney/network-status/internal/mqtt"
	"github.com/sweeney/network-status/internal/probe"
	"github.com/sweeney/network-status/internal/scheduler"
	"github.com/sweeney/network-status/internal/status"
	"github.com/sweeney/network-status/internal/web"
)

type config struct {
	pinButton int
	pinRed    int
	pinGreen  int
	broker    string
	heartbeat time.Duration
	httpAddr  string
	once      bool
}

func main() {
	var cfg config
	flag.IntVar(&cfg.pinButton, "pin-button", gpio.DefaultPinButton, "BCM pin number for the test button")
	flag.IntVar(&cfg.pinRed, "pin-red", gpio.DefaultPinRed, "BCM pin number for the red LED")
	flag.IntVar(&cfg.pinGreen, "pin-green", gpio.DefaultPinGreen, "BCM pin number for the green LED")
	flag.StringVar(&cfg.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&cfg.once, "once", false, "Run one extended cycle, print the results and exit")

	flag.Parse()

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

var errCycleFailed = errors.New("cycle failed")

func run(cfg config) error {
	pinger := probe.NewFallbackPinger(probe.NewICMPPinger(), probe.ExternalPinger{})
	suite := probe.DefaultSuite(pinger, probe.ZeroconfDiscoverer{})
	store := history.NewStore()

	// One-shot mode needs no hardware and no broker
	if cfg.once {
		sched := scheduler.New(suite, store, time.Now)
		c := sched.RunOnce(context.Background(), scheduler.KindExtended)
		printCycle(os.Stdout, c)
		if c.Failed() {
			return errCycleFailed
		}
		return nil
	}

	button, err := gpio.NewRealButton(cfg.pinButton)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer button.Close()

	light, err := gpio.NewRealLight(cfg.pinRed, cfg.pinGreen)
	if err != nil {
		return fmt.Errorf("init light: %w", err)
	}
	defer light.Close()

	publisher, err := mqtt.NewRealPublisher(cfg.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
		PinButton:   cfg.pinButton,
		PinRed:      cfg.pinRed,
		PinGreen:    cfg.pinGreen,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := newDaemon(suite, store, button, light, publisher, publisher, tracker, time.Now)
	d.publishSystem("STARTUP", "")

	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	ctx := context.Background()
	if err := d.driver.LampTest(ctx, indicator.LampTestDuration); err != nil {
		log.Printf("lamp test: %v", err)
	}

	log.Printf("started: broker=%s heartbeat=%v button=%d red=%d green=%d",
		cfg.broker, cfg.heartbeat, cfg.pinButton, cfg.pinRed, cfg.pinGreen)

	inputTicker := time.NewTicker(input.PollInterval)
	defer inputTicker.Stop()
	renderTicker := time.NewTicker(indicator.RenderInterval)
	defer renderTicker.Stop()
	schedTicker := time.NewTicker(time.Second)
	defer schedTicker.Stop()

	ticks := loopTicks{
		input:  inputTicker.C,
		render: renderTicker.C,
		sched:  schedTicker.C,
	}
	if cfg.heartbeat > 0 {
		hbTicker := time.NewTicker(cfg.heartbeat)
		defer hbTicker.Stop()
		ticks.heartbeat = hbTicker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, d, ticks, sigCh)
}

func printCycle(w io.Writer, c scheduler.Cycle) {
	for _, o := range c.Observations {
		latency := ""
		if o.Latency > 0 {
			latency = o.Latency.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-8s %-14s %s %8s %s\n", o.Target, o.Check, o.Outcome, latency, o.Detail)
	}
	outcome := "PASS"
	if c.Failed() {
		outcome = "FAIL"
	}
	fmt.Fprintf(w, "%s cycle %s (%d checks, %d failed)\n", c.Kind, outcome, len(c.Observations), c.Failures())
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
