// Package probe runs the individual network checks for the fixed set of
// monitored targets.
package probe

import (
	"context"
	"errors"
	"time"
)

// Kind identifies how a target is probed.
type Kind string

const (
	KindPrinter  Kind = "printer"
	KindExternal Kind = "external"
)

// Target is one monitored device or service.
type Target struct {
	ID   string
	Kind Kind
}

// The fixed deployment targets.
var (
	Printer  = Target{ID: "printer", Kind: KindPrinter}
	External = Target{ID: "external", Kind: KindExternal}
)

// Targets lists every monitored target.
var Targets = []Target{Printer, External}

// Probe thresholds.
const (
	Timeout        = 10 * time.Second
	MaxPing        = 200 * time.Millisecond
	ExternalHost   = "google.com"
	PrinterService = "_pdl-datastream._tcp"
	PrinterDomain  = "local."
	MinDownloadBps = 20 * 1000 * 1000 // limited by Raspberry Pi 3b wifi
	MinUploadBps   = 5 * 1000 * 1000
	SpeedTimeout   = 6 * Timeout
)

var (
	ErrNoPrinter        = errors.New("no printer found")
	ErrMultiplePrinters = errors.New("multiple printers found")
	ErrSlow             = errors.New("response slower than threshold")
	ErrNoGateway        = errors.New("no default route")
)

// Result is the outcome of one check run.
type Result struct {
	OK      bool
	Latency time.Duration
	Detail  string
	Err     error
}

// Check is a single probe against one target. Implementations bound their
// own runtime; a failed check is reported through Result, never a panic.
type Check interface {
	Name() string
	Target() Target
	Run(ctx context.Context) Result
}

// Suite groups the checks run on every cycle and the extra checks run only on
// extended cycles.
type Suite struct {
	Normal   []Check
	Extended []Check
}

// Checks returns the checks for a cycle; extended cycles run both lists.
func (s Suite) Checks(extended bool) []Check {
	out := make([]Check, 0, len(s.Normal)+len(s.Extended))
	out = append(out, s.Normal...)
	if extended {
		out = append(out, s.Extended...)
	}
	return out
}

// DefaultSuite wires the production checks.
func DefaultSuite(pinger Pinger, printers Discoverer) Suite {
	locator := &PrinterLocator{Discoverer: printers}
	return Suite{
		Normal: []Check{
			&GatewayPingCheck{Pinger: pinger, MaxRTT: MaxPing},
			&PingCheck{Host: ExternalHost, Tgt: External, Pinger: pinger, MaxRTT: MaxPing},
			&DNSCheck{Host: ExternalHost, Tgt: External},
			&PrinterPingCheck{Locator: locator, Pinger: pinger, MaxRTT: MaxPing},
		},
		Extended: []Check{
			&PrinterPortCheck{Locator: locator},
			&SpeedCheck{
				MinDownload: MinDownloadBps,
				MinUpload:   MinUploadBps,
				MaxLatency:  MaxPing,
			},
		},
	}
}
