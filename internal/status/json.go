package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/network-status/internal/scheduler"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Indicator     string       `json:"indicator"`
	RunState      string       `json:"run_state"`
	PendingHold   string       `json:"pending_hold,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	LastCycle     *CycleJSON   `json:"last_cycle,omitempty"`
	Counts        CountsJSON   `json:"counts"`
	Failures      FailuresJSON `json:"failures"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CycleJSON is the JSON representation of a completed cycle.
type CycleJSON struct {
	Kind       string      `json:"kind"`
	Trigger    string      `json:"trigger"`
	Outcome    string      `json:"outcome"`
	Started    string      `json:"started"`
	Finished   string      `json:"finished"`
	DurationMs int64       `json:"duration_ms"`
	Checks     []CheckJSON `json:"checks"`
}

// CheckJSON is one observation of a cycle.
type CheckJSON struct {
	Target    string `json:"target"`
	Check     string `json:"check"`
	Outcome   string `json:"outcome"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// CountsJSON is the JSON representation of cycle and hold counters.
type CountsJSON struct {
	Cycles       int `json:"cycles"`
	FailedCycles int `json:"failed_cycles"`
	ShortHolds   int `json:"short_holds"`
	LongHolds    int `json:"long_holds"`
}

// FailuresJSON is the number of failed checks per lookback window.
type FailuresJSON struct {
	LastHour int `json:"last_hour"`
	LastDay  int `json:"last_day"`
	LastWeek int `json:"last_week"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	PinButton   int    `json:"pin_button"`
	PinRed      int    `json:"pin_red"`
	PinGreen    int    `json:"pin_green"`
}

// NewCycleJSON converts a cycle for JSON output.
func NewCycleJSON(c scheduler.Cycle) CycleJSON {
	outcome := "PASS"
	if c.Failed() {
		outcome = "FAIL"
	}
	cj := CycleJSON{
		Kind:       string(c.Kind),
		Trigger:    string(c.Trigger),
		Outcome:    outcome,
		Started:    c.Started.UTC().Format(time.RFC3339),
		Finished:   c.Finished.UTC().Format(time.RFC3339),
		DurationMs: c.Finished.Sub(c.Started).Milliseconds(),
		Checks:     make([]CheckJSON, 0, len(c.Observations)),
	}
	for _, o := range c.Observations {
		cj.Checks = append(cj.Checks, CheckJSON{
			Target:    o.Target,
			Check:     o.Check,
			Outcome:   string(o.Outcome),
			LatencyMs: o.Latency.Milliseconds(),
			Detail:    o.Detail,
		})
	}
	return cj
}

func buildInner(snap Snapshot) StatusInner {
	indicator := string(snap.Indicator)
	if indicator == "" {
		indicator = "UNKNOWN"
	}

	inner := StatusInner{
		Indicator:     indicator,
		RunState:      string(snap.Run),
		PendingHold:   string(snap.Pending),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:       snap.Cycles,
			FailedCycles: snap.FailedCycles,
			ShortHolds:   snap.Holds.Short,
			LongHolds:    snap.Holds.Long,
		},
		Failures: FailuresJSON{
			LastHour: snap.Failures.Hour,
			LastDay:  snap.Failures.Day,
			LastWeek: snap.Failures.Week,
		},
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			PinButton:   snap.Config.PinButton,
			PinRed:      snap.Config.PinRed,
			PinGreen:    snap.Config.PinGreen,
		},
	}
	if snap.LastCycle != nil {
		cj := NewCycleJSON(*snap.LastCycle)
		inner.LastCycle = &cj
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
