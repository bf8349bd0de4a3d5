// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/network-status/internal/scheduler"
)

// TopicCycles is the MQTT topic for completed test cycles.
const TopicCycles = "network/status/cycles"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "network/status/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishCycle sends a completed cycle to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishCycle(c scheduler.Cycle) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// CyclePayload is the MQTT message payload for a completed cycle.
type CyclePayload struct {
	Cycle CycleInner `json:"cycle"`
}

// CycleInner contains the cycle details.
type CycleInner struct {
	Timestamp  string         `json:"timestamp"`
	Kind       string         `json:"kind"`
	Trigger    string         `json:"trigger"`
	Outcome    string         `json:"outcome"`
	DurationMs int64          `json:"duration_ms"`
	Checks     []CheckPayload `json:"checks"`
}

// CheckPayload is one observation of a cycle.
type CheckPayload struct {
	Target    string `json:"target"`
	Check     string `json:"check"`
	Outcome   string `json:"outcome"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// FormatCyclePayload creates the JSON payload for a completed cycle.
func FormatCyclePayload(c scheduler.Cycle) ([]byte, error) {
	outcome := "PASS"
	if c.Failed() {
		outcome = "FAIL"
	}
	inner := CycleInner{
		Timestamp:  c.Finished.UTC().Format(time.RFC3339),
		Kind:       string(c.Kind),
		Trigger:    string(c.Trigger),
		Outcome:    outcome,
		DurationMs: c.Finished.Sub(c.Started).Milliseconds(),
		Checks:     make([]CheckPayload, 0, len(c.Observations)),
	}
	for _, o := range c.Observations {
		inner.Checks = append(inner.Checks, CheckPayload{
			Target:    o.Target,
			Check:     o.Check,
			Outcome:   string(o.Outcome),
			LatencyMs: o.Latency.Milliseconds(),
			Detail:    o.Detail,
		})
	}
	return json.Marshal(CyclePayload{Cycle: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
