// Package mqtt provides MQTT publishing of control changes and lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/range-controller/internal/midi"
)

// Topic is the MQTT topic for control-change messages.
const Topic = "controller/range/cc"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "controller/range/system"

// Publisher publishes control changes and lifecycle events to MQTT.
type Publisher interface {
	// Send publishes one control change.
	// Returns error if publishing fails (should not crash the process).
	Send(controller, value int) error

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

// Payload represents the MQTT message payload for a control change.
type Payload struct {
	CC CCPayload `json:"cc"`
}

// CCPayload contains the control change details.
type CCPayload struct {
	Timestamp  string `json:"timestamp"`
	Channel    int    `json:"channel"`
	Controller int    `json:"controller"`
	Value      int    `json:"value"`
}

// FormatPayload creates the JSON payload for a control change sent at ts.
func FormatPayload(cc midi.ControlChange, ts time.Time) ([]byte, error) {
	payload := Payload{
		CC: CCPayload{
			Timestamp:  ts.UTC().Format(time.RFC3339Nano),
			Channel:    cc.Channel,
			Controller: cc.Controller,
			Value:      cc.Value,
		},
	}
	return json.Marshal(payload)
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
