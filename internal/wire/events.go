// Package wire defines the JSON event envelopes exchanged over the live
// messaging connection. Every event carries a "type" discriminator.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

// Event type discriminators used on the wire.
const (
	// TypePing is the outbound heartbeat event.
	TypePing = "ping"
	// TypeNewMessage carries a chat message in either direction.
	TypeNewMessage = "new_message"
)

// Envelope is the minimal shape every inbound event must satisfy.
type Envelope struct {
	Type string `json:"type"`
}

// ParseEnvelope extracts the type discriminator from a raw event payload.
// Payloads that are not JSON objects or lack a non-empty "type" are rejected;
// callers are expected to log and drop them.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse event envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("event missing type discriminator")
	}
	return env, nil
}

// Ping is the heartbeat event sent while the connection is open.
type Ping struct {
	Type string `json:"type"`
}

// NewPing constructs a heartbeat event.
func NewPing() Ping {
	return Ping{Type: TypePing}
}

// NewMessage is the event wrapping a chat message.
type NewMessage struct {
	Type    string        `json:"type"`
	Message types.Message `json:"message"`
}

// NewMessageEvent wraps a message for outbound delivery.
func NewMessageEvent(msg types.Message) NewMessage {
	return NewMessage{Type: TypeNewMessage, Message: msg}
}

// ParseNewMessage decodes a new_message event payload.
func ParseNewMessage(data []byte) (NewMessage, error) {
	var ev NewMessage
	if err := json.Unmarshal(data, &ev); err != nil {
		return NewMessage{}, fmt.Errorf("parse new_message event: %w", err)
	}
	if ev.Type != TypeNewMessage {
		return NewMessage{}, fmt.Errorf("unexpected event type %q", ev.Type)
	}
	return ev, nil
}
