// Package types defines the shared messaging data model exchanged with the
// PashuSagar backend.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID identifies a message or participant.
//
// The backend serializes ids as JSON numbers while client-generated temporary
// ids are strings, so ID accepts both on the wire.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*id = ID(raw)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", s, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a plain string.
func (id ID) String() string { return string(id) }

// SendState is a transient, client-only delivery tag used for optimistic UI.
// It is never sent to or read from the backend.
type SendState int

const (
	// SendConfirmed marks a message acknowledged by the backend. Records
	// fetched from the backend are always confirmed.
	SendConfirmed SendState = iota
	// SendPending marks an optimistic local echo awaiting REST confirmation.
	SendPending
	// SendFailed marks a message whose REST create call failed. Failed
	// messages stay visible so the user can see the send did not go through.
	SendFailed
)

// String returns the canonical name of the send state.
func (s SendState) String() string {
	switch s {
	case SendConfirmed:
		return "confirmed"
	case SendPending:
		return "pending"
	case SendFailed:
		return "failed"
	default:
		return fmt.Sprintf("sendstate(%d)", int(s))
	}
}

// Message is the unit exchanged with the backend. Content and Timestamp are
// immutable after creation; only IsRead and SendState change.
type Message struct {
	ID        ID        `json:"id"`
	Sender    ID        `json:"sender"`
	Recipient ID        `json:"recipient"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`

	SendState SendState `json:"-"`
}

// Participant is a directory entry used to label conversations.
type Participant struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// DisplayName returns the participant's human-readable name.
func (p Participant) DisplayName() string {
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if full != "" {
		return full
	}
	if p.Username != "" {
		return p.Username
	}
	return p.ID.String()
}
