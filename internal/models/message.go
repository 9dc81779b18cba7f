package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BroadcastSentinel is the wire value addressing every agent.
const BroadcastSentinel = "all"

// BroadcastName is the recipient display name stored on broadcast messages.
const BroadcastName = "All Agents"

// MessageType classifies a message.
type MessageType string

const (
	TypeInstruction  MessageType = "instruction"
	TypeNotification MessageType = "notification"
	TypeAlert        MessageType = "alert"
	TypeInfo         MessageType = "info"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeInstruction, TypeNotification, TypeAlert, TypeInfo:
		return true
	}
	return false
}

// Priority ranks a message. Ordering follows Rank.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from 1 (low) to 4 (urgent); unknown values are 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// Recipient addresses a message either to one agent or to all of them.
// The zero value is invalid; use Direct or Broadcast.
type Recipient struct {
	code      string
	broadcast bool
}

// Direct addresses a single agent by code.
func Direct(code string) Recipient { return Recipient{code: code} }

// Broadcast addresses every agent.
func Broadcast() Recipient { return Recipient{broadcast: true} }

// ParseRecipient maps the wire form ("all" or an agent code) to a Recipient.
func ParseRecipient(s string) (Recipient, error) {
	switch s {
	case "":
		return Recipient{}, fmt.Errorf("recipient is empty")
	case BroadcastSentinel:
		return Broadcast(), nil
	}
	return Direct(s), nil
}

// IsBroadcast reports whether r addresses all agents.
func (r Recipient) IsBroadcast() bool { return r.broadcast }

// Code returns the agent code of a direct recipient, or "" for broadcast.
func (r Recipient) Code() string { return r.code }

// IsZero reports whether r was never set.
func (r Recipient) IsZero() bool { return !r.broadcast && r.code == "" }

// Includes reports whether a message addressed to r is visible to agent code.
func (r Recipient) Includes(code string) bool {
	return r.broadcast || r.code == code
}

// String returns the wire form.
func (r Recipient) String() string {
	if r.broadcast {
		return BroadcastSentinel
	}
	return r.code
}

// MarshalJSON encodes the recipient as its wire string.
func (r Recipient) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the wire string.
func (r *Recipient) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecipient(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is a short operational note from a sender to one or all agents.
type Message struct {
	ID        uint64      `json:"id"`
	From      string      `json:"from"`
	FromName  string      `json:"fromName"`
	To        Recipient   `json:"to"`
	ToName    string      `json:"toName"`
	Body      string      `json:"message"`
	Type      MessageType `json:"type"`
	Priority  Priority    `json:"priority"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
	Delivered bool        `json:"delivered"`
	ReadAt    *time.Time  `json:"readAt"`
}

// IsHighPriority reports whether the message is high or urgent.
func (m Message) IsHighPriority() bool {
	return m.Priority == PriorityHigh || m.Priority == PriorityUrgent
}

// Clone returns a copy that shares no pointers with m.
func (m Message) Clone() Message {
	c := m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	return c
}
