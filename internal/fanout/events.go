package fanout

import (
	"time"

	"github.com/zulandar/wallboard/internal/models"
)

// EventType names an event on the realtime channel. The values match the
// event names dashboards already listen for.
type EventType string

const (
	EventAgentLogin         EventType = "agentLogin"
	EventAgentLogout        EventType = "agentLogout"
	EventAgentStatusChanged EventType = "agentStatusUpdate"
	EventMessageBroadcast   EventType = "broadcastMessage"
	EventMessagePrivate     EventType = "privateMessage"
	EventHeartbeat          EventType = "heartbeat"
)

// Payload is implemented by every typed event body.
type Payload interface {
	EventType() EventType
}

// Event is one delivery unit.
type Event struct {
	Type      EventType `json:"type"`
	Payload   Payload   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent wraps p with its type and the given publish time.
func NewEvent(p Payload, at time.Time) Event {
	return Event{Type: p.EventType(), Payload: p, Timestamp: at}
}

// AgentLogin is emitted after a successful login.
type AgentLogin struct {
	AgentCode string       `json:"agentCode"`
	Agent     models.Agent `json:"agent"`
	FirstSeen bool         `json:"firstSeen"`
	Timestamp time.Time    `json:"timestamp"`
}

func (AgentLogin) EventType() EventType { return EventAgentLogin }

// AgentLogout is emitted after a logout.
type AgentLogout struct {
	AgentCode string       `json:"agentCode"`
	Agent     models.Agent `json:"agent"`
	Timestamp time.Time    `json:"timestamp"`
}

func (AgentLogout) EventType() EventType { return EventAgentLogout }

// AgentStatusChanged is emitted after a status change.
type AgentStatusChanged struct {
	AgentCode string        `json:"agentCode"`
	OldStatus models.Status `json:"oldStatus"`
	NewStatus models.Status `json:"newStatus"`
	Reason    string        `json:"reason,omitempty"`
	Agent     models.Agent  `json:"agent"`
	Timestamp time.Time     `json:"timestamp"`
}

func (AgentStatusChanged) EventType() EventType { return EventAgentStatusChanged }

// MessageBroadcast carries a message addressed to all agents.
type MessageBroadcast struct {
	Message models.Message `json:"message"`
}

func (MessageBroadcast) EventType() EventType { return EventMessageBroadcast }

// MessagePrivate carries a message addressed to one agent.
type MessagePrivate struct {
	TargetAgent string         `json:"targetAgent"`
	Message     models.Message `json:"message"`
}

func (MessagePrivate) EventType() EventType { return EventMessagePrivate }

// Heartbeat is the periodic liveness probe.
type Heartbeat struct {
	Timestamp   time.Time `json:"timestamp"`
	Subscribers int       `json:"subscribers"`
}

func (Heartbeat) EventType() EventType { return EventHeartbeat }
