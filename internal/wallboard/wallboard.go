// Package wallboard wires the registry, message store and fanout together.
// Every mutation is applied to its owner first and published afterwards, so
// subscribers only ever see committed state. Mutation and publish run under
// one write lock, so subscribers observe changes in the order they were
// applied.
package wallboard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/messaging"
	"github.com/zulandar/wallboard/internal/models"
	"github.com/zulandar/wallboard/internal/registry"
)

// ObserverRoles receive every private message in addition to its target.
var ObserverRoles = []fanout.Role{fanout.RoleSupervisor, fanout.RoleAdmin, fanout.RoleSystem}

const previewLen = 50

// Service is the write path of the wallboard and the owner of its state.
type Service struct {
	Agents    *registry.Registry
	Messages  *messaging.Store
	Hub       *fanout.Hub
	Dashboard *dashboard.Aggregator

	// writeMu covers apply+publish. Logging happens after release.
	writeMu sync.Mutex
	logger  *slog.Logger
}

// New builds a Service around the given components. A nil logger uses
// slog.Default().
func New(reg *registry.Registry, store *messaging.Store, hub *fanout.Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Agents:    reg,
		Messages:  store,
		Hub:       hub,
		Dashboard: &dashboard.Aggregator{Agents: reg, Messages: store},
		logger:    logger.With("component", "wallboard"),
	}
}

// NewInMemory builds a Service with a fresh registry, store and hub.
func NewInMemory(bufferSize int, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	reg := registry.New(registry.WithClock(now))
	store := messaging.NewStore(reg, messaging.WithClock(now))
	svc := New(reg, store, fanout.NewHub(bufferSize, logger), logger)
	svc.Dashboard.Now = now
	return svc
}

// Login upserts the agent and announces it.
func (s *Service) Login(req registry.LoginRequest) (registry.LoginResult, error) {
	s.writeMu.Lock()
	res, err := s.Agents.Login(req)
	if err != nil {
		s.writeMu.Unlock()
		return res, err
	}
	s.Hub.Broadcast(fanout.AgentLogin{
		AgentCode: res.Agent.Code,
		Agent:     res.Agent,
		FirstSeen: res.Outcome == registry.OutcomeCreated,
		Timestamp: *res.Agent.LoginTime,
	})
	s.writeMu.Unlock()

	s.logger.Info("agent logged in",
		"agent", res.Agent.Code,
		"name", res.Agent.Name,
		"outcome", res.Outcome)
	return res, nil
}

// Logout moves the agent offline and announces it.
func (s *Service) Logout(code string) (models.Agent, error) {
	s.writeMu.Lock()
	a, err := s.Agents.Logout(code)
	if err != nil {
		s.writeMu.Unlock()
		return a, err
	}
	s.Hub.Broadcast(fanout.AgentLogout{
		AgentCode: code,
		Agent:     a,
		Timestamp: *a.LogoutTime,
	})
	s.writeMu.Unlock()

	s.logger.Info("agent logged out", "agent", code)
	return a, nil
}

// SetStatus changes the agent's presence and announces the transition.
func (s *Service) SetStatus(code string, status models.Status, reason string) (registry.StatusChange, error) {
	s.writeMu.Lock()
	ch, err := s.Agents.SetStatus(code, status, reason)
	if err != nil {
		s.writeMu.Unlock()
		return ch, err
	}
	s.Hub.Broadcast(fanout.AgentStatusChanged{
		AgentCode: code,
		OldStatus: ch.From,
		NewStatus: ch.To,
		Reason:    ch.Reason,
		Agent:     ch.Agent,
		Timestamp: ch.At,
	})
	s.writeMu.Unlock()

	s.logger.Info("agent status changed",
		"agent", code,
		"from", ch.From,
		"to", ch.To,
		"reason", ch.Reason)
	return ch, nil
}

// RecordCall adds a completed call to the agent's counters.
func (s *Service) RecordCall(code string, seconds int) (models.Agent, error) {
	s.writeMu.Lock()
	a, err := s.Agents.RecordCall(code, seconds)
	s.writeMu.Unlock()
	if err != nil {
		return a, err
	}
	s.logger.Debug("call recorded", "agent", code, "seconds", seconds, "total_calls", a.TotalCalls)
	return a, nil
}

// DeleteAgent removes the agent. It is serialized with SendMessage, so a
// direct message is never stored for an agent deleted mid-send.
func (s *Service) DeleteAgent(code string) (models.Agent, error) {
	s.writeMu.Lock()
	a, err := s.Agents.Delete(code)
	s.writeMu.Unlock()
	if err != nil {
		return a, err
	}
	s.logger.Info("agent deleted", "agent", code)
	return a, nil
}

// SendMessage stores the message and publishes it. Broadcasts go to every
// subscriber; direct messages go to the target's subscribers and observers.
func (s *Service) SendMessage(req messaging.SendRequest) (models.Message, error) {
	s.writeMu.Lock()
	msg, err := s.Messages.Send(req)
	if err != nil {
		s.writeMu.Unlock()
		return msg, err
	}
	var n int
	if msg.To.IsBroadcast() {
		n = s.Hub.Broadcast(fanout.MessageBroadcast{Message: msg})
	} else {
		target := msg.To.Code()
		n = s.Hub.Deliver(fanout.MessagePrivate{TargetAgent: target, Message: msg},
			fanout.OwnerOrRoles(target, ObserverRoles...))
	}
	s.writeMu.Unlock()

	s.logger.Info("message sent",
		"id", msg.ID,
		"from", msg.From,
		"to", msg.To.String(),
		"priority", msg.Priority,
		"subscribers", n,
		"preview", messaging.Preview(msg.Body, previewLen))
	return msg, nil
}

// MarkRead flags the message read.
func (s *Service) MarkRead(id uint64) (models.Message, error) {
	s.writeMu.Lock()
	msg, err := s.Messages.MarkRead(id)
	s.writeMu.Unlock()
	if err != nil {
		return msg, err
	}
	s.logger.Debug("message read", "id", id)
	return msg, nil
}
