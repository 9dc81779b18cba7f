package wallboard

import (
	"fmt"
	"time"

	"github.com/zulandar/wallboard/internal/models"
)

// SampleAgents returns the demo roster.
func SampleAgents() []models.Agent {
	return []models.Agent{
		{
			Code:       "A001",
			Name:       "John Doe",
			Status:     models.StatusAvailable,
			Skills:     []string{"English", "Technical Support"},
			Supervisor: "S001",
			Department: "Technical",
		},
		{
			Code:       "A002",
			Name:       "Jane Smith",
			Status:     models.StatusActive,
			Skills:     []string{"English", "Sales"},
			Supervisor: "S001",
			Department: "Sales",
		},
		{
			Code:       "A003",
			Name:       "Mike Johnson",
			Status:     models.StatusNotReady,
			Skills:     []string{"Thai", "Customer Service"},
			Supervisor: "S002",
			Department: "Support",
		},
	}
}

// SampleMessages returns the demo messages, timestamped relative to now.
func SampleMessages(now time.Time) []models.Message {
	return []models.Message{
		{
			From:      "supervisor1",
			FromName:  "Sarah Wilson",
			To:        models.Direct("A001"),
			ToName:    "John Doe",
			Body:      "Please check the priority queue - we have VIP customers waiting",
			Type:      models.TypeInstruction,
			Priority:  models.PriorityHigh,
			Timestamp: now.Add(-30 * time.Minute),
			Delivered: true,
		},
		{
			From:      "supervisor1",
			FromName:  "Sarah Wilson",
			To:        models.Broadcast(),
			ToName:    models.BroadcastName,
			Body:      "Team meeting scheduled for 2 PM today in Conference Room A",
			Type:      models.TypeNotification,
			Priority:  models.PriorityNormal,
			Timestamp: now.Add(-15 * time.Minute),
			Delivered: true,
		},
	}
}

// Seed loads the sample roster and messages. Seeding publishes nothing.
func (s *Service) Seed(now time.Time) error {
	s.writeMu.Lock()
	for _, a := range SampleAgents() {
		if _, err := s.Agents.Create(a); err != nil {
			s.writeMu.Unlock()
			return fmt.Errorf("seed agent %s: %w", a.Code, err)
		}
	}
	for _, m := range SampleMessages(now) {
		s.Messages.Import(m)
	}
	s.writeMu.Unlock()
	s.logger.Info("sample data loaded", "agents", s.Agents.Len(), "messages", s.Messages.Len())
	return nil
}
