package models

import "time"

// EventRecord is one journaled realtime event.
type EventRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"size:32;not null;index" json:"type"`
	AgentCode string    `gorm:"size:16;index" json:"agentCode,omitempty"`
	MessageID uint64    `gorm:"index" json:"messageId,omitempty"`
	Payload   string    `gorm:"type:text" json:"payload"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
