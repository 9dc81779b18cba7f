// Package journal appends every published wallboard event to a database so
// the activity history survives subscriber churn.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/models"
)

// Owner is the subscriber owner id the journal registers under.
const Owner = "journal"

// BufferSize is the journal's queue length on the hub. Writes are slower
// than socket sends, so it gets more room than a live client.
const BufferSize = 1024

// Journal writes event records through GORM. Journaling is best effort: it
// is a hub subscriber like any other, and events that overflow its queue are
// counted by Dropped and never written.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	sub    atomic.Pointer[fanout.Subscription]
}

// New returns a Journal over a migrated database.
func New(db *gorm.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger.With("component", "journal")}
}

// Record converts evt to a row and inserts it.
func (j *Journal) Record(evt fanout.Event) error {
	rec, err := toRecord(evt)
	if err != nil {
		return err
	}
	if err := j.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("journal: insert %s: %w", evt.Type, err)
	}
	return nil
}

// Run registers with hub as a system subscriber and records events until ctx
// is cancelled or the hub closes. Heartbeats are not journaled. Write
// failures are logged and skipped.
func (j *Journal) Run(ctx context.Context, hub *fanout.Hub) {
	sub := hub.RegisterBuffered(ctx, fanout.RoleSystem, Owner, BufferSize)
	j.sub.Store(sub)
	j.logger.Info("journal subscribed", "sub_id", sub.ID())

	for evt := range sub.Events() {
		if evt.Type == fanout.EventHeartbeat {
			continue
		}
		if err := j.Record(evt); err != nil {
			j.logger.Error("journal write failed", "event", evt.Type, "error", err)
		}
	}
	j.logger.Info("journal stopped", "dropped", sub.Dropped())
}

// Dropped returns how many events overflowed the journal's queue. It is zero
// before Run subscribes.
func (j *Journal) Dropped() uint64 {
	if sub := j.sub.Load(); sub != nil {
		return sub.Dropped()
	}
	return 0
}

// Recent returns up to limit records, newest first. An empty eventType
// matches every type; limit <= 0 means no cap.
func (j *Journal) Recent(limit int, eventType string) ([]models.EventRecord, error) {
	q := j.db.Order("created_at DESC, id DESC")
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.EventRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return recs, nil
}

// ForAgent returns up to limit records about one agent, newest first.
func (j *Journal) ForAgent(code string, limit int) ([]models.EventRecord, error) {
	q := j.db.Where("agent_code = ?", code).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.EventRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("journal: agent %s: %w", code, err)
	}
	return recs, nil
}

func toRecord(evt fanout.Event) (models.EventRecord, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return models.EventRecord{}, fmt.Errorf("journal: marshal %s: %w", evt.Type, err)
	}
	rec := models.EventRecord{
		Type:      string(evt.Type),
		Payload:   string(payload),
		CreatedAt: evt.Timestamp,
	}
	switch p := evt.Payload.(type) {
	case fanout.AgentLogin:
		rec.AgentCode = p.AgentCode
	case fanout.AgentLogout:
		rec.AgentCode = p.AgentCode
	case fanout.AgentStatusChanged:
		rec.AgentCode = p.AgentCode
	case fanout.MessagePrivate:
		rec.AgentCode = p.TargetAgent
		rec.MessageID = p.Message.ID
	case fanout.MessageBroadcast:
		rec.MessageID = p.Message.ID
	}
	return rec, nil
}
