// Package messaging owns operational messages and their delivery/read state.
package messaging

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/wallboard/internal/models"
)

// Directory resolves agent codes to display names. The agent registry
// satisfies it.
type Directory interface {
	AgentName(code string) (string, bool)
}

// SendRequest holds the fields of a message to send. Type and Priority
// default to instruction and normal when empty.
type SendRequest struct {
	From     string
	FromName string
	To       models.Recipient
	Body     string
	Type     models.MessageType
	Priority models.Priority
}

// Filter narrows ListAll. Zero-valued fields do not filter; Limit <= 0 means
// no cap.
type Filter struct {
	Type     models.MessageType
	Priority models.Priority
	From     string
	Limit    int
}

// Store is the in-memory instance of record for messages. All methods are
// safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages map[uint64]*models.Message
	lastID   uint64

	dir Directory
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store that validates recipients against dir.
func NewStore(dir Directory, opts ...Option) *Store {
	s := &Store{
		messages: make(map[uint64]*models.Message),
		dir:      dir,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send creates a message and marks it delivered. Direct messages to a code
// the directory does not know fail with ErrUnknownRecipient and nothing is
// stored. The recipient is resolved before the insert; callers that delete
// agents concurrently must serialize with Send. Delivery means accepted by
// the store; it says nothing about live clients.
func (s *Store) Send(req SendRequest) (models.Message, error) {
	if req.To.IsZero() {
		return models.Message{}, fmt.Errorf("messaging: to is required")
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return models.Message{}, fmt.Errorf("messaging: body is required")
	}

	toName := models.BroadcastName
	if !req.To.IsBroadcast() {
		name, ok := s.dir.AgentName(req.To.Code())
		if !ok {
			return models.Message{}, fmt.Errorf("messaging: send to %s: %w", req.To, models.ErrUnknownRecipient)
		}
		toName = name
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.TypeInstruction
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	msg := &models.Message{
		ID:        s.lastID,
		From:      req.From,
		FromName:  req.FromName,
		To:        req.To,
		ToName:    toName,
		Body:      body,
		Type:      msgType,
		Priority:  priority,
		Timestamp: s.now(),
	}
	s.messages[msg.ID] = msg
	msg.Delivered = true

	return msg.Clone(), nil
}

// Import stores a prebuilt message under the next id, keeping its
// timestamps. It is used for seeding and skips recipient checks.
func (s *Store) Import(msg models.Message) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	m := msg.Clone()
	m.ID = s.lastID
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.messages[m.ID] = &m
	return m.Clone()
}

// MarkRead flags the message read and stamps the read time. Calling it again
// re-stamps the time.
func (s *Store) MarkRead(id uint64) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, fmt.Errorf("messaging: mark read %d: %w", id, models.ErrNotFound)
	}
	now := s.now()
	msg.Read = true
	msg.ReadAt = &now
	return msg.Clone(), nil
}

// ListForAgent returns messages addressed to code or broadcast to all
// agents, newest first, capped at limit (limit <= 0 means no cap).
func (s *Store) ListForAgent(code string, unreadOnly bool, limit int) []models.Message {
	return s.collect(limit, func(m *models.Message) bool {
		if !m.To.Includes(code) {
			return false
		}
		return !unreadOnly || !m.Read
	})
}

// ListAll returns every message matching f, newest first.
func (s *Store) ListAll(f Filter) []models.Message {
	return s.collect(f.Limit, func(m *models.Message) bool {
		if f.Type != "" && m.Type != f.Type {
			return false
		}
		if f.Priority != "" && m.Priority != f.Priority {
			return false
		}
		if f.From != "" && m.From != f.From {
			return false
		}
		return true
	})
}

// Snapshot returns every message, newest first.
func (s *Store) Snapshot() []models.Message {
	return s.collect(0, func(*models.Message) bool { return true })
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) collect(limit int, keep func(*models.Message) bool) []models.Message {
	s.mu.RLock()
	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortNewestFirst orders messages by timestamp descending, breaking ties by
// id so later sends come first.
func SortNewestFirst(msgs []models.Message) {
	slices.SortFunc(msgs, func(a, b models.Message) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// Summary counts a set of messages.
type Summary struct {
	Total        int                        `json:"total"`
	Unread       int                        `json:"unread"`
	HighPriority int                        `json:"high_priority"`
	ByType       map[models.MessageType]int `json:"by_type"`
	ByPriority   map[models.Priority]int    `json:"by_priority"`
}

// Summarize counts msgs by read state, type and priority.
func Summarize(msgs []models.Message) Summary {
	sum := Summary{
		Total:      len(msgs),
		ByType:     make(map[models.MessageType]int),
		ByPriority: make(map[models.Priority]int),
	}
	for _, m := range msgs {
		if !m.Read {
			sum.Unread++
		}
		if m.IsHighPriority() {
			sum.HighPriority++
		}
		sum.ByType[m.Type]++
		sum.ByPriority[m.Priority]++
	}
	return sum
}

// Preview shortens a message body for log lines.
func Preview(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n]) + "..."
}
