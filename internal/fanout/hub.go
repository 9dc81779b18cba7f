// Package fanout distributes typed realtime events to connected subscribers.
//
// Delivery is best effort: each subscriber owns a bounded queue and events
// that do not fit are dropped for that subscriber only. Publishers never
// block. A subscriber that is not registered when an event is published
// never sees it; there is no replay.
package fanout

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Role tags what kind of client a subscriber is.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	// RoleSystem marks in-process sinks such as the journal.
	RoleSystem Role = "system"
)

// ParseRole accepts the client-facing roles and the empty role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case "", RoleAgent, RoleSupervisor, RoleAdmin:
		return r, true
	}
	return "", false
}

// SubscriberInfo describes a subscriber at registration time.
type SubscriberInfo struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Subscription is the handle returned by Register.
type Subscription struct {
	info    SubscriberInfo
	ch      chan Event
	done    chan struct{}
	dropped atomic.Uint64
	hub     *Hub
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.info.ID }

// Info returns the registration details.
func (s *Subscription) Info() SubscriberInfo { return s.info }

// Events returns the delivery channel. It is closed on unregistration.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unregisters the subscription.
func (s *Subscription) Close() { s.hub.Unregister(s) }

// Dropped returns how many events this subscriber missed because its queue
// was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// detach closes the delivery channel and stops the ctx watcher. Callers hold
// h.mu.
func (s *Subscription) detach() {
	close(s.ch)
	close(s.done)
}

// Matcher selects the subscribers an event goes to.
type Matcher func(SubscriberInfo) bool

// All matches every subscriber.
func All() Matcher { return func(SubscriberInfo) bool { return true } }

// Owner matches subscribers registered with the given owner id.
func Owner(owner string) Matcher {
	return func(info SubscriberInfo) bool { return info.Owner == owner }
}

// OwnerOrRoles matches the owner's subscribers plus any subscriber holding
// one of roles.
func OwnerOrRoles(owner string, roles ...Role) Matcher {
	return func(info SubscriberInfo) bool {
		return info.Owner == owner || slices.Contains(roles, info.Role)
	}
}

// Hub is the set of live subscribers.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
	logger     *slog.Logger
	now        func() time.Time
}

// NewHub creates a Hub. bufferSize <= 0 uses DefaultBufferSize; a nil
// logger uses slog.Default().
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
		logger:     logger.With("component", "fanout"),
		now:        time.Now,
	}
}

// Register adds a subscriber with the hub's queue length. The subscription
// is removed when ctx is cancelled, which is how transports report a
// disconnect. Registering on a closed hub returns a subscription whose
// channel is already closed.
func (h *Hub) Register(ctx context.Context, role Role, owner string) *Subscription {
	return h.RegisterBuffered(ctx, role, owner, h.bufferSize)
}

// RegisterBuffered is Register with its own queue length. size <= 0 uses the
// hub's.
func (h *Hub) RegisterBuffered(ctx context.Context, role Role, owner string, size int) *Subscription {
	if size <= 0 {
		size = h.bufferSize
	}
	sub := &Subscription{
		info: SubscriberInfo{
			ID:          uuid.New().String(),
			Role:        role,
			Owner:       owner,
			ConnectedAt: h.now(),
		},
		ch:   make(chan Event, size),
		done: make(chan struct{}),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.detach()
		return sub
	}
	h.subs[sub.info.ID] = sub
	total := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug("subscriber added",
		"sub_id", sub.info.ID,
		"role", role,
		"owner", owner,
		"total", total)

	go func() {
		select {
		case <-ctx.Done():
			h.Unregister(sub)
		case <-sub.done:
		}
	}()

	return sub
}

// Unregister removes a subscription and closes its channel. It is safe to
// call more than once.
func (h *Hub) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.info.ID]; !ok {
		return
	}
	delete(h.subs, sub.info.ID)
	sub.detach()

	h.logger.Debug("subscriber removed",
		"sub_id", sub.info.ID,
		"owner", sub.info.Owner,
		"total", len(h.subs))
}

// Broadcast delivers p to every subscriber and returns how many accepted it.
func (h *Hub) Broadcast(p Payload) int {
	return h.Deliver(p, All())
}

// NotifyOne delivers p to the subscribers registered as owner. With none
// registered the event is dropped.
func (h *Hub) NotifyOne(owner string, p Payload) int {
	return h.Deliver(p, Owner(owner))
}

// Deliver sends p to every subscriber selected by match without blocking.
// It returns the number of subscribers whose queue accepted the event.
func (h *Hub) Deliver(p Payload, match Matcher) int {
	evt := NewEvent(p, h.now())

	// Send while holding the read lock so Unregister cannot close a channel
	// mid-send; sends never block, so the lock is held briefly.
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		if !match(sub.info) {
			continue
		}
		select {
		case sub.ch <- evt:
			delivered++
		default:
			sub.dropped.Add(1)
			h.dropped.Add(1)
			h.logger.Debug("dropped event for slow subscriber",
				"sub_id", sub.info.ID,
				"event", evt.Type)
		}
	}
	return delivered
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Subscribers lists registered subscribers, oldest first. System sinks are
// included.
func (h *Hub) Subscribers() []SubscriberInfo {
	h.mu.RLock()
	out := make([]SubscriberInfo, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub.info)
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b SubscriberInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return out
}

// Dropped returns how many deliveries were discarded because a queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close unregisters every subscriber. Later registrations get closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		sub.detach()
		delete(h.subs, id)
	}
	h.closed = true
	h.logger.Debug("hub closed")
}
