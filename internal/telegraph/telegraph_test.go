package telegraph

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/models"
)

// syncBuffer is a bytes.Buffer safe for use from the relay goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixedStats dashboard.Stats

func (f fixedStats) Stats() dashboard.Stats { return dashboard.Stats(f) }

func testCfg() config.TelegraphConfig {
	return config.TelegraphConfig{
		Enabled:       true,
		Platform:      "slack",
		ChannelID:     "C123",
		MinPriority:   "high",
		StatusChanges: true,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startRelay runs a relay against a fresh hub and waits until it is online.
func startRelay(t *testing.T, cfg config.TelegraphConfig) (*fanout.Hub, *MockAdapter, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := fanout.NewHub(16, quietLogger())
	t.Cleanup(hub.Close)
	adapter := NewMockAdapter()

	r, err := NewRelay(RelayOpts{Hub: hub, Adapter: adapter, Config: cfg, Out: io.Discard, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitFor(t, "relay online", func() bool { return adapter.SentCount() == 1 && hub.Count() == 1 })
	return hub, adapter, cancel, done
}

// ---------------------------------------------------------------------------
// NewRelay validation tests
// ---------------------------------------------------------------------------

func TestNewRelay_Validation(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()

	tests := []struct {
		name string
		opts RelayOpts
		want string
	}{
		{"nil hub", RelayOpts{Adapter: NewMockAdapter()}, "hub is required"},
		{"nil adapter", RelayOpts{Hub: hub}, "adapter is required"},
		{"bad priority", RelayOpts{Hub: hub, Adapter: NewMockAdapter(), Config: config.TelegraphConfig{MinPriority: "critical"}}, "invalid min priority"},
		{"bad cron", RelayOpts{Hub: hub, Adapter: NewMockAdapter(), Config: config.TelegraphConfig{DigestCron: "daily"}}, "invalid cron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelay(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestNewRelay_DefaultsMinPriority(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()
	r, err := NewRelay(RelayOpts{Hub: hub, Adapter: NewMockAdapter()})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	if r.minRank != models.PriorityHigh.Rank() {
		t.Errorf("minRank = %d, want high", r.minRank)
	}
}

// ---------------------------------------------------------------------------
// Run tests
// ---------------------------------------------------------------------------

func TestRun_ConnectError(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()
	adapter := NewMockAdapter()
	adapter.SetConnectError(errors.New("invalid_auth"))

	r, _ := NewRelay(RelayOpts{Hub: hub, Adapter: adapter, Out: io.Discard})
	err := r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "telegraph: connect") {
		t.Fatalf("err = %v, want connect error", err)
	}
	if hub.Count() != 0 {
		t.Error("relay should not subscribe when connect fails")
	}
}

func TestRun_LifecycleMessages(t *testing.T) {
	hub := fanout.NewHub(4, nil)
	defer hub.Close()
	adapter := NewMockAdapter()
	out := &syncBuffer{}

	r, _ := NewRelay(RelayOpts{Hub: hub, Adapter: adapter, Config: testCfg(), Out: out, Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitFor(t, "online", func() bool { return adapter.SentCount() == 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// The shutdown post happens before Close.
	sent := adapter.AllSent()
	if len(sent) != 2 || sent[0].Text != "Wallboard relay online" || sent[1].Text != "Wallboard relay shutting down" {
		t.Errorf("sent = %+v", sent)
	}
	if !adapter.Closed() {
		t.Error("adapter should be closed")
	}
	for _, want := range []string{"Telegraph connecting...", "Telegraph online", "Telegraph stopped"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_StopsWhenHubCloses(t *testing.T) {
	hub, adapter, _, done := startRelay(t, testCfg())
	hub.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after hub close")
	}
	if !adapter.Closed() {
		t.Error("adapter should be closed")
	}
}

func TestRun_RelaysMessagesAtOrAbovePriority(t *testing.T) {
	hub, adapter, _, _ := startRelay(t, testCfg())

	msg := func(p models.Priority, body string) models.Message {
		return models.Message{ID: 1, From: "S001", To: models.Broadcast(), ToName: models.BroadcastName,
			Body: body, Type: models.TypeAlert, Priority: p}
	}
	hub.Broadcast(fanout.MessageBroadcast{Message: msg(models.PriorityNormal, "lunch menu")})
	hub.Broadcast(fanout.MessageBroadcast{Message: msg(models.PriorityLow, "fyi")})
	hub.Broadcast(fanout.MessageBroadcast{Message: msg(models.PriorityUrgent, "system outage")})
	hub.Deliver(fanout.MessagePrivate{TargetAgent: "A001", Message: msg(models.PriorityHigh, "VIP waiting")},
		fanout.OwnerOrRoles("A001", fanout.RoleSystem))

	waitFor(t, "relayed messages", func() bool { return adapter.SentCount() == 3 })

	sent := adapter.AllSent()
	if got := sent[1].Events[0].Body; got != "system outage" {
		t.Errorf("first relayed body = %q", got)
	}
	if got := sent[2].Events[0].Body; got != "VIP waiting" {
		t.Errorf("second relayed body = %q", got)
	}
	if sent[1].ChannelID != "C123" {
		t.Errorf("channel = %q, want C123", sent[1].ChannelID)
	}
}

func TestRun_StatusChangesToggle(t *testing.T) {
	cfg := testCfg()
	cfg.StatusChanges = false
	hub, adapter, _, _ := startRelay(t, cfg)

	agent := models.Agent{Code: "A001", Name: "John Doe"}
	hub.Broadcast(fanout.AgentLogin{AgentCode: "A001", Agent: agent})
	hub.Broadcast(fanout.AgentStatusChanged{AgentCode: "A001", Agent: agent, NewStatus: models.StatusActive})
	hub.Broadcast(fanout.Heartbeat{})
	hub.Broadcast(fanout.MessageBroadcast{Message: models.Message{To: models.Broadcast(), Priority: models.PriorityUrgent, Body: "marker"}})

	waitFor(t, "marker", func() bool { return adapter.SentCount() == 2 })
	last, _ := adapter.LastSent()
	if last.Events[0].Body != "marker" {
		t.Errorf("presence events should be filtered, last = %+v", last)
	}
}

func TestRun_RelaysPresenceWhenEnabled(t *testing.T) {
	hub, adapter, _, _ := startRelay(t, testCfg())

	agent := models.Agent{Code: "A001", Name: "John Doe"}
	hub.Broadcast(fanout.AgentLogin{AgentCode: "A001", Agent: agent, FirstSeen: true})
	hub.Broadcast(fanout.AgentStatusChanged{AgentCode: "A001", Agent: agent, OldStatus: models.StatusAvailable, NewStatus: models.StatusNotReady})
	hub.Broadcast(fanout.AgentLogout{AgentCode: "A001", Agent: agent})

	waitFor(t, "presence events", func() bool { return adapter.SentCount() == 4 })
	sent := adapter.AllSent()
	want := []string{"John Doe logged in", "John Doe is now Not Ready", "John Doe logged out"}
	for i, title := range want {
		if got := sent[i+1].Events[0].Title; got != title {
			t.Errorf("event %d title = %q, want %q", i, got, title)
		}
	}
}

func TestRun_SendErrorsDoNotStopRelay(t *testing.T) {
	hub, adapter, _, _ := startRelay(t, testCfg())

	adapter.SetSendError(errors.New("channel_not_found"))
	hub.Broadcast(fanout.MessageBroadcast{Message: models.Message{To: models.Broadcast(), Priority: models.PriorityUrgent, Body: "lost"}})
	time.Sleep(50 * time.Millisecond)

	adapter.SetSendError(nil)
	hub.Broadcast(fanout.MessageBroadcast{Message: models.Message{To: models.Broadcast(), Priority: models.PriorityUrgent, Body: "delivered"}})
	waitFor(t, "recovery", func() bool {
		last, _ := adapter.LastSent()
		return len(last.Events) == 1 && last.Events[0].Body == "delivered"
	})
	for _, m := range adapter.AllSent() {
		if len(m.Events) > 0 && m.Events[0].Body == "lost" {
			t.Error("failed send should not have been recorded")
		}
	}
}

// ---------------------------------------------------------------------------
// Digest tests
// ---------------------------------------------------------------------------

func TestFireDigest(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	st := fixedStats{Agents: dashboard.AgentCounts{Total: 2, Online: 1}}
	r, err := NewRelay(RelayOpts{Hub: hub, Adapter: adapter, Config: testCfg(), Stats: st, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}

	r.fireDigest(context.Background())
	last, ok := adapter.LastSent()
	if !ok {
		t.Fatal("expected a digest post")
	}
	if last.Events[0].Title != "Wallboard Digest" || last.ChannelID != "C123" {
		t.Errorf("digest = %+v", last)
	}
}

func TestFireDigest_SuppressedWhenEmpty(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	r, _ := NewRelay(RelayOpts{Hub: hub, Adapter: adapter, Config: testCfg(), Stats: fixedStats{}, Out: io.Discard})
	r.fireDigest(context.Background())
	if adapter.SentCount() != 0 {
		t.Error("empty wallboard should not produce a digest")
	}
}

func TestRunDigestScheduler_ReturnsWithoutSchedule(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	defer hub.Close()
	r, _ := NewRelay(RelayOpts{Hub: hub, Adapter: NewMockAdapter(), Config: testCfg(), Out: io.Discard})

	done := make(chan struct{})
	go func() {
		r.runDigestScheduler(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler should return immediately with no cron configured")
	}
}
