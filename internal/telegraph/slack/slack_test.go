package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/wallboard/internal/telegraph"
)

// Compile-time interface compliance checks.
var _ telegraph.Adapter = (*Adapter)(nil)
var _ telegraph.BotUserIDer = (*Adapter)(nil)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu       sync.Mutex
	authResp *slackapi.AuthTestResponse
	authErr  error
	posted   []postedMessage
	postErr  error
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123"},
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

// rateLimitMockClient returns rate limit errors for the first failCount posts.
type rateLimitMockClient struct {
	inner     *mockSlackClient
	mu        sync.Mutex
	calls     int
	failCount int
}

func (r *rateLimitMockClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return r.inner.AuthTest()
}

func (r *rateLimitMockClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	r.mu.Lock()
	r.calls++
	c := r.calls
	r.mu.Unlock()
	if c <= r.failCount {
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	return r.inner.PostMessage(channelID, options...)
}

func newTestAdapter(t *testing.T) (*Adapter, *mockSlackClient) {
	t.Helper()
	client := newMockSlackClient()
	a, err := New(AdapterOpts{Client: client, ChannelID: "C_DEFAULT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, client
}

// --- New / Connect tests ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(AdapterOpts{ChannelID: "C1"})
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestNew_WithToken(t *testing.T) {
	a, err := New(AdapterOpts{BotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected non-nil adapter")
	}
}

func TestConnect_Success(t *testing.T) {
	a, _ := newTestAdapter(t)
	if a.BotUserID() != "U_BOT_123" {
		t.Errorf("bot user ID = %q, want U_BOT_123", a.BotUserID())
	}
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid token")

	a, _ := New(AdapterOpts{Client: client})
	err := a.Connect(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !strings.Contains(err.Error(), "auth test") {
		t.Errorf("error = %q, want auth test error", err.Error())
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error for closed adapter")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("second connect should not error: %v", err)
	}
}

// --- Send tests ---

func TestSend_SimpleText(t *testing.T) {
	a, client := newTestAdapter(t)

	err := a.Send(context.Background(), telegraph.OutboundMessage{
		ChannelID: "C1",
		Text:      "hello world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatalf("expected 1 posted message, got %d", client.postedCount())
	}
	if last := client.lastPosted(); last.channelID != "C1" {
		t.Errorf("channel = %q, want C1", last.channelID)
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	a, client := newTestAdapter(t)

	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello default"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := client.lastPosted(); last.channelID != "C_DEFAULT" {
		t.Errorf("channel = %q, want C_DEFAULT", last.channelID)
	}
}

func TestSend_NoChannel(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	a.Connect(context.Background())

	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "no channel"}); err == nil {
		t.Fatal("expected error for no channel")
	}
}

func TestSend_WithEvents(t *testing.T) {
	a, client := newTestAdapter(t)

	err := a.Send(context.Background(), telegraph.OutboundMessage{
		ChannelID: "C1",
		Events: []telegraph.FormattedEvent{
			{
				Title:    "Urgent alert from Sarah Wilson",
				Body:     "Queue is backing up",
				Color:    telegraph.ColorError,
				Severity: "error",
				Fields: []telegraph.Field{
					{Name: "To", Value: "All Agents", Short: true},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatal("expected 1 posted message")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})

	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "C1", Text: "hello"})
	if err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_PostError(t *testing.T) {
	a, client := newTestAdapter(t)
	client.postErr = fmt.Errorf("channel_not_found")

	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "C1", Text: "hello"})
	if err == nil {
		t.Fatal("expected post error")
	}
	if !strings.Contains(err.Error(), "slack: post message") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, client := newTestAdapter(t)
	rl := &rateLimitMockClient{inner: client, failCount: 2}
	a.client = rl

	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "C1", Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rl.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", rl.calls)
	}
}

// --- Close tests ---

func TestClose_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close should not error: %v", err)
	}
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "late"}); err == nil {
		t.Error("send after close should fail")
	}
}

// --- buildMessageOptions tests ---

func TestBuildMessageOptions_TextOnly(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{Text: "hello"})
	if len(opts) != 1 {
		t.Errorf("expected 1 option, got %d", len(opts))
	}
}

func TestBuildMessageOptions_WithEvents(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{
		Text: "events",
		Events: []telegraph.FormattedEvent{
			{Title: "Test", Body: "body", Color: "#fff"},
		},
	})
	// Should have: attachments + text.
	if len(opts) != 2 {
		t.Errorf("expected 2 options, got %d", len(opts))
	}
}

func TestBuildMessageOptions_EventsWithoutText(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{
		Events: []telegraph.FormattedEvent{{Title: "Digest"}},
	})
	if len(opts) != 1 {
		t.Errorf("expected 1 option, got %d", len(opts))
	}
}

// --- eventToAttachment tests ---

func TestEventToAttachment(t *testing.T) {
	evt := telegraph.FormattedEvent{
		Title:    "John Doe is now Not Ready",
		Body:     "Available → Not Ready",
		Color:    telegraph.ColorWarning,
		Severity: "warning",
		Fields: []telegraph.Field{
			{Name: "Agent", Value: "A001", Short: true},
			{Name: "Department", Value: "Technical", Short: true},
		},
	}

	att := eventToAttachment(evt)
	if att.Title != "John Doe is now Not Ready" {
		t.Errorf("title = %q", att.Title)
	}
	if att.Text != "Available → Not Ready" {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != telegraph.ColorWarning {
		t.Errorf("color = %q", att.Color)
	}
	if att.Fallback != att.Title {
		t.Errorf("fallback = %q", att.Fallback)
	}
	if len(att.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(att.Fields))
	}
	if att.Fields[0].Title != "Agent" || !att.Fields[0].Short {
		t.Errorf("field[0] = %+v", att.Fields[0])
	}
}

// --- retryOnRateLimit tests ---

func TestRetryOnRateLimit_Success(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("some other error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("should not retry non-rate-limit errors, calls = %d", calls)
	}
}

func TestRetryOnRateLimit_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// maxRetries+1 total calls (initial + retries).
	if calls != maxRetries+1 {
		t.Errorf("expected %d calls, got %d", maxRetries+1, calls)
	}
}

func TestRetryOnRateLimit_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryOnRateLimit(ctx, func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before context cancel, got %d", calls)
	}
}
