package telegraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/models"
)

// Owner is the subscriber owner id the relay registers under.
const Owner = "telegraph"

// StatsProvider supplies the numbers for the digest. *dashboard.Aggregator
// satisfies it.
type StatsProvider interface {
	Stats() dashboard.Stats
}

// Relay subscribes to the fanout hub and posts selected wallboard events to
// a chat platform through an Adapter.
type Relay struct {
	hub     *fanout.Hub
	adapter Adapter
	cfg     config.TelegraphConfig
	stats   StatsProvider
	minRank int
	out     io.Writer
	logger  *slog.Logger
}

// RelayOpts holds parameters for creating a new Relay.
type RelayOpts struct {
	Hub     *fanout.Hub
	Adapter Adapter
	Config  config.TelegraphConfig
	Stats   StatsProvider // optional; digests are disabled without it
	Out     io.Writer     // defaults to os.Stdout
	Logger  *slog.Logger  // defaults to slog.Default()
}

// NewRelay creates a Relay with the given options.
func NewRelay(opts RelayOpts) (*Relay, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("telegraph: hub is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	minPriority := models.Priority(opts.Config.MinPriority)
	if minPriority == "" {
		minPriority = models.PriorityHigh
	}
	if !minPriority.Valid() {
		return nil, fmt.Errorf("telegraph: invalid min priority %q", opts.Config.MinPriority)
	}
	if opts.Config.DigestCron != "" {
		if err := ValidateCron(opts.Config.DigestCron); err != nil {
			return nil, err
		}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		hub:     opts.Hub,
		adapter: opts.Adapter,
		cfg:     opts.Config,
		stats:   opts.Stats,
		minRank: minPriority.Rank(),
		out:     out,
		logger:  logger.With("component", "telegraph"),
	}, nil
}

// Run connects the adapter, subscribes to the hub and relays events until
// the context is cancelled or the hub closes. On shutdown it closes the
// adapter gracefully.
func (r *Relay) Run(ctx context.Context) error {
	fmt.Fprintf(r.out, "Telegraph connecting...\n")
	if err := r.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}
	if bui, ok := r.adapter.(BotUserIDer); ok {
		r.logger.Info("telegraph connected", "bot_user", bui.BotUserID())
	}

	sub := r.hub.Register(ctx, fanout.RoleSystem, Owner)
	defer sub.Close()

	go r.runDigestScheduler(ctx)

	fmt.Fprintf(r.out, "Telegraph online\n")
	if err := r.adapter.Send(ctx, OutboundMessage{Text: "Wallboard relay online"}); err != nil {
		r.logger.Warn("send online message", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(r.out, "Telegraph shutting down...\n")
			r.sendShutdown()
			r.closeAdapter()
			fmt.Fprintf(r.out, "Telegraph stopped\n")
			return nil

		case evt, ok := <-sub.Events():
			if !ok {
				// Hub closed.
				r.closeAdapter()
				fmt.Fprintf(r.out, "Telegraph stopped\n")
				return nil
			}
			r.handleEvent(ctx, evt)
		}
	}
}

// relayable reports whether a message clears the configured priority floor.
func (r *Relay) relayable(m models.Message) bool {
	return m.Priority.Rank() >= r.minRank
}

// format applies config filters and formats evt. It returns false when the
// event should not be relayed.
func (r *Relay) format(evt fanout.Event) (FormattedEvent, bool) {
	switch p := evt.Payload.(type) {
	case fanout.MessageBroadcast:
		if !r.relayable(p.Message) {
			return FormattedEvent{}, false
		}
		return FormatMessage(p.Message), true
	case fanout.MessagePrivate:
		if !r.relayable(p.Message) {
			return FormattedEvent{}, false
		}
		return FormatMessage(p.Message), true
	case fanout.AgentStatusChanged:
		if !r.cfg.StatusChanges {
			return FormattedEvent{}, false
		}
		return FormatStatusChange(p), true
	case fanout.AgentLogin:
		if !r.cfg.StatusChanges {
			return FormattedEvent{}, false
		}
		return FormatLogin(p), true
	case fanout.AgentLogout:
		if !r.cfg.StatusChanges {
			return FormattedEvent{}, false
		}
		return FormatLogout(p), true
	default:
		return FormattedEvent{}, false
	}
}

// handleEvent formats a single event and sends it via the adapter. Send
// failures are logged and dropped.
func (r *Relay) handleEvent(ctx context.Context, evt fanout.Event) {
	formatted, ok := r.format(evt)
	if !ok {
		return
	}
	if err := r.adapter.Send(ctx, OutboundMessage{
		ChannelID: r.cfg.ChannelID,
		Events:    []FormattedEvent{formatted},
	}); err != nil {
		r.logger.Error("send event", "event", evt.Type, "error", err)
	}
}

// runDigestScheduler fires the digest on the configured cron schedule. It
// returns immediately if no schedule or stats provider is configured.
func (r *Relay) runDigestScheduler(ctx context.Context) {
	if r.cfg.DigestCron == "" || r.stats == nil {
		return
	}
	d := nextCronDuration(r.cfg.DigestCron)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.fireDigest(ctx)
			if d := nextCronDuration(r.cfg.DigestCron); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// fireDigest builds and sends a single digest. An empty wallboard is not
// worth a post.
func (r *Relay) fireDigest(ctx context.Context) {
	st := r.stats.Stats()
	if st.Agents.Total == 0 && st.Messages.Total == 0 {
		return
	}
	if err := r.adapter.Send(ctx, OutboundMessage{
		ChannelID: r.cfg.ChannelID,
		Events:    []FormattedEvent{FormatDigest(st)},
	}); err != nil {
		r.logger.Error("send digest", "error", err)
	}
}

// sendShutdown posts a shutdown message to the adapter (best-effort).
func (r *Relay) sendShutdown() {
	if err := r.adapter.Send(context.Background(), OutboundMessage{
		Text: "Wallboard relay shutting down",
	}); err != nil {
		r.logger.Warn("send shutdown message", "error", err)
	}
}

func (r *Relay) closeAdapter() {
	if err := r.adapter.Close(); err != nil {
		r.logger.Warn("close adapter", "error", err)
	}
}
