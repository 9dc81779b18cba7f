package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultHeartbeatInterval is how often the liveness probe goes out.
const DefaultHeartbeatInterval = 25 * time.Second

// RunHeartbeat broadcasts a Heartbeat event every interval until ctx is
// cancelled. It blocks.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), h.beat); err != nil {
		return fmt.Errorf("fanout: schedule heartbeat: %w", err)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (h *Hub) beat() {
	n := h.Count()
	h.Broadcast(Heartbeat{Timestamp: h.now().UTC(), Subscribers: n})
}
