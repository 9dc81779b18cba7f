package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zulandar/wallboard/internal/fanout"
)

const (
	// writeWait bounds a single WebSocket frame write.
	writeWait = 10 * time.Second
	// maxInboundFrame caps client frames; clients only send pings and closes.
	maxInboundFrame = 512
)

type subscriberQuery struct {
	Role  string `form:"role"`
	Owner string `form:"owner"`
}

// connected is the first frame on every live stream.
type connected struct {
	ID    string      `json:"id"`
	Role  fanout.Role `json:"role"`
	Owner string      `json:"owner,omitempty"`
}

type frame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriber reads and checks the role and owner query parameters. An empty
// role is an agent.
func (h *handler) subscriber(c *gin.Context) (fanout.Role, string, bool) {
	var q subscriberQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return "", "", false
	}
	role, ok := fanout.ParseRole(q.Role)
	if !ok {
		h.respondValidation(c, []fieldError{{
			Field:   "role",
			Message: "role must be one of agent, supervisor, admin",
			Value:   q.Role,
		}})
		return "", "", false
	}
	if role == "" {
		role = fanout.RoleAgent
	}
	return role, q.Owner, true
}

// streamSSE holds the request open and writes every event delivered to the
// subscription until the client goes away or the hub closes.
func (h *handler) streamSSE(c *gin.Context) {
	role, owner, ok := h.subscriber(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sub := h.svc.Hub.Register(ctx, role, owner)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeSSE(c.Writer, "connected", connected{ID: sub.ID(), Role: role, Owner: owner})
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			writeSSE(c.Writer, string(evt.Type), evt)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}

func newUpgrader(frontendURL string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == frontendURL
		},
	}
}

// streamWebSocket upgrades the connection and forwards events as JSON
// frames. A read pump notices client disconnects.
func (h *handler) streamWebSocket(c *gin.Context) {
	role, owner, ok := h.subscriber(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err, "origin", c.GetHeader("Origin"))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	sub := h.svc.Hub.Register(ctx, role, owner)
	defer sub.Close()
	go readPump(conn, cancel)

	h.logger.Info("websocket connected", "sub_id", sub.ID(), "role", role, "owner", owner)
	defer h.logger.Info("websocket disconnected", "sub_id", sub.ID())

	hello := frame{
		Type:      "connected",
		Data:      connected{ID: sub.ID(), Role: role, Owner: owner},
		Timestamp: time.Now().UTC(),
	}
	if err := writeFrame(conn, hello); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := writeFrame(conn, frame{Type: string(evt.Type), Data: evt.Payload, Timestamp: evt.Timestamp}); err != nil {
				h.logger.Debug("websocket write failed", "sub_id", sub.ID(), "error", err)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

// readPump discards client frames and cancels once the connection drops.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxInboundFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
