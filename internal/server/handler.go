package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/journal"
	"github.com/zulandar/wallboard/internal/wallboard"
)

// handler carries the dependencies shared by every route.
type handler struct {
	svc      *wallboard.Service
	journal  *journal.Journal
	cfg      config.ServerConfig
	version  string
	logger   *slog.Logger
	started  time.Time
	upgrader websocket.Upgrader
}

type healthResponse struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"` // seconds
	Environment string    `json:"environment"`
	Subscribers int       `json:"subscribers"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:      "OK",
		Service:     ServiceName,
		Version:     h.version,
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.started).Seconds(),
		Environment: h.cfg.Environment,
		Subscribers: h.svc.Hub.Count(),
	})
}
