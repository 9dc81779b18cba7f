package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/models"
)

type systemInfo struct {
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
	Subscribers int     `json:"subscribers"`
	Dropped     uint64  `json:"droppedEvents"`

	// JournalDropped is set only when the journal is enabled.
	JournalDropped *uint64 `json:"journalDroppedEvents,omitempty"`
}

type statsResponse struct {
	dashboard.Stats
	SystemInfo systemInfo `json:"systemInfo"`
}

type limitQuery struct {
	Limit int `form:"limit,default=20" binding:"gte=0"`
}

type historyQuery struct {
	Limit int    `form:"limit,default=50" binding:"gte=0"`
	Type  string `form:"type"`
	Agent string `form:"agent"`
}

type historyResponse struct {
	Records []models.EventRecord `json:"records"`
	Count   int                  `json:"count"`
}

func (h *handler) dashboardStats(c *gin.Context) {
	info := systemInfo{
		Uptime:      time.Since(h.started).Seconds(),
		Environment: h.cfg.Environment,
		Subscribers: h.svc.Hub.Count(),
		Dropped:     h.svc.Hub.Dropped(),
	}
	if h.journal != nil {
		n := h.journal.Dropped()
		info.JournalDropped = &n
	}
	respond(c, http.StatusOK, "Dashboard statistics retrieved successfully", statsResponse{
		Stats:      h.svc.Dashboard.Stats(),
		SystemInfo: info,
	})
}

func (h *handler) performance(c *gin.Context) {
	respond(c, http.StatusOK, "Agent performance data retrieved successfully", h.svc.Dashboard.Performance())
}

func (h *handler) recentActivity(c *gin.Context) {
	var q limitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	respond(c, http.StatusOK, "Recent activities retrieved successfully", h.svc.Dashboard.Activity(q.Limit))
}

func (h *handler) activityHistory(c *gin.Context) {
	if h.journal == nil {
		h.respondError(c, http.StatusServiceUnavailable, "Event journal is disabled", nil)
		return
	}
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}

	var (
		recs []models.EventRecord
		err  error
	)
	if q.Agent != "" {
		recs, err = h.journal.ForAgent(q.Agent, q.Limit)
	} else {
		recs, err = h.journal.Recent(q.Limit, q.Type)
	}
	if err != nil {
		h.fail(c, err, "")
		return
	}
	respond(c, http.StatusOK, "Activity history retrieved successfully", historyResponse{
		Records: recs,
		Count:   len(recs),
	})
}
