package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/wallboard/internal/dashboard"
	"github.com/zulandar/wallboard/internal/models"
	"github.com/zulandar/wallboard/internal/registry"
)

const msgAgentNotFound = "Agent not found"

type agentQuery struct {
	Status     string `form:"status" json:"status,omitempty" binding:"omitempty,agentstatus"`
	Supervisor string `form:"supervisor" json:"supervisor,omitempty"`
	Department string `form:"department" json:"department,omitempty"`
	Skills     string `form:"skills" json:"skills,omitempty"` // comma separated
}

type loginBody struct {
	Name       string   `json:"name" binding:"omitempty,min=2,max=100"`
	Skills     []string `json:"skills"`
	Supervisor string   `json:"supervisor"`
	Department string   `json:"department"`
}

type statusBody struct {
	Status string `json:"status" binding:"required,agentstatus"`
	Reason string `json:"reason" binding:"max=200"`
}

type callBody struct {
	DurationSeconds *int `json:"durationSeconds" binding:"required,gte=0"`
}

type agentList struct {
	Agents  []models.Agent        `json:"agents"`
	Stats   dashboard.AgentCounts `json:"stats"`
	Count   int                   `json:"count"`
	Filters agentQuery            `json:"filters"`
}

type loginResponse struct {
	Agent     models.Agent `json:"agent"`
	SessionID string       `json:"sessionId"`
	Outcome   string       `json:"outcome"`
}

type statusChangeView struct {
	From      models.Status `json:"from"`
	To        models.Status `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type statusResponse struct {
	Agent        models.Agent     `json:"agent"`
	StatusChange statusChangeView `json:"statusChange"`
}

func splitSkills(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *handler) listAgents(c *gin.Context) {
	var q agentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	agents := h.svc.Agents.List(registry.Filter{
		Status:     models.Status(q.Status),
		Supervisor: q.Supervisor,
		Department: q.Department,
		Skills:     splitSkills(q.Skills),
	})
	respond(c, http.StatusOK, "Agents retrieved successfully", agentList{
		Agents:  agents,
		Stats:   dashboard.ComputeStats(h.svc.Agents.Snapshot(), nil, time.Now()).Agents,
		Count:   len(agents),
		Filters: q,
	})
}

func (h *handler) getAgent(c *gin.Context) {
	a, err := h.svc.Agents.Get(c.Param("code"))
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusOK, "Agent retrieved successfully", a)
}

func (h *handler) loginAgent(c *gin.Context) {
	code := c.Param("code")
	if !validAgentCode(code) {
		h.respondValidation(c, []fieldError{{
			Field:   "agentCode",
			Message: "agentCode must be an uppercase letter followed by three digits",
			Value:   code,
		}})
		return
	}
	// The body is optional; an empty one keeps every stored attribute.
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.respondValidation(c, fieldErrors(err))
		return
	}

	res, err := h.svc.Login(registry.LoginRequest{
		Code:       code,
		Name:       strings.TrimSpace(body.Name),
		Skills:     body.Skills,
		Supervisor: body.Supervisor,
		Department: body.Department,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusCreated, "Agent logged in successfully", loginResponse{
		Agent:     res.Agent,
		SessionID: res.SessionID,
		Outcome:   res.Outcome.String(),
	})
}

func (h *handler) logoutAgent(c *gin.Context) {
	a, err := h.svc.Logout(c.Param("code"))
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusOK, "Agent logged out successfully", a)
}

func (h *handler) updateStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	ch, err := h.svc.SetStatus(c.Param("code"), models.Status(body.Status), body.Reason)
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusOK, "Agent status updated successfully", statusResponse{
		Agent: ch.Agent,
		StatusChange: statusChangeView{
			From:      ch.From,
			To:        ch.To,
			Reason:    ch.Reason,
			Timestamp: ch.At,
		},
	})
}

func (h *handler) recordCall(c *gin.Context) {
	var body callBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	a, err := h.svc.RecordCall(c.Param("code"), *body.DurationSeconds)
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusOK, "Call recorded successfully", a)
}

func (h *handler) deleteAgent(c *gin.Context) {
	a, err := h.svc.DeleteAgent(c.Param("code"))
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusOK, "Agent deleted successfully", gin.H{"deletedAgent": a})
}
