package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/wallboard/internal/messaging"
	"github.com/zulandar/wallboard/internal/models"
)

type sendBody struct {
	From     string `json:"from" binding:"required"`
	FromName string `json:"fromName" binding:"required"`
	To       string `json:"to" binding:"required,recipient"`
	Message  string `json:"message" binding:"required,min=1,max=500"`
	Type     string `json:"type" binding:"omitempty,msgtype"`
	Priority string `json:"priority" binding:"omitempty,msgpriority"`
}

type messageQuery struct {
	Limit    int    `form:"limit,default=100" json:"limit" binding:"gte=0"`
	Type     string `form:"type" json:"type,omitempty" binding:"omitempty,msgtype"`
	Priority string `form:"priority" json:"priority,omitempty" binding:"omitempty,msgpriority"`
	From     string `form:"from" json:"from,omitempty"`
}

type agentMessageQuery struct {
	UnreadOnly bool `form:"unreadOnly"`
	Limit      int  `form:"limit,default=50" binding:"gte=0"`
}

type messageList struct {
	Messages []models.Message  `json:"messages"`
	Stats    messaging.Summary `json:"stats"`
	Filters  messageQuery      `json:"filters"`
}

type agentRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type agentMessages struct {
	Messages []models.Message  `json:"messages"`
	Stats    messaging.Summary `json:"stats"`
	Agent    agentRef          `json:"agent"`
}

func (h *handler) sendMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		h.respondValidation(c, []fieldError{{Field: "message", Message: "message is required", Value: body.Message}})
		return
	}
	to, err := models.ParseRecipient(body.To)
	if err != nil {
		h.respondValidation(c, []fieldError{{Field: "to", Message: err.Error(), Value: body.To}})
		return
	}

	msg, err := h.svc.SendMessage(messaging.SendRequest{
		From:     body.From,
		FromName: body.FromName,
		To:       to,
		Body:     body.Message,
		Type:     models.MessageType(body.Type),
		Priority: models.Priority(body.Priority),
	})
	if errors.Is(err, models.ErrUnknownRecipient) {
		h.respondError(c, http.StatusNotFound, fmt.Sprintf("Target agent %s not found", body.To), err)
		return
	}
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	respond(c, http.StatusCreated, "Message sent successfully", msg)
}

func (h *handler) listMessages(c *gin.Context) {
	var q messageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	msgs := h.svc.Messages.ListAll(messaging.Filter{
		Type:     models.MessageType(q.Type),
		Priority: models.Priority(q.Priority),
		From:     q.From,
		Limit:    q.Limit,
	})
	respond(c, http.StatusOK, "All messages retrieved successfully", messageList{
		Messages: msgs,
		Stats:    messaging.Summarize(h.svc.Messages.Snapshot()),
		Filters:  q,
	})
}

func (h *handler) agentMessages(c *gin.Context) {
	var q agentMessageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondValidation(c, fieldErrors(err))
		return
	}
	a, err := h.svc.Agents.Get(c.Param("code"))
	if err != nil {
		h.fail(c, err, msgAgentNotFound)
		return
	}
	msgs := h.svc.Messages.ListForAgent(a.Code, q.UnreadOnly, q.Limit)
	respond(c, http.StatusOK, "Messages retrieved successfully", agentMessages{
		Messages: msgs,
		Stats:    messaging.Summarize(msgs),
		Agent:    agentRef{Code: a.Code, Name: a.Name},
	})
}

func (h *handler) markRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.respondValidation(c, []fieldError{{Field: "id", Message: "id must be a positive integer", Value: c.Param("id")}})
		return
	}
	msg, err := h.svc.MarkRead(id)
	if err != nil {
		h.fail(c, err, "Message not found")
		return
	}
	respond(c, http.StatusOK, "Message marked as read", msg)
}
