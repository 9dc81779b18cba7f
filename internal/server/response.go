package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/wallboard/internal/models"
)

// envelope is the body shape of every JSON API response.
type envelope struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Data      any          `json:"data,omitempty"`
	Errors    []fieldError `json:"errors,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// errorDetail is only attached in development.
type errorDetail struct {
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (h *handler) respondError(c *gin.Context, status int, message string, err error) {
	body := envelope{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err != nil && h.cfg.Development() {
		body.Error = &errorDetail{Message: err.Error()}
	}

	if err != nil {
		attrs := []any{"status", status, "path", c.FullPath(), "error", err}
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", attrs...)
		} else {
			h.logger.Debug("request rejected", attrs...)
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *handler) respondValidation(c *gin.Context, errs []fieldError) {
	h.logger.Warn("validation failed", "path", c.FullPath(), "errors", len(errs))
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Success:   false,
		Message:   "Validation failed",
		Errors:    errs,
		Timestamp: time.Now().UTC(),
	})
}

// fail maps a domain error onto a status code. notFound is the message used
// when err wraps models.ErrNotFound.
func (h *handler) fail(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.respondError(c, http.StatusNotFound, notFound, err)
	case errors.Is(err, models.ErrInvalidStatus):
		h.respondError(c, http.StatusBadRequest, "Invalid agent status", err)
	case errors.Is(err, models.ErrAlreadyExists):
		h.respondError(c, http.StatusConflict, "Duplicate entry", err)
	default:
		h.respondError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *handler) notFound(c *gin.Context) {
	h.respondError(c, http.StatusNotFound, fmt.Sprintf("Route %s not found", c.Request.URL.Path), nil)
}

// recover turns a handler panic into a 500 envelope.
func (h *handler) recover(c *gin.Context, recovered any) {
	h.respondError(c, http.StatusInternalServerError, "Internal server error",
		fmt.Errorf("panic: %v", recovered))
}
