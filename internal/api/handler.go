package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/glebk/status-board/internal/domain"
)

// StatusService is the part of service.StatusService the handlers use
type StatusService interface {
	Register(ctx context.Context, session domain.Session) error
	UpdateStatus(ctx context.Context, session domain.Session, status domain.Status) error
	ClearAll(ctx context.Context, session domain.Session) error
	Board(ctx context.Context) ([]*domain.StatusRecord, error)
}

type Handler struct {
	status  StatusService
	changes gin.HandlerFunc
}

// New creates the handler set. changes serves the websocket change feed and may be nil.
func New(status StatusService, changes gin.HandlerFunc) *Handler {
	return &Handler{status: status, changes: changes}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/status", h.Board)

		api.POST("/register", h.RegisterUser)
		api.POST("/login", h.RegisterUser)
		api.POST("/update-status", h.UpdateStatus)
		api.POST("/clear-all", h.ClearAll)
		api.POST("/admin/reset", h.ClearAll)

		if h.changes != nil {
			api.GET("/changes", h.changes)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errorResponse writes the error body shared by every endpoint
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":      message,
		"request_id": c.GetString(requestIDKey),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// fail maps a service error onto its HTTP status
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.errorResponse(c, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrValidation):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	default:
		glog.Errorf("[api]%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}
