package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glebk/status-board/internal/domain"
)

type credentialsRequest struct {
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (r credentialsRequest) session() domain.Session {
	return domain.Session{Name: r.DisplayName, Password: r.Password}
}

type updateStatusRequest struct {
	credentialsRequest
	Status string `json:"status"`
}

// RegisterUser creates the caller's row if it does not exist yet
func (h *Handler) RegisterUser(c *gin.Context) {
	var body credentialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.status.Register(c.Request.Context(), body.session()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var body updateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	err := h.status.UpdateStatus(c.Request.Context(), body.session(), domain.Status(body.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ClearAll wipes the board. Only the configured admin may call it.
func (h *Handler) ClearAll(c *gin.Context) {
	var body credentialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.status.ClearAll(c.Request.Context(), body.session()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Board returns the full table, most recently updated first
func (h *Handler) Board(c *gin.Context) {
	people, err := h.status.Board(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": people})
}
