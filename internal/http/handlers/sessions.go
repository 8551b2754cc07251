package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/models"
	"github.com/gamedesk/backend/internal/service"
)

type CreateSessionRequest struct {
	TicketID string `json:"ticket_id" validate:"required"`
}

// @Summary Open a support session for a ticket
// @Tags sessions
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/sessions [post]
func (h *Handler) SessionCreate(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	session, err := h.Sessions.Create(c.Request.Context(), req.TicketID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create session", err.Error())
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) SessionDetails(c *gin.Context) {
	id := c.Param("id")
	session, err := h.Store.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get session", err.Error())
		return
	}

	ticket, err := h.Store.GetTicket(c.Request.Context(), session.TicketID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket", err.Error())
		return
	}
	messages, err := h.Store.ListMessages(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load messages", err.Error())
		return
	}

	resp := gin.H{"session": session, "ticket": ticket, "messages": messages}
	if session.Status == models.SessionQueued {
		if pos, err := h.Sessions.QueuePosition(c.Request.Context(), id); err == nil {
			resp["queue_position"] = pos
		}
	}
	c.JSON(http.StatusOK, resp)
}

type PlayerMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) SessionPlayerMessage(c *gin.Context) {
	id := c.Param("id")
	var req PlayerMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "content must not be empty", nil)
		return
	}

	result, err := h.Sessions.HandlePlayerMessage(c.Request.Context(), id, req.Content)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			writeError(c, http.StatusConflict, "INVALID_STATE", "Session is closed", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to handle message", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

type TransferRequest struct {
	Urgency string `json:"urgency"`
}

// @Summary Hand the session off to the human queue
// @Tags sessions
// @Produce json
// @Success 200 {object} service.TransferResult
// @Router /api/sessions/{id}/transfer-to-agent [post]
func (h *Handler) SessionTransfer(c *gin.Context) {
	id := c.Param("id")
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	urgency := strings.ToUpper(strings.TrimSpace(req.Urgency))
	if urgency == "" {
		urgency = "NON_URGENT"
	}

	result, err := h.Sessions.TransferToAgent(c.Request.Context(), id, urgency)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			writeError(c, http.StatusConflict, "INVALID_STATE", "Session cannot be transferred in its current state", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to transfer session", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Claim a queued session
// @Tags workbench
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/sessions/{id}/join [post]
func (h *Handler) SessionJoin(c *gin.Context) {
	id := c.Param("id")
	agentID := strings.TrimSpace(c.GetHeader("X-Agent-Id"))
	if agentID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "X-Agent-Id header is required", nil)
		return
	}

	session, claimed, err := h.Sessions.Claim(c.Request.Context(), id, agentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			writeError(c, http.StatusConflict, "INVALID_STATE", "Session is closed", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to claim session", err.Error())
		return
	}
	if !claimed {
		// Another agent got there first, or the session left the queue.
		// A normal outcome, not an error.
		c.JSON(http.StatusOK, gin.H{"claimed": false, "session": session})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimed": true, "session": session})
}

func (h *Handler) SessionClose(c *gin.Context) {
	id := c.Param("id")
	session, err := h.Sessions.Close(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to close session", err.Error())
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) SessionsList(c *gin.Context) {
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	agentID := c.Query("agent_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.Store.ListSessions(c.Request.Context(), status, agentID, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list sessions", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

// @Summary Queued sessions in service order
// @Tags workbench
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/workbench/queued [get]
func (h *Handler) WorkbenchQueued(c *gin.Context) {
	queued, err := h.Store.ListQueuedSessions(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list queued sessions", err.Error())
		return
	}

	items := make([]gin.H, 0, len(queued))
	for _, q := range queued {
		items = append(items, gin.H{"session": q.Session, "ticket": q.Ticket})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
