package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/models"
	"github.com/gamedesk/backend/internal/service"
)

type CreateTicketRequest struct {
	PlayerIDOrName string   `json:"player_id_or_name" validate:"required"`
	GameID         string   `json:"game_id" validate:"required"`
	ServerID       string   `json:"server_id"`
	Description    string   `json:"description" validate:"required"`
	IdentityStatus string   `json:"identity_status"`
	IssueTypeIDs   []string `json:"issue_type_ids"`
}

// @Summary Create a support ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Success 200 {object} models.Ticket
// @Router /api/tickets [post]
func (h *Handler) TicketCreate(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	weights, err := h.Store.IssueTypeWeights(c.Request.Context(), req.IssueTypeIDs)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to resolve issue types", err.Error())
		return
	}
	score, priority := service.TriagePriority(weights)

	identity := req.IdentityStatus
	if identity == "" {
		identity = "UNVERIFIED"
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	ticket := models.Ticket{
		ID:             id,
		TicketNo:       fmt.Sprintf("T%s-%s", now.Format("20060102"), strings.ToUpper(id[:8])),
		PlayerIDOrName: req.PlayerIDOrName,
		GameID:         req.GameID,
		ServerID:       req.ServerID,
		Description:    req.Description,
		IdentityStatus: identity,
		IssueTypeIDs:   req.IssueTypeIDs,
		Status:         "OPEN",
		Priority:       priority,
		PriorityScore:  score,
		CreatedAt:      now,
	}
	if err := h.Store.CreateTicket(c.Request.Context(), ticket); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) TicketDetails(c *gin.Context) {
	ticket, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, ticket)
}
