package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/models"
)

type RuleConditionsRequest struct {
	IssueTypeIDs   []string `json:"issue_type_ids" validate:"required,min=1,dive,required"`
	Keywords       []string `json:"keywords"`
	Intent         string   `json:"intent"`
	IdentityStatus string   `json:"identity_status"`
	GameID         string   `json:"game_id"`
	ServerID       string   `json:"server_id"`
	Priority       string   `json:"priority"`
}

type CreateRuleRequest struct {
	Name           string                `json:"name" validate:"required"`
	Enabled        *bool                 `json:"enabled"`
	PriorityWeight int                   `json:"priority_weight" validate:"required,min=1,max=100"`
	Conditions     RuleConditionsRequest `json:"conditions" validate:"required"`
}

func (r RuleConditionsRequest) toModel() models.RuleConditions {
	return models.RuleConditions{
		IssueTypeIDs:   r.IssueTypeIDs,
		Keywords:       r.Keywords,
		Intent:         r.Intent,
		IdentityStatus: r.IdentityStatus,
		GameID:         r.GameID,
		ServerID:       r.ServerID,
		Priority:       r.Priority,
	}
}

func (h *Handler) RulesList(c *gin.Context) {
	rules, err := h.Store.ListRules(c.Request.Context(), false)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list rules", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rules})
}

func (h *Handler) RuleDetails(c *gin.Context) {
	rule, err := h.Store.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get rule", err.Error())
		return
	}
	c.JSON(http.StatusOK, rule)
}

// @Summary Create an urgency rule
// @Tags rules
// @Accept json
// @Produce json
// @Success 200 {object} models.Rule
// @Router /api/rules [post]
func (h *Handler) RuleCreate(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := models.Rule{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Enabled:        enabled,
		PriorityWeight: req.PriorityWeight,
		Conditions:     req.Conditions.toModel(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Store.CreateRule(c.Request.Context(), rule); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create rule", err.Error())
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) RuleUpdate(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	rule, err := h.Store.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load rule", err.Error())
		return
	}

	rule.Name = req.Name
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	rule.PriorityWeight = req.PriorityWeight
	rule.Conditions = req.Conditions.toModel()

	if err := h.Store.UpdateRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update rule", err.Error())
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) RuleDelete(c *gin.Context) {
	if err := h.Store.SoftDeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete rule", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Rescore and reorder the whole queue
// @Tags rules
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/rules/recalculate [post]
func (h *Handler) RulesRecalculate(c *gin.Context) {
	rescored, err := h.Sessions.RecalculateQueue(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to recalculate queue", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rescored": rescored})
}

type IssueTypeRequest struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	Enabled        *bool  `json:"enabled"`
	PriorityWeight int    `json:"priority_weight" validate:"required,min=1,max=100"`
	SortOrder      int    `json:"sort_order"`
}

func (h *Handler) IssueTypesEnabled(c *gin.Context) {
	items, err := h.Store.ListIssueTypes(c.Request.Context(), true)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list issue types", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) IssueTypesAll(c *gin.Context) {
	items, err := h.Store.ListIssueTypes(c.Request.Context(), false)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list issue types", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) IssueTypeCreate(c *gin.Context) {
	var req IssueTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	it := models.IssueType{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Enabled:        enabled,
		PriorityWeight: req.PriorityWeight,
		SortOrder:      req.SortOrder,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Store.CreateIssueType(c.Request.Context(), it); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create issue type", err.Error())
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) IssueTypeUpdate(c *gin.Context) {
	var req IssueTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	it := models.IssueType{
		ID:             c.Param("id"),
		Name:           req.Name,
		Description:    req.Description,
		Enabled:        enabled,
		PriorityWeight: req.PriorityWeight,
		SortOrder:      req.SortOrder,
	}
	if err := h.Store.UpdateIssueType(c.Request.Context(), it); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Issue type not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update issue type", err.Error())
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) IssueTypeDelete(c *gin.Context) {
	if err := h.Store.SoftDeleteIssueType(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Issue type not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete issue type", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
