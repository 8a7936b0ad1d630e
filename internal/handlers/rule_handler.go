package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"engage/internal/automation"
	"engage/internal/models"
	"engage/internal/store"

	"github.com/gin-gonic/gin"
)

// RuleHandler provides minimal rule management: enough to author and
// inspect rules, with configs validated through the engine's typed
// variants before they are stored.
type RuleHandler struct {
	store *store.Store
}

func NewRuleHandler(st *store.Store) *RuleHandler {
	return &RuleHandler{store: st}
}

// RuleCreateRequest is the authoring payload for one rule.
type RuleCreateRequest struct {
	WorkspaceID   uint            `json:"workspace_id" binding:"required"`
	AgentID       uint            `json:"agent_id" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	TriggerType   string          `json:"trigger_type" binding:"required"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	ActionType    string          `json:"action_type" binding:"required"`
	ActionConfig  json.RawMessage `json:"action_config"`
	Enabled       *bool           `json:"enabled"`
}

// List returns every rule for a workspace.
func (h *RuleHandler) List(c *gin.Context) {
	workspaceID, err := strconv.ParseUint(c.Query("workspace_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid workspace_id", Message: "workspace_id query parameter is required"})
		return
	}

	rules, err := h.store.ListRules(c.Request.Context(), uint(workspaceID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list rules", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Create validates the trigger/action variants and stores the rule.
func (h *RuleHandler) Create(c *gin.Context) {
	var req RuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &models.AutomationRule{
		WorkspaceID:   req.WorkspaceID,
		AgentID:       req.AgentID,
		Name:          req.Name,
		TriggerType:   req.TriggerType,
		TriggerConfig: string(req.TriggerConfig),
		ActionType:    req.ActionType,
		ActionConfig:  string(req.ActionConfig),
		Enabled:       enabled,
	}

	// Reject mismatched configs at the door, same validation the
	// evaluator applies.
	if _, err := automation.ParseTriggerSpec(rule); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid trigger config", Message: err.Error()})
		return
	}
	if _, err := automation.ParseActionSpec(rule); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid action config", Message: err.Error()})
		return
	}

	if err := h.store.CreateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Delete removes one rule scoped to its workspace.
func (h *RuleHandler) Delete(c *gin.Context) {
	ruleID, ok := parseIDParam(c)
	if !ok {
		return
	}
	workspaceID, err := strconv.ParseUint(c.Query("workspace_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid workspace_id", Message: "workspace_id query parameter is required"})
		return
	}

	if err := h.store.DeleteRule(c.Request.Context(), uint(workspaceID), ruleID); err != nil {
		var notFound *automation.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete rule", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

// Records returns the audit trail for one rule.
func (h *RuleHandler) Records(c *gin.Context) {
	ruleID, ok := parseIDParam(c)
	if !ok {
		return
	}
	workspaceID, err := strconv.ParseUint(c.Query("workspace_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid workspace_id", Message: "workspace_id query parameter is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.store.ListRecords(c.Request.Context(), uint(workspaceID), ruleID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list records", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return 0, false
	}
	return uint(id), true
}

// RegisterRuleRoutes registers rule management routes.
func RegisterRuleRoutes(r *gin.RouterGroup, handler *RuleHandler) {
	rules := r.Group("/rules")
	{
		rules.GET("", handler.List)
		rules.POST("", handler.Create)
		rules.DELETE(":id", handler.Delete)
		rules.GET(":id/records", handler.Records)
	}
}
