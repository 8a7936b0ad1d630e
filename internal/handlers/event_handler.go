package handlers

import (
	"errors"
	"net/http"
	"time"

	"engage/internal/automation"
	"engage/internal/models"
	"engage/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// InboundEventRequest is one comment or message pushed by a channel
// webhook. ExternalID is the platform's stable id for the occurrence.
type InboundEventRequest struct {
	WorkspaceID uint   `json:"workspace_id" binding:"required"`
	AgentID     uint   `json:"agent_id" binding:"required"`
	Platform    string `json:"platform"`
	ExternalID  string `json:"external_id" binding:"required"`
	PostID      string `json:"post_id"`
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	Content     string `json:"content"`
}

// EventHandler receives inbound channel events and runs rule
// evaluation for them.
type EventHandler struct {
	coordinator *automation.Coordinator
	store       *store.Store
	logger      *logrus.Logger
}

func NewEventHandler(coordinator *automation.Coordinator, st *store.Store, logger *logrus.Logger) *EventHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &EventHandler{coordinator: coordinator, store: st, logger: logger}
}

// HandleComment processes one inbound comment event.
func (h *EventHandler) HandleComment(c *gin.Context) {
	h.handleInbound(c, automation.EventComment)
}

// HandleMessage processes one inbound direct message event.
func (h *EventHandler) HandleMessage(c *gin.Context) {
	h.handleInbound(c, automation.EventMessage)
}

func (h *EventHandler) handleInbound(c *gin.Context, kind automation.EventKind) {
	var req InboundEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()

	// Store the inbound message first; evaluation proceeds even if the
	// write fails so automation is not lost to a logging problem.
	msg := &models.InboundMessage{
		WorkspaceID: req.WorkspaceID,
		AgentID:     req.AgentID,
		Kind:        string(kind),
		Platform:    req.Platform,
		ExternalID:  req.ExternalID,
		PostID:      req.PostID,
		AuthorID:    req.AuthorID,
		AuthorName:  req.AuthorName,
		Content:     req.Content,
	}
	if err := h.store.SaveInboundMessage(ctx, msg); err != nil {
		h.logger.Warnf("events: store inbound message %s failed: %v", req.ExternalID, err)
	}

	evt := automation.Event{
		WorkspaceID:  req.WorkspaceID,
		AgentID:      req.AgentID,
		Platform:     req.Platform,
		OccurrenceID: req.ExternalID,
		PostID:       req.PostID,
		AuthorID:     req.AuthorID,
		AuthorName:   req.AuthorName,
		Content:      req.Content,
	}

	var (
		result *automation.BatchResult
		err    error
	)
	if kind == automation.EventComment {
		result, err = h.coordinator.HandleCommentEvent(ctx, evt, time.Now())
	} else {
		result, err = h.coordinator.HandleMessageEvent(ctx, evt, time.Now())
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Rule evaluation failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ScheduledRunRequest asks the engine to evaluate all time rules for
// one workspace/agent at the current minute.
type ScheduledRunRequest struct {
	WorkspaceID uint `json:"workspace_id" binding:"required"`
	AgentID     uint `json:"agent_id" binding:"required"`
}

// HandleScheduledRun is the entry point for the external scheduler. It
// is safe to invoke more than once per minute.
func (h *EventHandler) HandleScheduledRun(c *gin.Context) {
	var req ScheduledRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	result, err := h.coordinator.RunScheduledRules(c.Request.Context(), req.WorkspaceID, req.AgentID, time.Now())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Scheduled run failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ManualRunRequest fires one rule immediately, optionally overriding
// recipient and message.
type ManualRunRequest struct {
	WorkspaceID     uint   `json:"workspace_id" binding:"required"`
	AgentID         uint   `json:"agent_id" binding:"required"`
	Recipient       string `json:"recipient"`
	MessageOverride string `json:"message_override"`
}

// HandleManualRun triggers one explicitly targeted rule.
func (h *EventHandler) HandleManualRun(c *gin.Context) {
	ruleID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ManualRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	result, err := h.coordinator.RunManualTrigger(c.Request.Context(),
		req.WorkspaceID, req.AgentID, ruleID, req.Recipient, req.MessageOverride, time.Now())
	if err != nil {
		var notFound *automation.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Rule not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Manual run failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegisterEventRoutes wires the engine entry points.
func RegisterEventRoutes(r *gin.RouterGroup, handler *EventHandler) {
	events := r.Group("/events")
	{
		events.POST("/comment", handler.HandleComment)
		events.POST("/message", handler.HandleMessage)
	}
	r.POST("/schedule/run", handler.HandleScheduledRun)
	r.POST("/rules/:id/run", handler.HandleManualRun)
}
