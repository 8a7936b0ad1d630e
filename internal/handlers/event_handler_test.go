package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"engage/internal/automation"
	"engage/internal/models"
	"engage/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubSender struct {
	dms     []automation.ChannelMessage
	replies []automation.ChannelMessage
}

func (s *stubSender) SendDirectMessage(ctx context.Context, msg automation.ChannelMessage) error {
	s.dms = append(s.dms, msg)
	return nil
}

func (s *stubSender) SendPublicReply(ctx context.Context, msg automation.ChannelMessage) error {
	s.replies = append(s.replies, msg)
	return nil
}

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:handler_" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Workspace{},
		&models.InboundMessage{},
		&models.AutomationRule{},
		&models.ExecutionRecord{},
		&models.EmailJob{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestRouter(t *testing.T, db *gorm.DB, sender automation.ChannelSender) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st := store.New(db, logger)
	cfg := automation.DefaultDispatcherConfig()
	cfg.BackoffBase = time.Millisecond
	dispatcher := automation.NewDispatcher(sender, st, st, &http.Client{}, cfg, logger)
	coordinator := automation.NewCoordinator(
		st,
		automation.NewEvaluator(logger),
		automation.NewGuard(st, logger),
		dispatcher,
		automation.NewAuditLogger(st, logger),
		logger,
	)

	router := gin.New()
	api := router.Group("/api")
	RegisterEventRoutes(api, NewEventHandler(coordinator, st, logger))
	RegisterRuleRoutes(api, NewRuleHandler(st))
	return router, st
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEventHandler_Comment(t *testing.T) {
	db := newHandlerTestDB(t)
	sender := &stubSender{}
	router, _ := newTestRouter(t, db, sender)

	ws := &models.Workspace{Name: "acme", WebhookSecret: "s"}
	require.NoError(t, db.Create(ws).Error)
	rule := &models.AutomationRule{
		WorkspaceID:   ws.ID,
		AgentID:       1,
		Name:          "pricing reply",
		TriggerType:   automation.TriggerComment,
		TriggerConfig: `{"keywords":["pricing"]}`,
		ActionType:    automation.ActionSendPublicReply,
		ActionConfig:  `{"message":"see example.com/pricing, {{input.authorName}}"}`,
		Enabled:       true,
	}
	require.NoError(t, db.Create(rule).Error)

	w := postJSON(t, router, "/api/events/comment", gin.H{
		"workspace_id": ws.ID,
		"agent_id":     1,
		"platform":     "facebook",
		"external_id":  "comment-55",
		"post_id":      "post-9",
		"author_id":    "u-3",
		"author_name":  "Dana",
		"content":      "what does pricing look like?",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var result automation.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, automation.OutcomeExecuted, result.Outcomes[0].Outcome)

	require.Len(t, sender.replies, 1)
	assert.Equal(t, "comment-55", sender.replies[0].CommentID)
	assert.Equal(t, "see example.com/pricing, Dana", sender.replies[0].Text)

	// The inbound message is persisted alongside evaluation.
	var count int64
	require.NoError(t, db.Model(&models.InboundMessage{}).
		Where("external_id = ?", "comment-55").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEventHandler_Comment_MissingFields(t *testing.T) {
	db := newHandlerTestDB(t)
	router, _ := newTestRouter(t, db, &stubSender{})

	w := postJSON(t, router, "/api/events/comment", gin.H{
		"workspace_id": 1,
		// agent_id and external_id missing
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandler_ScheduledRun(t *testing.T) {
	db := newHandlerTestDB(t)
	sender := &stubSender{}
	router, _ := newTestRouter(t, db, sender)

	ws := &models.Workspace{Name: "acme", WebhookSecret: "s"}
	require.NoError(t, db.Create(ws).Error)
	rule := &models.AutomationRule{
		WorkspaceID:   ws.ID,
		AgentID:       1,
		Name:          "every minute",
		TriggerType:   automation.TriggerTime,
		TriggerConfig: `{"cron_pattern":"* * * * *"}`,
		ActionType:    automation.ActionSendDM,
		ActionConfig:  `{"message":"tick"}`,
		Enabled:       true,
	}
	require.NoError(t, db.Create(rule).Error)

	w := postJSON(t, router, "/api/schedule/run", gin.H{"workspace_id": ws.ID, "agent_id": 1})
	assert.Equal(t, http.StatusOK, w.Code)

	var result automation.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, automation.OutcomeExecuted, result.Outcomes[0].Outcome)

	// Same-minute redelivery from the scheduler is a duplicate, not a resend.
	w = postJSON(t, router, "/api/schedule/run", gin.H{"workspace_id": ws.ID, "agent_id": 1})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, automation.OutcomeSkippedDuplicate, result.Outcomes[0].Outcome)
}

func TestEventHandler_ManualRun_NotFound(t *testing.T) {
	db := newHandlerTestDB(t)
	router, _ := newTestRouter(t, db, &stubSender{})

	w := postJSON(t, router, "/api/rules/12345/run", gin.H{"workspace_id": 1, "agent_id": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandler_ManualRun(t *testing.T) {
	db := newHandlerTestDB(t)
	sender := &stubSender{}
	router, _ := newTestRouter(t, db, sender)

	ws := &models.Workspace{Name: "acme", WebhookSecret: "s"}
	require.NoError(t, db.Create(ws).Error)
	rule := &models.AutomationRule{
		WorkspaceID:   ws.ID,
		AgentID:       1,
		Name:          "canned dm",
		TriggerType:   automation.TriggerManual,
		TriggerConfig: `{}`,
		ActionType:    automation.ActionSendDM,
		ActionConfig:  `{"message":"hello there"}`,
		Enabled:       true,
	}
	require.NoError(t, db.Create(rule).Error)

	w := postJSON(t, router, fmt.Sprintf("/api/rules/%d/run", rule.ID), gin.H{
		"workspace_id": ws.ID,
		"agent_id":     1,
		"recipient":    "u-42",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var result automation.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, automation.OutcomeExecuted, result.Outcomes[0].Outcome)

	require.Len(t, sender.dms, 1)
	assert.Equal(t, "u-42", sender.dms[0].Recipient)
	assert.Equal(t, "hello there", sender.dms[0].Text)
}
