package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"chatflow/internal/apperrors"
	"chatflow/internal/automation"
	"chatflow/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RuleStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.AutomationRule, error)
	FindByTriggerType(ctx context.Context, userID string, triggerType models.TriggerType) ([]models.AutomationRule, error)
	FindByID(ctx context.Context, userID, id string) (*models.AutomationRule, error)
	Update(ctx context.Context, rule *models.AutomationRule) error
}

type LogStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AutomationLog, error)
	ListByRule(ctx context.Context, userID, ruleID string, limit int) ([]models.AutomationLog, error)
	StatsByStatus(ctx context.Context, userID string) (map[models.LogStatus]int64, error)
}

type ScheduledStore interface {
	FindByUser(ctx context.Context, userID string, status models.ScheduledStatus) ([]models.ScheduledMessage, error)
	FindByContact(ctx context.Context, userID, contactID string) ([]models.ScheduledMessage, error)
	Stats(ctx context.Context, userID string) (map[models.ScheduledStatus]int64, error)
}

type MessageHistory interface {
	ListByContact(ctx context.Context, userID, contactID string) ([]models.Message, error)
}

// SchedulerControl is the operational surface of the scheduler.
type SchedulerControl interface {
	RunOnce(ctx context.Context) (automation.RunStats, error)
	Cancel(ctx context.Context, userID, id string) error
}

type BotSwitch interface {
	IsEnabled(ctx context.Context, userID string) (bool, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
}

type AutomationHandler struct {
	Rules     RuleStore
	Logs      LogStore
	Scheduled ScheduledStore
	Messages  MessageHistory
	Scheduler SchedulerControl
	Bot       BotSwitch
	Logger    *logrus.Logger
}

func NewAutomationHandler(rules RuleStore, logs LogStore, scheduled ScheduledStore, messages MessageHistory, scheduler SchedulerControl, bot BotSwitch, logger *logrus.Logger) *AutomationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AutomationHandler{
		Rules:     rules,
		Logs:      logs,
		Scheduled: scheduled,
		Messages:  messages,
		Scheduler: scheduler,
		Bot:       bot,
		Logger:    logger,
	}
}

// GetRules returns the caller's automation rules. With ?trigger_type only
// the active rules of that type are listed, in evaluation order.
func (h *AutomationHandler) GetRules(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var (
		rules []models.AutomationRule
		err   error
	)
	if tt := c.Query("trigger_type"); tt != "" {
		triggerType := models.TriggerType(tt)
		if !triggerType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trigger_type " + tt})
			return
		}
		rules, err = h.Rules.FindByTriggerType(c.Request.Context(), userID, triggerType)
	} else {
		rules, err = h.Rules.ListByUser(c.Request.Context(), userID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// ToggleRule enables or disables a rule
func (h *AutomationHandler) ToggleRule(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	rule, err := h.Rules.FindByID(ctx, userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	rule.IsActive = *req.Enabled
	if err := h.Rules.Update(ctx, rule); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule toggled successfully", "is_active": rule.IsActive})
}

// GetLogs returns automation execution logs, newest first
func (h *AutomationHandler) GetLogs(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	var logs []models.AutomationLog
	if ruleID := c.Query("rule_id"); ruleID != "" {
		logs, err = h.Logs.ListByRule(c.Request.Context(), userID, ruleID, limit)
	} else {
		logs, err = h.Logs.ListByUser(c.Request.Context(), userID, limit)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAnalytics returns execution and scheduling counters
func (h *AutomationHandler) GetAnalytics(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	executions, err := h.Logs.StatsByStatus(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	scheduled, err := h.Scheduled.Stats(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var total int64
	for _, n := range executions {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"total_executions":      total,
		"successful_executions": executions[models.LogExecuted],
		"failed_executions":     executions[models.LogFailed],
		"scheduled":             scheduled,
	})
}

type scheduledView struct {
	models.ScheduledMessage
	Overdue bool `json:"overdue"`
}

// GetScheduled lists scheduled messages by ?contact_id or ?status
func (h *AutomationHandler) GetScheduled(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var (
		rows []models.ScheduledMessage
		err  error
	)
	if contactID := c.Query("contact_id"); contactID != "" {
		rows, err = h.Scheduled.FindByContact(c.Request.Context(), userID, contactID)
	} else {
		rows, err = h.Scheduled.FindByUser(c.Request.Context(), userID, models.ScheduledStatus(c.Query("status")))
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := time.Now()
	views := make([]scheduledView, len(rows))
	for i, row := range rows {
		views[i] = scheduledView{ScheduledMessage: row, Overdue: row.IsOverdue(now)}
	}
	c.JSON(http.StatusOK, views)
}

// GetContactMessages returns a contact's conversation, oldest first
func (h *AutomationHandler) GetContactMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	msgs, err := h.Messages.ListByContact(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// RunScheduler processes due scheduled messages immediately
func (h *AutomationHandler) RunScheduler(c *gin.Context) {
	stats, err := h.Scheduler.RunOnce(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CancelScheduled withdraws a pending scheduled message
func (h *AutomationHandler) CancelScheduled(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Scheduler.Cancel(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scheduled message cancelled"})
}

// GetBotStatus reports whether automations run for the caller
func (h *AutomationHandler) GetBotStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	enabled, err := h.Bot.IsEnabled(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// SetBotStatus pauses or resumes automations for the caller
func (h *AutomationHandler) SetBotStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Bot.SetEnabled(c.Request.Context(), userID, *req.Enabled); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// requireUser reads the tenant from the X-User-ID header or user_id query.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		userID = c.Query("user_id")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return "", false
	}
	return userID, true
}

func (h *AutomationHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsConflict(err):
		status = http.StatusConflict
	case apperrors.IsTransport(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
