package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatflow/internal/automation"
	"chatflow/internal/cache"
	"chatflow/internal/config"
	"chatflow/internal/metrics"
	"chatflow/internal/models"
	"chatflow/internal/repository"
	"chatflow/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiEnv struct {
	router    *gin.Engine
	messages  *repository.MessageRepository
	rules     *repository.RuleRepository
	logs      *repository.LogRepository
	contacts  *repository.ContactRepository
	scheduled *repository.ScheduledMessageRepository
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	env := &apiEnv{
		rules:     repository.NewRuleRepository(db),
		logs:      repository.NewLogRepository(db),
		contacts:  repository.NewContactRepository(db),
		scheduled: repository.NewScheduledMessageRepository(db),
	}
	messages := repository.NewMessageRepository(db)
	env.messages = messages
	stores := automation.Stores{
		Rules:     env.rules,
		Logs:      env.logs,
		Messages:  messages,
		Media:     repository.NewMediaRepository(db),
		Contacts:  env.contacts,
		Scheduled: env.scheduled,
	}
	scheduler := automation.NewScheduler(stores, nil, time.Minute, automation.WithLogger(quiet))
	bot := cache.NewBotStatus(repository.NewSettingRepository(db), nil, quiet)

	wh := webhook.NewHandler(&config.Config{}, env.contacts, messages, nil, quiet)
	ah := NewAutomationHandler(env.rules, env.logs, env.scheduled, messages, scheduler, bot, quiet)
	env.router = NewRouter(wh, ah, metrics.NewRecorder().Handler())
	return env
}

func (env *apiEnv) do(method, target, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *apiEnv) pending(t *testing.T, userID string, at time.Time) *models.ScheduledMessage {
	t.Helper()
	ctx := context.Background()
	contact := &models.Contact{UserID: userID, Phone: "+1555" + at.Format("150405")}
	require.NoError(t, env.contacts.Create(ctx, contact))
	row := &models.ScheduledMessage{UserID: userID, ContactID: contact.ID, Content: "Reminder", ScheduledAt: at}
	require.NoError(t, env.scheduled.Create(ctx, row))
	return row
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestUserIDRequired(t *testing.T) {
	env := newAPIEnv(t)
	w := env.do(http.MethodGet, "/api/automation/rules", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleRule(t *testing.T) {
	env := newAPIEnv(t)
	rule := &models.AutomationRule{
		UserID:            "u-1",
		Name:              "Pricing",
		TriggerType:       models.TriggerKeyword,
		TriggerConditions: models.TriggerConditions{Keywords: []string{"price"}},
		IsActive:          true,
	}
	require.NoError(t, env.rules.Create(context.Background(), rule))

	w := env.do(http.MethodPost, "/api/automation/rules/"+rule.ID+"/toggle", "u-1", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.rules.FindByID(context.Background(), "u-1", rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	w = env.do(http.MethodPost, "/api/automation/rules/"+rule.ID+"/toggle", "u-2", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/automation/rules/"+rule.ID+"/toggle", "u-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/automation/rules", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rules []models.AutomationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)
}

func TestRunSchedulerAndAnalytics(t *testing.T) {
	env := newAPIEnv(t)
	env.pending(t, "u-1", time.Now().Add(-time.Minute))

	w := env.do(http.MethodPost, "/api/automation/scheduler/run", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats automation.RunStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Due)
	assert.Equal(t, 1, stats.Sent)

	w = env.do(http.MethodGet, "/api/automation/analytics", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		TotalExecutions int64                            `json:"total_executions"`
		Scheduled       map[models.ScheduledStatus]int64 `json:"scheduled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(0), body.TotalExecutions)
	assert.Equal(t, int64(1), body.Scheduled[models.ScheduledSent])
}

func TestCancelScheduled(t *testing.T) {
	env := newAPIEnv(t)
	row := env.pending(t, "u-1", time.Now().Add(time.Hour))

	w := env.do(http.MethodPost, "/api/automation/scheduled/"+row.ID+"/cancel", "u-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/automation/scheduled/"+row.ID+"/cancel", "u-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/automation/scheduled/"+row.ID+"/cancel", "u-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBotToggle(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(http.MethodGet, "/api/automation/bot", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":true}`, w.Body.String())

	w = env.do(http.MethodPut, "/api/automation/bot", "u-1", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/automation/bot", "u-1", "")
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/automation/bot", "u-2", "")
	assert.JSONEq(t, `{"enabled":true}`, w.Body.String())
}

func TestGetScheduledMarksOverdue(t *testing.T) {
	env := newAPIEnv(t)
	late := env.pending(t, "u-1", time.Now().Add(-time.Hour))
	env.pending(t, "u-1", time.Now().Add(time.Hour))

	w := env.do(http.MethodGet, "/api/automation/scheduled?status=pending", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []struct {
		ID      string `json:"id"`
		Overdue bool   `json:"overdue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, late.ID, rows[0].ID)
	assert.True(t, rows[0].Overdue)
	assert.False(t, rows[1].Overdue)

	w = env.do(http.MethodGet, "/api/automation/scheduled?contact_id="+late.ContactID, "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 1)
}

func TestGetRulesByTriggerTypeAndLogsByRule(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	w := env.do(http.MethodGet, "/api/automation/rules?trigger_type=cron", "u-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rule := &models.AutomationRule{UserID: "u-1", Name: "Hello", TriggerType: models.TriggerWelcome, IsActive: true}
	require.NoError(t, env.rules.Create(ctx, rule))
	require.NoError(t, env.logs.Create(ctx, &models.AutomationLog{
		UserID: "u-1", AutomationRuleID: rule.ID, ContactID: "c-1",
		TriggerType: models.TriggerWelcome, Status: models.LogExecuted,
	}))
	require.NoError(t, env.logs.Create(ctx, &models.AutomationLog{
		UserID: "u-1", AutomationRuleID: "other", ContactID: "c-1",
		TriggerType: models.TriggerKeyword, Status: models.LogFailed,
	}))

	w = env.do(http.MethodGet, "/api/automation/rules?trigger_type=welcome", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rules []models.AutomationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, rule.ID, rules[0].ID)

	w = env.do(http.MethodGet, "/api/automation/logs?rule_id="+rule.ID, "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.AutomationLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogExecuted, logs[0].Status)

	w = env.do(http.MethodGet, "/api/automation/analytics", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failed_executions":1`)
}

func TestGetContactMessages(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	require.NoError(t, env.messages.Create(ctx, &models.Message{UserID: "u-1", ContactID: "c-1",
		Direction: models.DirectionIncoming, Type: models.MessageText, Content: "hi", Status: models.MessageStatusReceived}))

	w := env.do(http.MethodGet, "/api/automation/contacts/c-1/messages", "u-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	w = env.do(http.MethodGet, "/api/automation/contacts/c-1/messages", "u-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	msgs = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Empty(t, msgs)
}
