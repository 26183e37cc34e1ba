package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatflow/internal/config"
	"chatflow/internal/models"
	"chatflow/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type processed struct {
	msg     *models.Message
	contact *models.Contact
	userID  string
}

type chanProcessor chan processed

func (p chanProcessor) ProcessIncomingMessage(ctx context.Context, msg *models.Message, contact *models.Contact, userID string) {
	p <- processed{msg, contact, userID}
}

type fixture struct {
	router    *gin.Engine
	db        *gorm.DB
	processed chanProcessor
}

func newFixture(t *testing.T) *fixture {
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

	proc := make(chanProcessor, 4)
	h := NewHandler(&config.Config{VerifyToken: "secret"},
		repository.NewContactRepository(db), repository.NewMessageRepository(db), proc, quiet)

	r := gin.New()
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook/:userId", h.HandleMessage)
	return &fixture{router: r, db: db, processed: proc}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) next(t *testing.T) processed {
	t.Helper()
	select {
	case p := <-f.processed:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handed to the engine")
		return processed{}
	}
}

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "1", "changes": [{"field": "messages", "value": {
    "contacts": [{"profile": {"name": "Ana"}, "wa_id": "15550001"}],
    "messages": [{"from": "15550001", "id": "wamid.IN1", "timestamp": "1760000000", "type": "text", "text": {"body": "What is the price?"}}]
  }}]}]
}`

func TestVerifyWebhook(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/webhook", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessageStoresAndProcesses(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/webhook/u-1", textPayload)
	require.Equal(t, http.StatusOK, w.Code)

	p := f.next(t)
	assert.Equal(t, "u-1", p.userID)
	assert.Equal(t, "What is the price?", p.msg.Content)
	assert.Equal(t, models.DirectionIncoming, p.msg.Direction)
	assert.Equal(t, "wamid.IN1", p.msg.ExternalID)
	assert.True(t, p.contact.IsNewContact)
	assert.Equal(t, 1, p.contact.MessageCount)
	assert.Equal(t, "Ana", p.contact.Name)

	w = f.do(http.MethodPost, "/webhook/u-1", textPayload)
	require.Equal(t, http.StatusOK, w.Code)
	p = f.next(t)
	assert.False(t, p.contact.IsNewContact)
	assert.Equal(t, 2, p.contact.MessageCount)
	require.NotNil(t, p.contact.LastMessageAt)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Where("user_id = ?", "u-1").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestHandleMessageStatusCallback(t *testing.T) {
	f := newFixture(t)
	out := &models.Message{UserID: "u-1", ContactID: "c-1", Direction: models.DirectionOutgoing,
		Type: models.MessageText, Status: models.MessageStatusSent, ExternalID: "wamid.OUT"}
	require.NoError(t, f.db.Create(out).Error)

	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.OUT","status":"read"}]}}]}]}`
	w := f.do(http.MethodPost, "/webhook/u-1", body)
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.Message
	require.NoError(t, f.db.First(&stored, "id = ?", out.ID).Error)
	assert.Equal(t, "read", stored.Status)
}

func TestHandleMessageRejectsBadJSON(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/webhook/u-1", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
