package webhook

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"chatflow/internal/config"
	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ContactRecorder upserts the sender of an incoming message.
type ContactRecorder interface {
	RecordIncoming(ctx context.Context, userID, phone, name string, at time.Time) (*models.Contact, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	UpdateStatusByExternalID(ctx context.Context, externalID, status string) error
}

// Processor runs the automation rules for a stored incoming message.
type Processor interface {
	ProcessIncomingMessage(ctx context.Context, msg *models.Message, contact *models.Contact, userID string)
}

type Handler struct {
	Config    *config.Config
	Contacts  ContactRecorder
	Messages  MessageStore
	Processor Processor
	Logger    *logrus.Logger
}

func NewHandler(cfg *config.Config, contacts ContactRecorder, messages MessageStore, processor Processor, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Config:    cfg,
		Contacts:  contacts,
		Messages:  messages,
		Processor: processor,
		Logger:    logger,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			h.Logger.Info("Webhook verified successfully")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleMessage ingests a WhatsApp webhook delivery for the user in the path.
// Every message is stored and handed to the automation engine in the
// background; status callbacks update the matching outgoing record.
func (h *Handler) HandleMessage(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	var payload pkgmodels.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Logger.WithError(err).Warn("Error binding webhook JSON")
		c.Status(http.StatusBadRequest)
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, ct := range change.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, message := range change.Value.Messages {
				h.ingest(ctx, userID, message, names[message.From])
			}
			for _, st := range change.Value.Statuses {
				if err := h.Messages.UpdateStatusByExternalID(ctx, st.ID, st.Status); err != nil {
					h.Logger.WithError(err).WithField("external_id", st.ID).Debug("Status callback for unknown message")
				}
			}
		}
	}

	// WhatsApp retries anything but 200, so storage errors are only logged.
	c.Status(http.StatusOK)
}

func (h *Handler) ingest(ctx context.Context, userID string, message pkgmodels.IncomingMessage, name string) {
	logger := h.Logger.WithFields(logrus.Fields{"user_id": userID, "from": message.From, "type": message.Type})
	at := parseTimestamp(message.Timestamp)

	contact, err := h.Contacts.RecordIncoming(ctx, userID, message.From, name, at)
	if err != nil {
		logger.WithError(err).Error("Error saving contact")
		return
	}

	msgType := models.MessageType(message.Type)
	if !msgType.Valid() {
		msgType = models.MessageText
	}
	msg := &models.Message{
		UserID:     userID,
		ContactID:  contact.ID,
		Direction:  models.DirectionIncoming,
		Type:       msgType,
		Content:    message.Content(),
		Status:     models.MessageStatusReceived,
		ExternalID: message.ID,
	}
	if err := h.Messages.Create(ctx, msg); err != nil {
		logger.WithError(err).Error("Error storing incoming message")
		return
	}
	logger.Info("Received message")

	if h.Processor != nil {
		go h.Processor.ProcessIncomingMessage(context.Background(), msg, contact, userID)
	}
}

func parseTimestamp(s string) time.Time {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}
