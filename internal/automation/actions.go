package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"
)

type sendMessageData struct {
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
}

type sendMediaData struct {
	MediaID string `json:"media_id"`
	Caption string `json:"caption"`
}

type scheduleMessageData struct {
	Content     string             `json:"content"`
	ScheduledAt string             `json:"scheduled_at"`
	Delay       string             `json:"delay"`
	MessageType models.MessageType `json:"message_type"`
	MediaID     string             `json:"media_id"`
}

type addTagData struct {
	Tag string `json:"tag"`
}

// Fields update_contact writes to columns. Anything else lands in
// CustomFields; identity and bookkeeping columns are refused.
var (
	contactColumns  = map[string]bool{"name": true, "email": true, "notes": true, "is_new_contact": true}
	contactReserved = map[string]bool{
		"id": true, "user_id": true, "phone": true, "tags": true, "custom_fields": true,
		"message_count": true, "last_message_at": true, "version": true,
		"created_at": true, "updated_at": true,
	}
)

// Executor runs individual actions against a contact.
type Executor struct {
	stores Stores
	sender sender
	opts   options
}

func NewExecutor(stores Stores, dispatcher Dispatcher, opts ...Option) *Executor {
	o := newOptions(opts)
	return &Executor{
		stores: stores,
		sender: sender{messages: stores.Messages, dispatcher: dispatcher, opts: o},
		opts:   o,
	}
}

// ExecuteAction runs one action. Unknown kinds fail with a ValidationError.
func (x *Executor) ExecuteAction(ctx context.Context, action models.Action, contact *models.Contact, userID string, rule *models.AutomationRule) (models.ActionResult, error) {
	var (
		result models.ActionResult
		err    error
	)
	switch action.Type {
	case models.ActionSendMessage:
		result, err = x.sendMessage(ctx, action, contact, userID, rule)
	case models.ActionSendMedia:
		result, err = x.sendMedia(ctx, action, contact, userID, rule)
	case models.ActionScheduleMessage:
		result, err = x.scheduleMessage(ctx, action, contact, userID, rule)
	case models.ActionUpdateContact:
		result, err = x.updateContact(ctx, action, contact, userID)
	case models.ActionAddTag:
		result, err = x.addTag(ctx, action, contact, userID)
	default:
		return models.ActionResult{}, apperrors.NewValidation("type", "unknown action type %q", action.Type)
	}
	x.opts.recorder.ActionExecuted(action.Type, err == nil)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("%s: %w", action.Type, err)
	}
	return result, nil
}

func decodeData(action models.Action, dest interface{}) error {
	raw, err := json.Marshal(action.Data)
	if err != nil {
		return apperrors.NewValidation("data", "%v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return apperrors.NewValidation("data", "%v", err)
	}
	return nil
}

func chatbotOf(rule *models.AutomationRule) *string {
	if rule == nil {
		return nil
	}
	return rule.ChatbotID
}

// renderContent fills the {{contact_name}} and {{contact_phone}} placeholders.
func renderContent(content string, contact *models.Contact) string {
	name := contact.Name
	if name == "" {
		name = contact.Phone
	}
	content = strings.ReplaceAll(content, "{{contact_name}}", name)
	return strings.ReplaceAll(content, "{{contact_phone}}", contact.Phone)
}

func (x *Executor) sendMessage(ctx context.Context, action models.Action, contact *models.Contact, userID string, rule *models.AutomationRule) (models.ActionResult, error) {
	var data sendMessageData
	if err := decodeData(action, &data); err != nil {
		return models.ActionResult{}, err
	}
	if data.Content == "" {
		return models.ActionResult{}, apperrors.NewValidation("data.content", "is required")
	}
	if data.MessageType == "" {
		data.MessageType = models.MessageText
	}
	if !data.MessageType.Valid() {
		return models.ActionResult{}, apperrors.NewValidation("data.message_type", "unknown message type %q", data.MessageType)
	}

	content := renderContent(data.Content, contact)
	msg := &models.Message{
		UserID:    userID,
		ContactID: contact.ID,
		ChatbotID: chatbotOf(rule),
		Direction: models.DirectionOutgoing,
		Type:      data.MessageType,
		Content:   content,
	}
	if err := x.sender.deliver(ctx, msg, contact.Phone, ""); err != nil {
		return models.ActionResult{}, err
	}
	return models.ActionResult{Success: true, MessageID: msg.ID, Content: content}, nil
}

func (x *Executor) sendMedia(ctx context.Context, action models.Action, contact *models.Contact, userID string, rule *models.AutomationRule) (models.ActionResult, error) {
	var data sendMediaData
	if err := decodeData(action, &data); err != nil {
		return models.ActionResult{}, err
	}
	if data.MediaID == "" {
		return models.ActionResult{}, apperrors.NewValidation("data.media_id", "is required")
	}

	media, err := x.stores.Media.FindByID(ctx, userID, data.MediaID)
	if err != nil {
		return models.ActionResult{}, err
	}

	url := media.FileURL
	msg := &models.Message{
		UserID:    userID,
		ContactID: contact.ID,
		ChatbotID: chatbotOf(rule),
		Direction: models.DirectionOutgoing,
		Type:      media.Type,
		Content:   data.Caption,
		MediaURL:  &url,
	}
	if err := x.sender.deliver(ctx, msg, contact.Phone, data.Caption); err != nil {
		return models.ActionResult{}, err
	}
	return models.ActionResult{Success: true, MessageID: msg.ID, MediaType: media.Type, MediaURL: url}, nil
}

func (x *Executor) scheduleMessage(ctx context.Context, action models.Action, contact *models.Contact, userID string, rule *models.AutomationRule) (models.ActionResult, error) {
	var data scheduleMessageData
	if err := decodeData(action, &data); err != nil {
		return models.ActionResult{}, err
	}
	if data.Content == "" {
		return models.ActionResult{}, apperrors.NewValidation("data.content", "is required")
	}
	if data.MessageType == "" {
		data.MessageType = models.MessageText
	}
	if !data.MessageType.Valid() {
		return models.ActionResult{}, apperrors.NewValidation("data.message_type", "unknown message type %q", data.MessageType)
	}

	var at time.Time
	switch {
	case data.ScheduledAt != "":
		parsed, err := time.Parse(time.RFC3339, data.ScheduledAt)
		if err != nil {
			return models.ActionResult{}, apperrors.NewValidation("data.scheduled_at", "want RFC3339 timestamp: %v", err)
		}
		at = parsed
	case data.Delay != "":
		d, err := time.ParseDuration(data.Delay)
		if err != nil || d < 0 {
			return models.ActionResult{}, apperrors.NewValidation("data.delay", "invalid duration %q", data.Delay)
		}
		at = x.opts.now().Add(d)
	default:
		return models.ActionResult{}, apperrors.NewValidation("data.scheduled_at", "scheduled_at or delay is required")
	}

	// An unresolvable media reference is stored as no media, not an error.
	var mediaURL *string
	if data.MediaID != "" {
		media, err := x.stores.Media.FindByID(ctx, userID, data.MediaID)
		switch {
		case err == nil:
			mediaURL = &media.FileURL
		case apperrors.IsNotFound(err):
			x.opts.logger.WithField("media_id", data.MediaID).Warn("Scheduled message media not found, scheduling without media")
		default:
			return models.ActionResult{}, err
		}
	}

	var ruleID *string
	if rule != nil {
		ruleID = &rule.ID
	}
	scheduled := &models.ScheduledMessage{
		UserID:           userID,
		ChatbotID:        chatbotOf(rule),
		ContactID:        contact.ID,
		AutomationRuleID: ruleID,
		MessageType:      data.MessageType,
		Content:          renderContent(data.Content, contact),
		MediaURL:         mediaURL,
		ScheduledAt:      at,
		Status:           models.ScheduledPending,
	}
	if err := x.stores.Scheduled.Create(ctx, scheduled); err != nil {
		return models.ActionResult{}, err
	}
	return models.ActionResult{Success: true, ScheduledMessageID: scheduled.ID, ScheduledAt: &scheduled.ScheduledAt}, nil
}

func (x *Executor) updateContact(ctx context.Context, action models.Action, contact *models.Contact, userID string) (models.ActionResult, error) {
	if len(action.Data) == 0 {
		return models.ActionResult{}, apperrors.NewValidation("data", "no fields to update")
	}
	fields := make([]string, 0, len(action.Data))
	for key := range action.Data {
		if contactReserved[key] {
			return models.ActionResult{}, apperrors.NewValidation("data."+key, "field cannot be updated")
		}
		fields = append(fields, key)
	}
	sort.Strings(fields)

	updated, err := x.stores.Contacts.Update(ctx, userID, contact.ID, func(c *models.Contact) error {
		for _, key := range fields {
			if err := applyContactField(c, key, action.Data[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.ActionResult{}, err
	}
	*contact = *updated
	return models.ActionResult{Success: true, ContactID: contact.ID, UpdatedFields: fields}, nil
}

func applyContactField(c *models.Contact, key string, value interface{}) error {
	if !contactColumns[key] {
		if c.CustomFields == nil {
			c.CustomFields = models.JSONMap{}
		}
		c.CustomFields[key] = value
		return nil
	}
	if key == "is_new_contact" {
		b, ok := value.(bool)
		if !ok {
			return apperrors.NewValidation("data.is_new_contact", "must be a boolean")
		}
		c.IsNewContact = b
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return apperrors.NewValidation("data."+key, "must be a string")
	}
	switch key {
	case "name":
		c.Name = s
	case "email":
		c.Email = s
	case "notes":
		c.Notes = s
	}
	return nil
}

func (x *Executor) addTag(ctx context.Context, action models.Action, contact *models.Contact, userID string) (models.ActionResult, error) {
	var data addTagData
	if err := decodeData(action, &data); err != nil {
		return models.ActionResult{}, err
	}
	data.Tag = strings.TrimSpace(data.Tag)
	if data.Tag == "" {
		return models.ActionResult{}, apperrors.NewValidation("data.tag", "is required")
	}

	updated, err := x.stores.Contacts.Update(ctx, userID, contact.ID, func(c *models.Contact) error {
		c.Tags.Add(data.Tag)
		return nil
	})
	if err != nil {
		return models.ActionResult{}, err
	}
	*contact = *updated
	tags := append([]string(nil), contact.Tags...)
	return models.ActionResult{Success: true, Tag: data.Tag, Tags: tags}, nil
}

// sender stores outgoing message records and hands them to the dispatcher.
type sender struct {
	messages   MessageStore
	dispatcher Dispatcher
	opts       options
}

// deliver stores msg as sent and dispatches it. A dispatch failure flips the
// record to failed and surfaces as a TransportError.
func (s sender) deliver(ctx context.Context, msg *models.Message, phone, caption string) error {
	now := s.opts.now()
	msg.Status = models.MessageStatusSent
	msg.SentAt = &now
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	if s.dispatcher == nil {
		return nil
	}

	out := pkgmodels.OutboundMessage{
		MessageID: msg.ID,
		UserID:    msg.UserID,
		To:        phone,
		Type:      string(msg.Type),
		Content:   msg.Content,
		Caption:   caption,
	}
	if msg.MediaURL != nil {
		out.MediaURL = *msg.MediaURL
	}

	res, err := s.dispatch(ctx, out)
	// the outcome is recorded even when ctx was cancelled mid-send
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		msg.Status = models.MessageStatusFailed
		if uerr := s.messages.UpdateStatus(ctx, msg.ID, models.MessageStatusFailed, ""); uerr != nil {
			s.opts.logger.WithError(uerr).WithField("message_id", msg.ID).Error("Failed to mark message as failed")
		}
		return apperrors.NewTransport("dispatch", err)
	}
	if res.ExternalID != "" {
		msg.ExternalID = res.ExternalID
		if err := s.messages.UpdateStatus(ctx, msg.ID, models.MessageStatusSent, res.ExternalID); err != nil {
			s.opts.logger.WithError(err).WithField("message_id", msg.ID).Warn("Failed to store external message id")
		}
	}
	return nil
}

func (s sender) dispatch(ctx context.Context, out pkgmodels.OutboundMessage) (res pkgmodels.DeliveryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panicked: %v", r)
		}
	}()
	return s.dispatcher.Dispatch(ctx, out)
}
