package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TriggerType string

const (
	TriggerKeyword  TriggerType = "keyword"
	TriggerWelcome  TriggerType = "welcome"
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerKeyword, TriggerWelcome, TriggerSchedule, TriggerEvent:
		return true
	}
	return false
}

type ActionType string

const (
	ActionSendMessage     ActionType = "send_message"
	ActionSendMedia       ActionType = "send_media"
	ActionScheduleMessage ActionType = "schedule_message"
	ActionUpdateContact   ActionType = "update_contact"
	ActionAddTag          ActionType = "add_tag"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionSendMessage, ActionSendMedia, ActionScheduleMessage, ActionUpdateContact, ActionAddTag:
		return true
	}
	return false
}

// Recognised event trigger names.
const (
	EventFirstMessage  = "first_message"
	EventNoResponse24h = "no_response_24h"
)

type LogStatus string

const (
	LogExecuted LogStatus = "executed"
	LogFailed   LogStatus = "failed"
	LogSkipped  LogStatus = "skipped"
)

type ScheduledStatus string

const (
	ScheduledPending    ScheduledStatus = "pending"
	ScheduledProcessing ScheduledStatus = "processing"
	ScheduledSent       ScheduledStatus = "sent"
	ScheduledFailed     ScheduledStatus = "failed"
	ScheduledCancelled  ScheduledStatus = "cancelled"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageDocument:
		return true
	}
	return false
}

// MediaType is the subset of message types a library item can have.
type MediaType = MessageType

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

const (
	MessageStatusReceived = "received"
	MessageStatusSent     = "sent"
	MessageStatusFailed   = "failed"
)

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// AutomationRule pairs a trigger with an ordered list of actions.
type AutomationRule struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            string            `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ChatbotID         *string           `gorm:"type:varchar(36);index" json:"chatbot_id,omitempty"`
	Name              string            `gorm:"type:varchar(100);not null" json:"name"`
	Description       string            `gorm:"type:text" json:"description,omitempty"`
	TriggerType       TriggerType       `gorm:"type:varchar(20);not null" json:"trigger_type"`
	TriggerConditions TriggerConditions `gorm:"type:text" json:"trigger_conditions"`
	Actions           ActionList        `gorm:"type:text" json:"actions"`
	IsActive          bool              `gorm:"not null" json:"is_active"`
	Priority          int               `gorm:"not null;index" json:"priority"`
	TimeZone          string            `gorm:"type:varchar(64)" json:"time_zone,omitempty"` // IANA name, empty = process local
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (AutomationRule) TableName() string {
	return "automation_rules"
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// AutomationLog records one rule execution attempt.
type AutomationLog struct {
	ID               string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	AutomationRuleID string        `gorm:"type:varchar(36);not null;index" json:"automation_rule_id"`
	MessageID        *string       `gorm:"type:varchar(36)" json:"message_id,omitempty"`
	ContactID        string        `gorm:"type:varchar(36);not null;index" json:"contact_id"`
	TriggerType      TriggerType   `gorm:"type:varchar(50);not null" json:"trigger_type"`
	TriggerData      TriggerData   `gorm:"type:text" json:"trigger_data"`
	ActionResults    ActionResults `gorm:"type:text" json:"action_results"`
	Status           LogStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	ErrorMessage     string        `gorm:"type:text" json:"error_message,omitempty"`
	ExecutedAt       time.Time     `gorm:"index" json:"executed_at"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutomationLog) TableName() string {
	return "automation_logs"
}

func (l *AutomationLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now()
	}
	return nil
}

func (l *AutomationLog) AddActionResult(action Action, result ActionResult, at time.Time) {
	l.ActionResults = append(l.ActionResults, ActionResultEntry{
		Action:    action,
		Result:    result,
		Timestamp: at,
	})
}

func (l *AutomationLog) MarkAsFailed(msg string) {
	l.Status = LogFailed
	l.ErrorMessage = msg
}

// ScheduledMessage is a deferred send consumed by the scheduler.
type ScheduledMessage struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ChatbotID        *string         `gorm:"type:varchar(36)" json:"chatbot_id,omitempty"`
	ContactID        string          `gorm:"type:varchar(36);not null;index" json:"contact_id"`
	AutomationRuleID *string         `gorm:"type:varchar(36);index" json:"automation_rule_id,omitempty"`
	MessageType      MessageType     `gorm:"type:varchar(20);not null" json:"message_type"`
	Content          string          `gorm:"type:text;not null" json:"content"`
	MediaURL         *string         `gorm:"type:varchar(500)" json:"media_url,omitempty"`
	ScheduledAt      time.Time       `gorm:"not null;index" json:"scheduled_at"`
	Status           ScheduledStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage     string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (ScheduledMessage) TableName() string {
	return "scheduled_messages"
}

func (m *ScheduledMessage) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	if m.Status == "" {
		m.Status = ScheduledPending
	}
	if m.MessageType == "" {
		m.MessageType = MessageText
	}
	return nil
}

func (m *ScheduledMessage) IsOverdue(now time.Time) bool {
	return m.Status == ScheduledPending && m.ScheduledAt.Before(now)
}

// MediaLibrary is a user's reusable media item.
type MediaLibrary struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Name      string         `gorm:"type:varchar(100);not null" json:"name"`
	Type      MediaType      `gorm:"type:varchar(20);not null" json:"type"`
	FileURL   string         `gorm:"type:varchar(500);not null" json:"file_url"`
	FileSize  int64          `json:"file_size"`
	MimeType  string         `gorm:"type:varchar(100)" json:"mime_type"`
	Metadata  JSONMap        `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MediaLibrary) TableName() string {
	return "media_library"
}

func (m *MediaLibrary) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// Contact is a WhatsApp contact owned by one user. Version guards
// concurrent read-modify-write updates.
type Contact struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_contact_user_phone" json:"user_id"`
	Phone         string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_contact_user_phone" json:"phone"`
	Name          string     `gorm:"type:varchar(255)" json:"name"`
	Email         string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	Tags          StringSet  `gorm:"type:text" json:"tags"`
	CustomFields  JSONMap    `gorm:"type:text" json:"custom_fields,omitempty"`
	IsNewContact  bool       `json:"is_new_contact"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Version       int        `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}

// Message is an incoming or outgoing chat message record.
type Message struct {
	ID         string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string      `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ContactID  string      `gorm:"type:varchar(36);not null;index" json:"contact_id"`
	ChatbotID  *string     `gorm:"type:varchar(36)" json:"chatbot_id,omitempty"`
	Direction  string      `gorm:"type:varchar(10);not null" json:"direction"`
	Type       MessageType `gorm:"type:varchar(20);not null" json:"type"`
	Content    string      `gorm:"type:text" json:"content"`
	MediaURL   *string     `gorm:"type:varchar(500)" json:"media_url,omitempty"`
	Status     string      `gorm:"type:varchar(20)" json:"status"`
	ExternalID string      `gorm:"type:varchar(255);index" json:"external_id,omitempty"`
	SentAt     *time.Time  `json:"sent_at,omitempty"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// SystemSetting is a per-user key/value setting, e.g. the bot toggle.
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_setting_user_key" json:"user_id"`
	Key       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_setting_user_key" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&AutomationRule{},
		&AutomationLog{},
		&ScheduledMessage{},
		&MediaLibrary{},
		&Contact{},
		&Message{},
		&SystemSetting{},
	}
}
