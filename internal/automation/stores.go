package automation

import (
	"context"
	"time"

	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"
)

// RuleStore loads rules in evaluation order.
type RuleStore interface {
	FindActive(ctx context.Context, userID string, chatbotID *string) ([]models.AutomationRule, error)
}

type LogStore interface {
	Create(ctx context.Context, log *models.AutomationLog) error
	Save(ctx context.Context, log *models.AutomationLog) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	UpdateStatus(ctx context.Context, id, status, externalID string) error
}

// MediaStore resolves media items scoped to their owner. Items owned by
// someone else must surface as NotFound.
type MediaStore interface {
	FindByID(ctx context.Context, userID, id string) (*models.MediaLibrary, error)
}

type ContactStore interface {
	FindByID(ctx context.Context, userID, id string) (*models.Contact, error)
	Update(ctx context.Context, userID, id string, mutate func(*models.Contact) error) (*models.Contact, error)
}

type ScheduledStore interface {
	Create(ctx context.Context, msg *models.ScheduledMessage) error
	FindDuePending(ctx context.Context, now time.Time) ([]models.ScheduledMessage, error)
	Claim(ctx context.Context, id string) (bool, error)
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	Cancel(ctx context.Context, userID, id string) error
}

// Dispatcher hands an outgoing message record to the delivery transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error)
}

// BotToggle reports whether automation is enabled for a user.
type BotToggle interface {
	IsEnabled(ctx context.Context, userID string) (bool, error)
}

// Recorder receives execution outcomes for metrics.
type Recorder interface {
	RuleExecuted(trigger models.TriggerType, status models.LogStatus)
	ActionExecuted(action models.ActionType, success bool)
	ScheduledProcessed(status models.ScheduledStatus)
}

type nopRecorder struct{}

func (nopRecorder) RuleExecuted(models.TriggerType, models.LogStatus) {}
func (nopRecorder) ActionExecuted(models.ActionType, bool) {}
func (nopRecorder) ScheduledProcessed(models.ScheduledStatus) {}
