package repository

import (
	"context"
	"time"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return apperrors.NewPersistence("create message", r.db.WithContext(ctx).Create(msg).Error)
}

// UpdateStatus records a delivery outcome. An empty externalID leaves the
// stored one untouched.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id, status, externalID string) error {
	fields := map[string]interface{}{"status": status}
	if externalID != "" {
		fields["external_id"] = externalID
	}
	if status == models.MessageStatusSent {
		fields["sent_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return apperrors.NewPersistence("update message status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("message", id)
	}
	return nil
}

// UpdateStatusByExternalID applies a WhatsApp status callback.
func (r *MessageRepository) UpdateStatusByExternalID(ctx context.Context, externalID, status string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("external_id = ?", externalID).
		Update("status", status).Error
	return apperrors.NewPersistence("update message status", err)
}

func (r *MessageRepository) ListByContact(ctx context.Context, userID, contactID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, apperrors.NewPersistence("list messages", err)
}
