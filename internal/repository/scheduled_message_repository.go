package repository

import (
	"context"
	"time"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

type ScheduledMessageRepository struct {
	db *gorm.DB
}

func NewScheduledMessageRepository(db *gorm.DB) *ScheduledMessageRepository {
	return &ScheduledMessageRepository{db: db}
}

func (r *ScheduledMessageRepository) Create(ctx context.Context, msg *models.ScheduledMessage) error {
	return apperrors.NewPersistence("create scheduled message", r.db.WithContext(ctx).Create(msg).Error)
}

func (r *ScheduledMessageRepository) FindByID(ctx context.Context, userID, id string) (*models.ScheduledMessage, error) {
	var msg models.ScheduledMessage
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&msg).Error
	if err != nil {
		return nil, translate("find scheduled message", "scheduled message", id, err)
	}
	return &msg, nil
}

// FindDuePending returns pending rows due at or before now, earliest first,
// across all users.
func (r *ScheduledMessageRepository) FindDuePending(ctx context.Context, now time.Time) ([]models.ScheduledMessage, error) {
	var due []models.ScheduledMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.ScheduledPending, now).
		Order("scheduled_at ASC").
		Find(&due).Error
	return due, apperrors.NewPersistence("find due scheduled messages", err)
}

// Claim moves a row from pending to processing in one conditional update.
// It reports false when another worker, or a cancel, got there first.
func (r *ScheduledMessageRepository) Claim(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND status = ?", id, models.ScheduledPending).
		Update("status", models.ScheduledProcessing)
	if res.Error != nil {
		return false, apperrors.NewPersistence("claim scheduled message", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStale returns rows stuck in processing since before cutoff to
// pending, so a runner that died mid-send does not strand them.
func (r *ScheduledMessageRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("status = ? AND updated_at < ?", models.ScheduledProcessing, cutoff).
		Update("status", models.ScheduledPending)
	if res.Error != nil {
		return 0, apperrors.NewPersistence("release stale scheduled messages", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ScheduledMessageRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":  models.ScheduledSent,
		"sent_at": at,
	})
}

func (r *ScheduledMessageRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":        models.ScheduledFailed,
		"error_message": reason,
	})
}

// finish applies a terminal transition to a claimed row.
func (r *ScheduledMessageRepository) finish(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND status = ?", id, models.ScheduledProcessing).
		Updates(fields)
	if res.Error != nil {
		return apperrors.NewPersistence("finish scheduled message", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewConflict("scheduled message", id, "not processing")
	}
	return nil
}

// Cancel moves a pending row owned by userID to cancelled.
func (r *ScheduledMessageRepository) Cancel(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.ScheduledPending).
		Update("status", models.ScheduledCancelled)
	if res.Error != nil {
		return apperrors.NewPersistence("cancel scheduled message", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.FindByID(ctx, userID, id)
	if err != nil {
		return err
	}
	return apperrors.NewConflict("scheduled message", id, string(current.Status))
}

// FindByUser lists the user's scheduled messages, optionally filtered by
// status, soonest first.
func (r *ScheduledMessageRepository) FindByUser(ctx context.Context, userID string, status models.ScheduledStatus) ([]models.ScheduledMessage, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var msgs []models.ScheduledMessage
	return msgs, apperrors.NewPersistence("list scheduled messages", q.Order("scheduled_at ASC").Find(&msgs).Error)
}

func (r *ScheduledMessageRepository) FindByContact(ctx context.Context, userID, contactID string) ([]models.ScheduledMessage, error) {
	var msgs []models.ScheduledMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Order("scheduled_at ASC").
		Find(&msgs).Error
	return msgs, apperrors.NewPersistence("list contact scheduled messages", err)
}

// Stats counts the user's scheduled messages per status.
func (r *ScheduledMessageRepository) Stats(ctx context.Context, userID string) (map[models.ScheduledStatus]int64, error) {
	var rows []struct {
		Status models.ScheduledStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewPersistence("scheduled message stats", err)
	}
	stats := make(map[models.ScheduledStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
