package repository

import (
	"context"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Create(ctx context.Context, log *models.AutomationLog) error {
	return apperrors.NewPersistence("create log", r.db.WithContext(ctx).Create(log).Error)
}

// Save persists the log's status, error and accumulated action results.
func (r *LogRepository) Save(ctx context.Context, log *models.AutomationLog) error {
	err := r.db.WithContext(ctx).
		Model(log).
		Select("status", "error_message", "action_results").
		Updates(log).Error
	return apperrors.NewPersistence("save log", err)
}

// ListByUser returns the user's most recent logs first. limit <= 0 means all.
func (r *LogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AutomationLog, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("executed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.AutomationLog
	return logs, apperrors.NewPersistence("list logs", q.Find(&logs).Error)
}

func (r *LogRepository) ListByRule(ctx context.Context, userID, ruleID string, limit int) ([]models.AutomationLog, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND automation_rule_id = ?", userID, ruleID).
		Order("executed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.AutomationLog
	return logs, apperrors.NewPersistence("list rule logs", q.Find(&logs).Error)
}

// StatsByStatus counts the user's logs per status.
func (r *LogRepository) StatsByStatus(ctx context.Context, userID string) (map[models.LogStatus]int64, error) {
	var rows []struct {
		Status models.LogStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.AutomationLog{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewPersistence("log stats", err)
	}
	stats := make(map[models.LogStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
