package repository

import (
	"context"
	"errors"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the stored value and whether it exists.
func (r *SettingRepository) Get(ctx context.Context, userID, key string) (string, bool, error) {
	var setting models.SystemSetting
	err := r.db.WithContext(ctx).Where("user_id = ? AND key = ?", userID, key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewPersistence("get setting", err)
	}
	return setting.Value, true, nil
}

// Set upserts a value.
func (r *SettingRepository) Set(ctx context.Context, userID, key, value string) error {
	setting := models.SystemSetting{UserID: userID, Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	return apperrors.NewPersistence("set setting", err)
}
