package repository

import (
	"context"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, media *models.MediaLibrary) error {
	return apperrors.NewPersistence("create media", r.db.WithContext(ctx).Create(media).Error)
}

// FindByID returns the media item only when userID owns it. Items of other
// users are reported exactly like missing ones.
func (r *MediaRepository) FindByID(ctx context.Context, userID, id string) (*models.MediaLibrary, error) {
	var media models.MediaLibrary
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&media).Error
	if err != nil {
		return nil, translate("find media", "media", id, err)
	}
	return &media, nil
}
