package repository

import (
	"errors"

	"chatflow/internal/apperrors"

	"gorm.io/gorm"
)

// translate maps gorm errors onto the application error taxonomy.
func translate(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(entity, id)
	}
	return apperrors.NewPersistence(op, err)
}
