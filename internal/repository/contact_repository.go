package repository

import (
	"context"
	"errors"
	"time"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

// maxUpdateAttempts bounds optimistic-concurrency retries on contacts.
const maxUpdateAttempts = 5

// ErrStaleContact is returned when every optimistic update attempt lost the
// race against a concurrent writer.
var ErrStaleContact = errors.New("contact modified concurrently")

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	return apperrors.NewPersistence("create contact", r.db.WithContext(ctx).Create(contact).Error)
}

func (r *ContactRepository) FindByID(ctx context.Context, userID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&contact).Error
	if err != nil {
		return nil, translate("find contact", "contact", id, err)
	}
	return &contact, nil
}

func (r *ContactRepository) FindByPhone(ctx context.Context, userID, phone string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).Where("user_id = ? AND phone = ?", userID, phone).First(&contact).Error
	if err != nil {
		return nil, translate("find contact", "contact", phone, err)
	}
	return &contact, nil
}

// Update runs a read-modify-write on the contact guarded by its version.
// mutate sees a fresh copy on every attempt; an error from it aborts.
func (r *ContactRepository) Update(ctx context.Context, userID, id string, mutate func(*models.Contact) error) (*models.Contact, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		contact, err := r.FindByID(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(contact); err != nil {
			return nil, err
		}

		ok, err := r.compareAndSwap(ctx, contact)
		if err != nil {
			return nil, err
		}
		if ok {
			return contact, nil
		}
	}
	return nil, apperrors.NewPersistence("update contact", ErrStaleContact)
}

func (r *ContactRepository) compareAndSwap(ctx context.Context, contact *models.Contact) (bool, error) {
	expected := contact.Version
	contact.Version = expected + 1
	res := r.db.WithContext(ctx).
		Model(contact).
		Where("version = ?", expected).
		Select("name", "email", "notes", "tags", "custom_fields", "is_new_contact",
			"message_count", "last_message_at", "version", "updated_at").
		Updates(contact)
	if res.Error != nil {
		contact.Version = expected
		return false, apperrors.NewPersistence("update contact", res.Error)
	}
	if res.RowsAffected == 0 {
		contact.Version = expected
		return false, nil
	}
	return true, nil
}

// RecordIncoming registers an inbound message from phone. The first message
// creates the contact as new; later ones clear the new flag and bump the
// counter. The returned snapshot carries the counters after this message but
// the previous LastMessageAt, so triggers can see how long the contact was
// silent before writing.
func (r *ContactRepository) RecordIncoming(ctx context.Context, userID, phone, name string, at time.Time) (*models.Contact, error) {
	existing, err := r.FindByPhone(ctx, userID, phone)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}

	if existing == nil {
		contact := &models.Contact{
			UserID:        userID,
			Phone:         phone,
			Name:          name,
			IsNewContact:  true,
			MessageCount:  1,
			LastMessageAt: &at,
		}
		if err := r.Create(ctx, contact); err == nil {
			snapshot := *contact
			snapshot.LastMessageAt = nil
			return &snapshot, nil
		}
		// Lost a create race; fall through to the update path.
		existing, err = r.FindByPhone(ctx, userID, phone)
		if err != nil {
			return nil, err
		}
	}

	var previous *time.Time
	updated, err := r.Update(ctx, userID, existing.ID, func(c *models.Contact) error {
		previous = c.LastMessageAt
		if c.Name == "" {
			c.Name = name
		}
		c.IsNewContact = false
		c.MessageCount++
		c.LastMessageAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	snapshot := *updated
	snapshot.LastMessageAt = previous
	return &snapshot, nil
}
