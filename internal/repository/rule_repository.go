package repository

import (
	"context"

	"chatflow/internal/apperrors"
	"chatflow/internal/models"

	"gorm.io/gorm"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create validates and stores a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *models.AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return apperrors.NewPersistence("create rule", r.db.WithContext(ctx).Create(rule).Error)
}

// Update validates and saves every field of an existing rule.
func (r *RuleRepository) Update(ctx context.Context, rule *models.AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.AutomationRule{}).
		Where("id = ? AND user_id = ?", rule.ID, rule.UserID).
		Select("name", "description", "chatbot_id", "trigger_type", "trigger_conditions",
			"actions", "is_active", "priority", "time_zone", "updated_at").
		Updates(rule)
	if res.Error != nil {
		return apperrors.NewPersistence("update rule", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("automation rule", rule.ID)
	}
	return nil
}

// FindByID returns a rule owned by userID.
func (r *RuleRepository) FindByID(ctx context.Context, userID, id string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rule).Error
	if err != nil {
		return nil, translate("find rule", "automation rule", id, err)
	}
	return &rule, nil
}

// FindActive lists the user's active rules in evaluation order: priority
// descending, then oldest first. A non-nil chatbotID narrows to that bot.
func (r *RuleRepository) FindActive(ctx context.Context, userID string, chatbotID *string) ([]models.AutomationRule, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true)
	if chatbotID != nil {
		q = q.Where("chatbot_id = ?", *chatbotID)
	}
	var rules []models.AutomationRule
	err := q.Order("priority DESC").Order("created_at ASC").Order("id ASC").Find(&rules).Error
	return rules, apperrors.NewPersistence("find active rules", err)
}

// FindByTriggerType lists active rules of one trigger type in evaluation order.
func (r *RuleRepository) FindByTriggerType(ctx context.Context, userID string, triggerType models.TriggerType) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND trigger_type = ? AND is_active = ?", userID, triggerType, true).
		Order("priority DESC").Order("created_at ASC").
		Find(&rules).Error
	return rules, apperrors.NewPersistence("find rules by trigger", err)
}

// ListByUser returns every non-deleted rule of the user, active or not.
func (r *RuleRepository) ListByUser(ctx context.Context, userID string) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("priority DESC").Order("created_at ASC").
		Find(&rules).Error
	return rules, apperrors.NewPersistence("list rules", err)
}

// Delete soft-deletes a rule; it stays retrievable with Unscoped.
func (r *RuleRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.AutomationRule{})
	if res.Error != nil {
		return apperrors.NewPersistence("delete rule", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("automation rule", id)
	}
	return nil
}
