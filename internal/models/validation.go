package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chatflow/internal/apperrors"
)

// ParseClock parses an "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate checks a rule before it is persisted.
func (r *AutomationRule) Validate() error {
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Name)); n < 1 || n > 100 {
		return apperrors.NewValidation("name", "must be 1-100 characters")
	}
	if r.UserID == "" {
		return apperrors.NewValidation("user_id", "is required")
	}
	if !r.TriggerType.Valid() {
		return apperrors.NewValidation("trigger_type", "unknown trigger type %q", r.TriggerType)
	}
	if r.Priority < 0 {
		return apperrors.NewValidation("priority", "must be >= 0")
	}
	if r.TimeZone != "" {
		if _, err := time.LoadLocation(r.TimeZone); err != nil {
			return apperrors.NewValidation("time_zone", "unknown time zone %q", r.TimeZone)
		}
	}
	if err := r.validateConditions(); err != nil {
		return err
	}
	for i, a := range r.Actions {
		if !a.Type.Valid() {
			return apperrors.NewValidation(fmt.Sprintf("actions[%d].type", i), "unknown action type %q", a.Type)
		}
	}
	return nil
}

func (r *AutomationRule) validateConditions() error {
	c := r.TriggerConditions
	switch r.TriggerType {
	case TriggerKeyword:
		if len(c.Keywords) == 0 {
			return apperrors.NewValidation("trigger_conditions.keywords", "at least one keyword is required")
		}
		for i, kw := range c.Keywords {
			if strings.TrimSpace(kw) == "" {
				return apperrors.NewValidation(fmt.Sprintf("trigger_conditions.keywords[%d]", i), "must not be blank")
			}
		}
	case TriggerSchedule:
		if len(c.Days) == 0 {
			return apperrors.NewValidation("trigger_conditions.days", "at least one day is required")
		}
		for _, d := range c.Days {
			if d < 0 || d > 6 {
				return apperrors.NewValidation("trigger_conditions.days", "day %d out of range 0..6", d)
			}
		}
		if c.Time == nil {
			return apperrors.NewValidation("trigger_conditions.time", "is required")
		}
		if _, err := ParseClock(c.Time.Start); err != nil {
			return apperrors.NewValidation("trigger_conditions.time.start", "%v", err)
		}
		if _, err := ParseClock(c.Time.End); err != nil {
			return apperrors.NewValidation("trigger_conditions.time.end", "%v", err)
		}
	case TriggerEvent:
		if len(c.Events) == 0 {
			return apperrors.NewValidation("trigger_conditions.events", "at least one event is required")
		}
		for _, e := range c.Events {
			if e != EventFirstMessage && e != EventNoResponse24h {
				return apperrors.NewValidation("trigger_conditions.events", "unknown event %q", e)
			}
		}
	}
	return nil
}
