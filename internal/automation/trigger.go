package automation

import (
	"strings"
	"time"

	"chatflow/internal/models"
)

const noResponseWindow = 24 * time.Hour

// IsTriggered reports whether rule fires for msg from contact at now. It has
// no side effects. Unknown trigger types never fire.
func IsTriggered(rule *models.AutomationRule, msg *models.Message, contact *models.Contact, now time.Time) bool {
	switch rule.TriggerType {
	case models.TriggerKeyword:
		if msg == nil {
			return false
		}
		return matchKeywords(msg.Content, rule.TriggerConditions.Keywords)
	case models.TriggerWelcome:
		return contact != nil && contact.IsNewContact
	case models.TriggerSchedule:
		return inSchedule(rule, now)
	case models.TriggerEvent:
		return contact != nil && matchEvents(rule.TriggerConditions.Events, contact, now)
	default:
		return false
	}
}

// matchKeywords is a case-insensitive contains-any. Blank keywords are ignored.
func matchKeywords(content string, keywords []string) bool {
	content = strings.ToLower(content)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// inSchedule checks the day-of-week and the inclusive [start, end] window in
// the rule's zone, or process-local time when none is set. A window whose
// start is after its end never matches.
func inSchedule(rule *models.AutomationRule, now time.Time) bool {
	cond := rule.TriggerConditions
	if cond.Time == nil {
		return false
	}

	loc := time.Local
	if rule.TimeZone != "" {
		var err error
		loc, err = time.LoadLocation(rule.TimeZone)
		if err != nil {
			return false
		}
	}
	local := now.In(loc)

	today := int(local.Weekday())
	dayMatch := false
	for _, d := range cond.Days {
		if d == today {
			dayMatch = true
			break
		}
	}
	if !dayMatch {
		return false
	}

	start, err := models.ParseClock(cond.Time.Start)
	if err != nil {
		return false
	}
	end, err := models.ParseClock(cond.Time.End)
	if err != nil {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= start && minutes <= end
}

func matchEvents(events []string, contact *models.Contact, now time.Time) bool {
	for _, event := range events {
		switch event {
		case models.EventFirstMessage:
			if contact.MessageCount == 1 {
				return true
			}
		case models.EventNoResponse24h:
			if contact.LastMessageAt != nil && now.Sub(*contact.LastMessageAt) > noResponseWindow {
				return true
			}
		}
	}
	return false
}
