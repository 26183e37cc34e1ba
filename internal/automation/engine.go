package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatflow/internal/models"

	"github.com/sirupsen/logrus"
)

// RuleExecutionError is returned by ExecuteRule when an action failed and
// the failure has already been written to the rule's execution log.
type RuleExecutionError struct {
	RuleID string
	LogID  string
	Err    error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// Engine matches inbound messages against a user's rules and runs the first
// rule that fires.
type Engine struct {
	stores   Stores
	executor *Executor
	opts     options
}

func NewEngine(stores Stores, dispatcher Dispatcher, opts ...Option) *Engine {
	return &Engine{
		stores:   stores,
		executor: NewExecutor(stores, dispatcher, opts...),
		opts:     newOptions(opts),
	}
}

// ProcessIncomingMessage evaluates the user's active rules against msg in
// priority order and executes the first one that fires. A rule whose
// execution fails is logged and the next candidate is tried. Errors never
// reach the caller.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, msg *models.Message, contact *models.Contact, userID string) {
	if msg == nil || contact == nil {
		e.opts.logger.WithField("user_id", userID).Warn("Skipping automation for message without contact")
		return
	}
	logger := e.opts.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"contact_id": contact.ID,
	})
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Automation processing panicked: %v", r)
		}
	}()

	if e.opts.toggle != nil {
		enabled, err := e.opts.toggle.IsEnabled(ctx, userID)
		if err != nil {
			logger.WithError(err).Warn("Bot status lookup failed, assuming enabled")
		} else if !enabled {
			logger.Debug("Bot disabled, skipping automation")
			return
		}
	}

	rules, err := e.stores.Rules.FindActive(ctx, userID, msg.ChatbotID)
	if err != nil {
		logger.WithError(err).Error("Error fetching automation rules")
		return
	}
	if len(rules) == 0 {
		return
	}

	now := e.opts.now()
	for i := range rules {
		rule := &rules[i]
		ruleLogger := logger.WithField("rule_id", rule.ID)

		fired, err := e.tryRule(ctx, rule, msg, contact, userID, now, ruleLogger)
		if err == nil {
			if fired {
				return
			}
			continue
		}

		ruleLogger.WithError(err).Error("Automation rule failed, trying next rule")
		var logged *RuleExecutionError
		if !errors.As(err, &logged) {
			e.logFailure(ctx, rule, msg, contact, userID, err)
		}
	}
}

// tryRule evaluates and executes a single candidate. A panic anywhere in it
// is returned as an error so the remaining candidates still get their turn.
func (e *Engine) tryRule(ctx context.Context, rule *models.AutomationRule, msg *models.Message, contact *models.Contact, userID string, now time.Time, logger *logrus.Entry) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			fired, err = false, fmt.Errorf("rule panicked: %v", r)
		}
	}()

	if !IsTriggered(rule, msg, contact, now) {
		return false, nil
	}
	logger.Infof("Rule '%s' matched", rule.Name)

	if _, err := e.ExecuteRule(ctx, rule, msg, contact, userID); err != nil {
		return false, err
	}
	return true, nil
}

// ExecuteRule runs every action of rule in order. The log row is created as
// executed before the first action, gets one result per completed action and
// is saved at the end. The first failing action stops the rule, marks the log
// failed and is returned wrapped in a RuleExecutionError. Side effects of
// earlier actions are kept.
func (e *Engine) ExecuteRule(ctx context.Context, rule *models.AutomationRule, msg *models.Message, contact *models.Contact, userID string) (*models.AutomationLog, error) {
	entry := newLog(rule, msg, contact, userID, models.LogExecuted)
	entry.ExecutedAt = e.opts.now()
	if err := e.stores.Logs.Create(ctx, entry); err != nil {
		return nil, err
	}

	for _, action := range rule.Actions {
		result, err := e.runAction(ctx, action, contact, userID, rule)
		if err != nil {
			entry.MarkAsFailed(err.Error())
			e.opts.recorder.RuleExecuted(rule.TriggerType, models.LogFailed)
			if serr := e.stores.Logs.Save(ctx, entry); serr != nil {
				e.opts.logger.WithError(serr).WithField("log_id", entry.ID).Error("Failed to save failed automation log")
				return entry, err
			}
			return entry, &RuleExecutionError{RuleID: rule.ID, LogID: entry.ID, Err: err}
		}
		entry.AddActionResult(action, result, e.opts.now())
	}

	if err := e.stores.Logs.Save(ctx, entry); err != nil {
		return entry, err
	}
	e.opts.recorder.RuleExecuted(rule.TriggerType, models.LogExecuted)
	return entry, nil
}

// runAction executes one action, turning a panic into an ordinary action
// failure so the rule's log is still closed as failed.
func (e *Engine) runAction(ctx context.Context, action models.Action, contact *models.Contact, userID string, rule *models.AutomationRule) (result models.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", action.Type, r)
		}
	}()
	return e.executor.ExecuteAction(ctx, action, contact, userID, rule)
}

// logFailure records a rule failure that did not make it into a log of its
// own, e.g. the initial log insert itself failed.
func (e *Engine) logFailure(ctx context.Context, rule *models.AutomationRule, msg *models.Message, contact *models.Contact, userID string, cause error) {
	entry := newLog(rule, msg, contact, userID, models.LogFailed)
	entry.ErrorMessage = cause.Error()
	entry.ExecutedAt = e.opts.now()
	if err := e.stores.Logs.Create(ctx, entry); err != nil {
		e.opts.logger.WithError(err).WithField("rule_id", rule.ID).Error("Failed to write automation error log")
	}
}

func newLog(rule *models.AutomationRule, msg *models.Message, contact *models.Contact, userID string, status models.LogStatus) *models.AutomationLog {
	entry := &models.AutomationLog{
		UserID:           userID,
		AutomationRuleID: rule.ID,
		ContactID:        contact.ID,
		TriggerType:      rule.TriggerType,
		TriggerData:      models.TriggerData{ContactPhone: contact.Phone},
		Status:           status,
	}
	if msg != nil {
		entry.TriggerData.MessageContent = msg.Content
		if msg.ID != "" {
			id := msg.ID
			entry.MessageID = &id
		}
	}
	return entry
}
