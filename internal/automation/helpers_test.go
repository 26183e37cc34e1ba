package automation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"chatflow/internal/models"
	"chatflow/internal/repository"
	pkgmodels "chatflow/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db        *gorm.DB
	stores    Stores
	rules     *repository.RuleRepository
	logs      *repository.LogRepository
	media     *repository.MediaRepository
	contacts  *repository.ContactRepository
	scheduled *repository.ScheduledMessageRepository
	messages  *repository.MessageRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	env := &testEnv{
		db:        db,
		rules:     repository.NewRuleRepository(db),
		logs:      repository.NewLogRepository(db),
		media:     repository.NewMediaRepository(db),
		contacts:  repository.NewContactRepository(db),
		scheduled: repository.NewScheduledMessageRepository(db),
		messages:  repository.NewMessageRepository(db),
	}
	env.stores = Stores{
		Rules:     env.rules,
		Logs:      env.logs,
		Messages:  env.messages,
		Media:     env.media,
		Contacts:  env.contacts,
		Scheduled: env.scheduled,
	}
	return env
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fixedClock(at time.Time) Option {
	return WithClock(func() time.Time { return at })
}

func (env *testEnv) contact(t *testing.T, userID, phone string) *models.Contact {
	t.Helper()
	c := &models.Contact{UserID: userID, Phone: phone, Name: "Ana", MessageCount: 1, IsNewContact: true}
	require.NoError(t, env.contacts.Create(context.Background(), c))
	return c
}

func (env *testEnv) rule(t *testing.T, r *models.AutomationRule) *models.AutomationRule {
	t.Helper()
	if r.UserID == "" {
		r.UserID = "u1"
	}
	r.IsActive = true
	require.NoError(t, env.rules.Create(context.Background(), r))
	// created_at breaks priority ties, keep them distinct
	time.Sleep(2 * time.Millisecond)
	return r
}

func (env *testEnv) outgoing(t *testing.T, userID, contactID string) []models.Message {
	t.Helper()
	msgs, err := env.messages.ListByContact(context.Background(), userID, contactID)
	require.NoError(t, err)
	return msgs
}

func (env *testEnv) ruleLogs(t *testing.T, userID, ruleID string) []models.AutomationLog {
	t.Helper()
	logs, err := env.logs.ListByRule(context.Background(), userID, ruleID, 0)
	require.NoError(t, err)
	return logs
}

func sendAction(content string) models.Action {
	return models.Action{Type: models.ActionSendMessage, Data: map[string]interface{}{"content": content}}
}

func keywordRule(name string, priority int, actions []models.Action, keywords ...string) *models.AutomationRule {
	return &models.AutomationRule{
		Name:              name,
		TriggerType:       models.TriggerKeyword,
		TriggerConditions: models.TriggerConditions{Keywords: keywords},
		Actions:           actions,
		Priority:          priority,
	}
}

// fakeDispatcher records deliveries and fails for phones listed in failFor.
type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []pkgmodels.OutboundMessage
	failFor map[string]bool
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[msg.To] {
		return pkgmodels.DeliveryResult{}, errors.New("whatsapp unavailable")
	}
	d.sent = append(d.sent, msg)
	return pkgmodels.DeliveryResult{ExternalID: "wamid." + msg.MessageID}, nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// panickingDispatcher panics on content "boom" and delivers everything else.
type panickingDispatcher struct {
	fakeDispatcher
}

func (d *panickingDispatcher) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	if msg.Content == "boom" {
		panic("transport exploded")
	}
	return d.fakeDispatcher.Dispatch(ctx, msg)
}

// cancellingDispatcher cancels the run's context and fails, like a send cut
// short by shutdown.
type cancellingDispatcher struct {
	cancel context.CancelFunc
}

func (d cancellingDispatcher) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	d.cancel()
	return pkgmodels.DeliveryResult{}, errors.New("whatsapp unreachable")
}

type fakeToggle struct {
	enabled bool
	err     error
}

func (f fakeToggle) IsEnabled(ctx context.Context, userID string) (bool, error) {
	return f.enabled, f.err
}

type countingRecorder struct {
	mu      sync.Mutex
	rules   map[models.LogStatus]int
	actions map[models.ActionType]int
	sched   map[models.ScheduledStatus]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		rules:   map[models.LogStatus]int{},
		actions: map[models.ActionType]int{},
		sched:   map[models.ScheduledStatus]int{},
	}
}

func (r *countingRecorder) RuleExecuted(_ models.TriggerType, status models.LogStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[status]++
}

func (r *countingRecorder) ActionExecuted(action models.ActionType, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[action]++
}

func (r *countingRecorder) ScheduledProcessed(status models.ScheduledStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sched[status]++
}
