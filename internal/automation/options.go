package automation

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Stores bundles the persistence collaborators of the engine and scheduler.
type Stores struct {
	Rules     RuleStore
	Logs      LogStore
	Messages  MessageStore
	Media     MediaStore
	Contacts  ContactStore
	Scheduled ScheduledStore
}

type options struct {
	logger   *logrus.Logger
	recorder Recorder
	toggle   BotToggle
	now      func() time.Time
}

type Option func(*options)

func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithBotToggle gates ProcessIncomingMessage on the per-user bot switch.
func WithBotToggle(t BotToggle) Option {
	return func(o *options) { o.toggle = t }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   logrus.StandardLogger(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
