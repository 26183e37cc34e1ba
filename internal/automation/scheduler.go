package automation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"chatflow/internal/models"

	"github.com/sirupsen/logrus"
)

var ErrSchedulerRunning = errors.New("scheduler already running")

// claimLease is how long a row may sit in processing before another run
// takes it back.
const claimLease = 10 * time.Minute

// RunStats summarises one pass over the due scheduled messages.
type RunStats struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Scheduler delivers scheduled messages once they are due.
type Scheduler struct {
	stores   Stores
	sender   sender
	interval time.Duration
	opts     options
	running  atomic.Bool
}

func NewScheduler(stores Stores, dispatcher Dispatcher, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	o := newOptions(opts)
	return &Scheduler{
		stores:   stores,
		sender:   sender{messages: stores.Messages, dispatcher: dispatcher, opts: o},
		interval: interval,
		opts:     o,
	}
}

// Start processes due messages immediately and then on every tick until ctx
// is cancelled. Only one loop may run per Scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer s.running.Store(false)

	s.opts.logger.WithField("interval", s.interval.String()).Info("Scheduled message processor started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.opts.logger.Info("Scheduled message processor stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	stats, err := s.RunOnce(ctx)
	if err != nil {
		s.opts.logger.WithError(err).Error("Error processing scheduled messages")
		return
	}
	if stats.Due > 0 {
		s.opts.logger.WithFields(logrus.Fields{
			"due":     stats.Due,
			"sent":    stats.Sent,
			"failed":  stats.Failed,
			"skipped": stats.Skipped,
		}).Info("Processed scheduled messages")
	}
}

// RunOnce processes every currently due message one at a time. Each row is
// claimed before sending so concurrent runners never deliver it twice, and a
// failing row does not stop the rest. Claims older than claimLease are
// released first. Only the due query can fail the run.
func (s *Scheduler) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if released, err := s.stores.Scheduled.ReleaseStale(ctx, s.opts.now().Add(-claimLease)); err != nil {
		s.opts.logger.WithError(err).Warn("Failed to release stale scheduled messages")
	} else if released > 0 {
		s.opts.logger.WithField("count", released).Warn("Released stale scheduled messages back to pending")
	}

	due, err := s.stores.Scheduled.FindDuePending(ctx, s.opts.now())
	if err != nil {
		return stats, err
	}
	stats.Due = len(due)

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		row := &due[i]
		logger := s.opts.logger.WithFields(logrus.Fields{
			"scheduled_message_id": row.ID,
			"user_id":              row.UserID,
			"contact_id":           row.ContactID,
		})

		claimed, err := s.stores.Scheduled.Claim(ctx, row.ID)
		if err != nil {
			logger.WithError(err).Error("Failed to claim scheduled message")
			stats.Skipped++
			continue
		}
		if !claimed {
			stats.Skipped++
			continue
		}

		err = s.send(ctx, row)
		// a claimed row must reach a terminal state even on shutdown
		finishCtx := context.WithoutCancel(ctx)
		if err != nil {
			logger.WithError(err).Error("Error sending scheduled message")
			if merr := s.stores.Scheduled.MarkFailed(finishCtx, row.ID, err.Error()); merr != nil {
				logger.WithError(merr).Error("Failed to mark scheduled message as failed")
			}
			stats.Failed++
			s.opts.recorder.ScheduledProcessed(models.ScheduledFailed)
			continue
		}

		if err := s.stores.Scheduled.MarkSent(finishCtx, row.ID, s.opts.now()); err != nil {
			logger.WithError(err).Error("Failed to mark scheduled message as sent")
		}
		stats.Sent++
		s.opts.recorder.ScheduledProcessed(models.ScheduledSent)
	}
	return stats, nil
}

func (s *Scheduler) send(ctx context.Context, row *models.ScheduledMessage) error {
	contact, err := s.stores.Contacts.FindByID(ctx, row.UserID, row.ContactID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		UserID:    row.UserID,
		ContactID: row.ContactID,
		ChatbotID: row.ChatbotID,
		Direction: models.DirectionOutgoing,
		Type:      row.MessageType,
		Content:   row.Content,
		MediaURL:  row.MediaURL,
	}
	caption := ""
	if row.MessageType != models.MessageText {
		caption = row.Content
	}
	return s.sender.deliver(ctx, msg, contact.Phone, caption)
}

// Cancel withdraws a pending scheduled message. Rows that already left
// pending are rejected with a ConflictError.
func (s *Scheduler) Cancel(ctx context.Context, userID, id string) error {
	return s.stores.Scheduled.Cancel(ctx, userID, id)
}
