package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Sender performs the actual transport delivery, e.g. the WhatsApp client.
type Sender interface {
	Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error)
}

// StatusUpdater records delivery outcomes on the message record.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status, externalID string) error
}

// Worker consumes the outbound queue and delivers each message.
type Worker struct {
	sender   Sender
	statuses StatusUpdater
	logger   *logrus.Logger
}

func NewWorker(sender Sender, statuses StatusUpdater, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{sender: sender, statuses: statuses, logger: logger}
}

// Run consumes queue one message at a time until ctx is cancelled or the
// channel closes.
func (w *Worker) Run(ctx context.Context, channel *amqp.Channel, queue string) error {
	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	w.logger.WithField("queue", queue).Info("Outbound worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle delivers one queued message. Undecodable bodies are dropped. A
// failed send is requeued once; a second failure marks the record failed.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	var msg pkgmodels.OutboundMessage
	err := json.Unmarshal(d.Body, &msg)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		w.logger.WithError(err).Error("Dropping undecodable outbound message")
		w.settle(d.Nack(false, false), w.logger.WithField("delivery_tag", d.DeliveryTag))
		return
	}
	logger := w.logger.WithFields(logrus.Fields{"message_id": msg.MessageID, "user_id": msg.UserID})

	res, err := w.sender.Dispatch(ctx, msg)
	if err != nil {
		if !d.Redelivered {
			logger.WithError(err).Warn("Outbound delivery failed, requeueing")
			w.settle(d.Nack(false, true), logger)
			return
		}
		logger.WithError(err).Error("Outbound delivery failed permanently")
		if uerr := w.statuses.UpdateStatus(ctx, msg.MessageID, models.MessageStatusFailed, ""); uerr != nil {
			logger.WithError(uerr).Error("Failed to mark message as failed")
		}
		w.settle(d.Nack(false, false), logger)
		return
	}

	if err := w.statuses.UpdateStatus(ctx, msg.MessageID, models.MessageStatusSent, res.ExternalID); err != nil {
		logger.WithError(err).Warn("Failed to store delivery result")
	}
	w.settle(d.Ack(false), logger)
}

// settle logs a failed ack or nack; the broker redelivers on its own once
// the channel closes.
func (w *Worker) settle(err error, logger *logrus.Entry) {
	if err != nil {
		logger.WithError(err).Error("Failed to acknowledge delivery")
	}
}
