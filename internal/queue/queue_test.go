package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"chatflow/internal/models"
	pkgmodels "chatflow/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestPublisherDispatch(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "outbound_messages")

	res, err := p.Dispatch(context.Background(), pkgmodels.OutboundMessage{MessageID: "m1", UserID: "u1", To: "+1", Type: "text", Content: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, "outbound_messages", ch.key)
	assert.Equal(t, "m1", ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded pkgmodels.OutboundMessage
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "hi", decoded.Content)

	_, err = p.Dispatch(context.Background(), pkgmodels.OutboundMessage{MessageID: "m2"})
	assert.Error(t, err, "recipient is required")

	ch.err = errors.New("channel closed")
	_, err = p.Dispatch(context.Background(), pkgmodels.OutboundMessage{MessageID: "m3", UserID: "u1", To: "+1"})
	assert.Error(t, err)
}

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
	err     error
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return a.err
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return a.err
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type stubSender struct {
	err error
}

func (s stubSender) Dispatch(ctx context.Context, msg pkgmodels.OutboundMessage) (pkgmodels.DeliveryResult, error) {
	if s.err != nil {
		return pkgmodels.DeliveryResult{}, s.err
	}
	return pkgmodels.DeliveryResult{ExternalID: "wamid.9"}, nil
}

type statusLog struct {
	id, status, externalID string
}

func (s *statusLog) UpdateStatus(ctx context.Context, id, status, externalID string) error {
	s.id, s.status, s.externalID = id, status, externalID
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func delivery(t *testing.T, ack *ackRecorder, redelivered bool) amqp.Delivery {
	body, err := json.Marshal(pkgmodels.OutboundMessage{MessageID: "m1", UserID: "u1", To: "+1", Type: "text", Content: "hi"})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestWorkerHandleSuccess(t *testing.T) {
	ack := &ackRecorder{}
	statuses := &statusLog{}
	NewWorker(stubSender{}, statuses, quietLogger()).Handle(context.Background(), delivery(t, ack, false))

	assert.True(t, ack.acked)
	assert.Equal(t, statusLog{"m1", models.MessageStatusSent, "wamid.9"}, *statuses)
}

func TestWorkerHandleRetriesOnceThenFails(t *testing.T) {
	w := NewWorker(stubSender{err: errors.New("429")}, &statusLog{}, quietLogger())

	ack := &ackRecorder{}
	w.Handle(context.Background(), delivery(t, ack, false))
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)

	statuses := &statusLog{}
	w = NewWorker(stubSender{err: errors.New("429")}, statuses, quietLogger())
	ack = &ackRecorder{}
	w.Handle(context.Background(), delivery(t, ack, true))
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Equal(t, models.MessageStatusFailed, statuses.status)
}

func TestWorkerDropsGarbage(t *testing.T) {
	ack := &ackRecorder{}
	NewWorker(stubSender{}, &statusLog{}, quietLogger()).
		Handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestWorkerLogsAcknowledgeFailures(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	ack := &ackRecorder{err: amqp.ErrClosed}
	NewWorker(stubSender{}, &statusLog{}, logger).Handle(context.Background(), delivery(t, ack, false))

	require.True(t, ack.acked)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Failed to acknowledge delivery", entry.Message)
	assert.Equal(t, amqp.ErrClosed, entry.Data[logrus.ErrorKey])
}
