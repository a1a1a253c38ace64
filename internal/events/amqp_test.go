package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"lessonflow/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked []uint64
	err   error
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return f.err
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error { return nil }

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func TestNextAcksAndReturnsBody(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(`{"videoId":"v1"}`)}

	source := NewAMQPSource(deliveries)
	raw, err := source.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, `{"videoId":"v1"}`, raw)
	assert.Equal(t, []uint64{7}, ack.acked)
}

func TestNextReportsAckFailure(t *testing.T) {
	ack := &fakeAcknowledger{err: amqp.ErrClosed}
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{}`)}

	_, err := NewAMQPSource(deliveries).Next(context.Background())
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestNextStopsOnContextAndClose(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	source := NewAMQPSource(deliveries)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := source.Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(deliveries)
	_, err = source.Next(context.Background())
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestPublishWithoutChannel(t *testing.T) {
	source := NewAMQPSource(nil)
	err := source.PublishUpload(context.Background(), model.UploadEvent{VideoID: "v1", VideoPath: "/a.mp4"})
	assert.ErrorIs(t, err, ErrSourceClosed)
	assert.NoError(t, source.Close())
}
