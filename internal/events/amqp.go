package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lessonflow/internal/model"
	"lessonflow/internal/telemetry"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrSourceClosed = errors.New("upload event source closed")

// AMQPSource consumes upload events from a durable RabbitMQ queue. A delivery is
// acknowledged once it has been handed to the caller.
type AMQPSource struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

func DialAMQP(url, queue string) (*AMQPSource, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to connect to RabbitMQ", zap.Error(err))
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	telemetry.Logger.Info("Connected to RabbitMQ", zap.String("queue", q.Name))
	return &AMQPSource{conn: conn, ch: ch, queue: q.Name, deliveries: deliveries}, nil
}

// NewAMQPSource wraps an existing delivery stream with no connection of its own.
func NewAMQPSource(deliveries <-chan amqp.Delivery) *AMQPSource {
	return &AMQPSource{deliveries: deliveries}
}

func (s *AMQPSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case d, ok := <-s.deliveries:
		if !ok {
			return "", ErrSourceClosed
		}
		if err := d.Ack(false); err != nil {
			return "", fmt.Errorf("ack delivery %d: %w", d.DeliveryTag, err)
		}
		return string(d.Body), nil
	}
}

func (s *AMQPSource) PublishUpload(ctx context.Context, event model.UploadEvent) error {
	if s.ch == nil {
		return ErrSourceClosed
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = s.ch.PublishWithContext(ctx,
		"",
		s.queue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to publish upload event", zap.String("queue", s.queue), zap.Error(err))
		return err
	}
	return nil
}

func (s *AMQPSource) Close() error {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
