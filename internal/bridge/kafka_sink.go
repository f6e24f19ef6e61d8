package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultOrdersTopic = "shop-orders"
	EventTypeSubmitted = "OrderSubmitted"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards submitted orders to the fulfillment topic, keyed by user id so one
// user's orders keep their order.
type KafkaSink struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaSink(topic string, log *zap.Logger, brokers ...string) *KafkaSink {
	if topic == "" {
		topic = DefaultOrdersTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: w, log: log}
}

func (s *KafkaSink) Send(ctx context.Context, userID string, data []byte) error {
	orderID := uuid.NewString()
	msg := kafka.Message{
		Key:   []byte(userID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeSubmitted)},
			{Key: "order_id", Value: []byte(orderID)},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.log.Info("order published", zap.String("order_id", orderID), zap.String("user_id", userID))
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink only logs orders. Used when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, userID string, data []byte) error {
	s.log.Info("order received",
		zap.String("order_id", uuid.NewString()),
		zap.String("user_id", userID),
		zap.ByteString("payload", data))
	return nil
}

func (s *LogSink) Close() error { return nil }
