package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// EventRunCompleted is the event-type header of run messages
const EventRunCompleted = "forecast.run.completed"

// messageWriter is the subset of *kafka.Writer used here
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes run events as JSON keyed by run id
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaNotifier creates a synchronous producer for topic
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		topic:  topic,
		logger: logger,
	}
}

// RunCompleted implements Notifier
func (n *KafkaNotifier) RunCompleted(ctx context.Context, event RunEvent) error {
	msg, err := runMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", n.topic, err)
	}
	n.logger.DebugContext(ctx, "run published",
		slog.String("topic", n.topic),
		slog.String("run_id", event.RunID))
	return nil
}

// Close implements Notifier
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func runMessage(event RunEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode run event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.RunID),
		Value: value,
		Time:  event.RunAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventRunCompleted)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}
