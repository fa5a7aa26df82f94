package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink writes audit events as JSON to a Kafka topic using segmentio/kafka-go.
// Messages are keyed by target user so one user's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink returns a sink for topic on brokers, or nil when brokers or topic is empty
// (audit to Kafka disabled). Call Close when shutting down.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

// Emit serializes e and writes it to the topic.
func (k *KafkaSink) Emit(ctx context.Context, e Event) error {
	if k == nil || k.writer == nil {
		return nil
	}
	msg, err := kafkaMessage(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer. Safe on a nil sink.
func (k *KafkaSink) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func kafkaMessage(e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.TargetUserID),
		Value: payload,
		Time:  e.OccurredAt,
	}, nil
}
