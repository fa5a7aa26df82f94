package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer reads audit events written by KafkaSink and persists them to a Sink
// (the Postgres audit repository in the worker). Offsets are committed only after a
// successful write, so a crash redelivers rather than drops.
type Consumer struct {
	reader     MessageReader
	sink       Sink
	log        *zap.Logger
	maxTries   uint
	retryDelay time.Duration
}

// NewConsumer returns a Consumer. log may be nil.
func NewConsumer(reader MessageReader, sink Sink, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: reader, sink: sink, log: log, maxTries: 5, retryDelay: time.Second}
}

// NewKafkaReader returns a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
}

// Run consumes until ctx is done (returning nil) or an event cannot be persisted after
// retries (returning the error, offset uncommitted).
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("audit: kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("audit: commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil || e.ID == "" || e.Operation == "" {
		// Undecodable messages are committed and skipped.
		c.log.Warn("audit: dropping malformed event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.sink.Emit(ctx, e)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return fmt.Errorf("audit: persist event %s: %w", e.ID, err)
	}
	return nil
}
