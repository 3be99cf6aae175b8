package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/ehrextract/pkg/common/config"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/common/retry"
)

const (
	handlerAttempts = 5
	handlerBackoff  = 200 * time.Millisecond
	fetchBackoff    = time.Second
)

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader   messageReader
	attempts int
	backoff  time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(cfg *config.Config, topic string, groupID string) *Consumer {
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, attempts: handlerAttempts, backoff: handlerBackoff}
}

// Consume runs until ctx is cancelled or the reader is closed. Messages are
// handled one at a time: a failing handler is retried on the same message
// until it succeeds or returns a retry.Permanent error, so no later offset
// is committed past an unprocessed record. Undecodable messages and
// permanent failures are committed and dropped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			if !sleep(ctx, fetchBackoff) {
				return ctx.Err()
			}
			continue
		}

		event, err := decodeMessage(message)
		if err != nil {
			logger.Log.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal event")
			c.commit(ctx, message)
			continue
		}

		if err := c.process(ctx, handler, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
				"offset":     message.Offset,
			}).Error("Dropping event after permanent failure")
		}

		c.commit(ctx, message)
	}
}

// process returns nil on success, the handler's error when it is
// permanent, or ctx.Err() once the context ends.
func (c *Consumer) process(ctx context.Context, handler EventHandler, event models.Event) error {
	for {
		permanent := false
		err := retry.Do(ctx, c.attempts, c.backoff, func() error {
			err := handler(ctx, event)
			permanent = retry.IsPermanent(err)
			return err
		})
		if err == nil {
			return nil
		}
		if permanent || ctx.Err() != nil {
			return err
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"attempts":   c.attempts,
		}).Warn("Event handler still failing, retrying")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func decodeMessage(message kafka.Message) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return models.Event{}, err
	}
	if event.Type == "" {
		for _, h := range message.Headers {
			if h.Key == "event-type" {
				event.Type = string(h.Value)
			}
		}
	}
	return event, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
