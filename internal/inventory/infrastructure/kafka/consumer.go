package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-admission/internal/inventory/application"
	"github.com/dmehra2102/order-admission/internal/inventory/domain"
	"github.com/dmehra2102/order-admission/pkg/shutdown"
	"github.com/dmehra2102/order-admission/pkg/tracing"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Adjuster interface {
	ApplyAdjustment(ctx context.Context, adj domain.Adjustment) (domain.StockEntry, error)
}

// Consumer applies stock adjustments published on the adjustments topic.
type Consumer struct {
	log         *slog.Logger
	reader      messageReader
	svc         Adjuster
	idem        Deduper
	tracer      trace.Tracer
	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc Adjuster, idem Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, r, svc, idem)
}

func newConsumer(log *slog.Logger, r messageReader, svc Adjuster, idem Deduper) *Consumer {
	return &Consumer{
		log:         log,
		reader:      r,
		svc:         svc,
		idem:        idem,
		tracer:      otel.Tracer("inventory-consumer"),
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		for attempt := 1; ; attempt++ {
			err = c.handle(ctx, msg)
			if err == nil || attempt >= c.maxAttempts || ctx.Err() != nil {
				break
			}
			c.log.Warn("adjustment retry", "offset", msg.Offset, "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.log.Error("adjustment dropped after retries", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// handle returns an error only for failures worth retrying. Duplicates,
// malformed payloads and business rejections are logged and swallowed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeStockAdjustment",
		trace.WithAttributes(
			attribute.Int64("offset", msg.Offset),
			attribute.String("source", tracing.HeaderValue(msg.Headers, "source")),
		))
	defer span.End()

	var adj domain.Adjustment
	if err := json.Unmarshal(msg.Value, &adj); err != nil {
		c.log.Error("unmarshal failed", "key", key, "err", err)
		return nil
	}

	entry, err := c.svc.ApplyAdjustment(msgCtx, adj)
	switch {
	case err == nil:
		c.log.Info("stock adjustment processed", "sku", entry.SKU, "quantity", entry.Quantity)
		return nil
	case errors.Is(err, application.ErrTransientUnavailable):
		span.RecordError(err)
		// ctx may already be cancelled on shutdown; the claim must still go.
		fErr := shutdown.Drain(time.Second, func(ctx context.Context) error {
			return c.idem.Forget(ctx, key)
		})
		if fErr != nil {
			c.log.Error("release idempotency key failed", "key", key, "err", fErr)
		}
		return err
	default:
		c.log.Warn("stock adjustment rejected", "sku", adj.SKU, "delta", adj.Delta, "err", err)
		return nil
	}
}
