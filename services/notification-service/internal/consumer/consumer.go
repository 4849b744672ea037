// Package consumer reads one Kafka topic, drops redeliveries through the inbox and hands
// each new message to a handler inside a consume span.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/salonpanel/salonpanel/libs/kafkax"
	"github.com/salonpanel/salonpanel/libs/runtime"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Reader is the part of *kafka.Reader the consumer uses. Offsets are committed only after
// a message was handled or given up on, so a crash mid-handler redelivers it.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     Reader
	logger     *slog.Logger
	inbox      Inbox
	handler    Handler
	maxBackoff time.Duration

	// A failing message is retried in place up to maxAttempts times, waiting retryDelay
	// and then doubling, before it is logged as dropped and committed.
	maxAttempts int
	retryDelay  time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader Reader, handler Handler) *Consumer {
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       inbox,
		handler:     handler,
		maxBackoff:  30 * time.Second,
		maxAttempts: 5,
		retryDelay:  500 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Broker errors back off exponentially up to
// maxBackoff and reset after the next successful fetch.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		backoff = time.Second

		if !c.process(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

// process handles msg, retrying failures in place. It reports false when ctx ended before
// the message was settled; the offset then stays uncommitted and the message is redelivered.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt >= c.maxAttempts {
			meta := kafkax.ExtractEventMeta(msg)
			c.logger.Error("event dropped after retries",
				"event_id", meta.EventID,
				"event_type", meta.EventType,
				"attempts", attempt,
				"err", err,
			)
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	ctx = runtime.WithRequestID(kafkax.ExtractTraceContext(ctx, msg), meta.RequestID)
	ctx, span := otel.Tracer("kafka").Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
			attribute.String("business.id", meta.BusinessID),
		),
	)
	defer span.End()
	logger := runtime.Logger(ctx, c.logger).With("event_id", meta.EventID, "event_type", meta.EventType)

	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		logger.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return err
	}
	if !fresh {
		logger.Info("duplicate event ignored")
		return nil
	}

	if err := c.handler(ctx, msg); err != nil {
		logger.Error("event handler failed", "err", err)
		span.RecordError(err)
		if ferr := c.inbox.Forget(ctx, meta.EventID); ferr != nil {
			logger.Error("inbox forget failed", "err", ferr)
		}
		return err
	}
	return nil
}
