// Package consumer listens for change events from the booking services and
// drops the cache entries they make stale.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkbook/platform/libs/kafkax"
	"github.com/inkbook/platform/services/scheduling-service/internal/metrics"
)

const (
	TopicAgendaUpdated    = "agenda.updated.v1"
	TopicQuotationUpdated = "quotation.updated.v1"
	TopicCustomerUpdated  = "customer.updated.v1"
)

var DefaultTopics = []string{TopicAgendaUpdated, TopicQuotationUpdated, TopicCustomerUpdated}

// Invalidator is implemented by cache.Source.
type Invalidator interface {
	InvalidateArtist(ctx context.Context, artistID string) error
	InvalidateCustomer(ctx context.Context, customerID string) error
}

// ChangeEvent is the payload shared by every invalidation topic.
type ChangeEvent struct {
	ArtistID   string `json:"artist_id"`
	CustomerID string `json:"customer_id"`
}

var errEmptyEvent = errors.New("event carries neither artist_id nor customer_id")

type Handler func(ctx context.Context, msg kafka.Message) error

// InvalidationHandler decodes a ChangeEvent and invalidates what it names.
// Malformed events are logged and skipped; redis errors are returned.
func InvalidationHandler(inv Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			metrics.Invalidations.WithLabelValues(msg.Topic, "malformed").Inc()
			logger.Warn("invalidation event dropped", "topic", msg.Topic, "err", err)
			return nil
		}
		if ev.ArtistID == "" && ev.CustomerID == "" {
			metrics.Invalidations.WithLabelValues(msg.Topic, "malformed").Inc()
			logger.Warn("invalidation event dropped", "topic", msg.Topic, "err", errEmptyEvent)
			return nil
		}

		var errs []error
		if ev.ArtistID != "" {
			if err := inv.InvalidateArtist(ctx, ev.ArtistID); err != nil {
				errs = append(errs, fmt.Errorf("invalidate artist %s: %w", ev.ArtistID, err))
			}
		}
		if ev.CustomerID != "" {
			if err := inv.InvalidateCustomer(ctx, ev.CustomerID); err != nil {
				errs = append(errs, fmt.Errorf("invalidate customer %s: %w", ev.CustomerID, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			metrics.Invalidations.WithLabelValues(msg.Topic, "error").Inc()
			return err
		}
		metrics.Invalidations.WithLabelValues(msg.Topic, "ok").Inc()
		return nil
	}
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

type Consumer struct {
	reader  *kafka.Reader
	topic   string
	logger  *slog.Logger
	handler Handler
	backoff time.Duration
}

func New(logger *slog.Logger, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		topic:   cfg.Topic,
		logger:  logger,
		handler: handler,
		backoff: time.Second,
	}
}

// Run blocks until ctx is done. Cache invalidation is idempotent, so events
// are handled at least once without an inbox.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "topic", c.topic, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", append(meta.LogArgs(), "err", err)...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	c.logger.Debug("cache invalidated", meta.LogArgs()...)
}
