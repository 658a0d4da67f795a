package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"github.com/inkbook/platform/services/scheduling-service/internal/metrics"
)

type recordingInvalidator struct {
	artists   []string
	customers []string
	err       error
}

func (r *recordingInvalidator) InvalidateArtist(_ context.Context, id string) error {
	r.artists = append(r.artists, id)
	return r.err
}

func (r *recordingInvalidator) InvalidateCustomer(_ context.Context, id string) error {
	r.customers = append(r.customers, id)
	return r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvalidationHandler_InvalidatesNamedKeys(t *testing.T) {
	inv := &recordingInvalidator{}
	h := InvalidationHandler(inv, discard())
	before := testutil.ToFloat64(metrics.Invalidations.WithLabelValues(TopicQuotationUpdated, "ok"))

	err := h(context.Background(), kafka.Message{
		Topic: TopicQuotationUpdated,
		Value: []byte(`{"artist_id":"a1","customer_id":"c1"}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(inv.artists) != 1 || inv.artists[0] != "a1" || len(inv.customers) != 1 || inv.customers[0] != "c1" {
		t.Fatalf("expected artist a1 and customer c1, got %v %v", inv.artists, inv.customers)
	}
	if got := testutil.ToFloat64(metrics.Invalidations.WithLabelValues(TopicQuotationUpdated, "ok")); got != before+1 {
		t.Fatalf("expected ok counter +1, got %v -> %v", before, got)
	}
}

func TestInvalidationHandler_ArtistOnly(t *testing.T) {
	inv := &recordingInvalidator{}
	h := InvalidationHandler(inv, discard())
	if err := h(context.Background(), kafka.Message{Topic: TopicAgendaUpdated, Value: []byte(`{"artist_id":"a1"}`)}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(inv.customers) != 0 {
		t.Fatalf("expected no customer invalidation, got %v", inv.customers)
	}
}

func TestInvalidationHandler_SkipsMalformed(t *testing.T) {
	inv := &recordingInvalidator{}
	h := InvalidationHandler(inv, discard())
	for _, body := range []string{`not json`, `{}`} {
		if err := h(context.Background(), kafka.Message{Topic: TopicCustomerUpdated, Value: []byte(body)}); err != nil {
			t.Fatalf("%q: malformed events must not fail the consumer, got %v", body, err)
		}
	}
	if len(inv.artists)+len(inv.customers) != 0 {
		t.Fatal("expected nothing invalidated")
	}
}

func TestInvalidationHandler_ReturnsCacheErrors(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	h := InvalidationHandler(inv, discard())
	err := h(context.Background(), kafka.Message{
		Topic: TopicQuotationUpdated,
		Value: []byte(`{"artist_id":"a1","customer_id":"c1"}`),
	})
	if err == nil || !strings.Contains(err.Error(), "artist a1") || !strings.Contains(err.Error(), "customer c1") {
		t.Fatalf("expected both failures joined, got %v", err)
	}
}

func TestConsumerHandle_RecordsHandlerErrors(t *testing.T) {
	called := false
	c := &Consumer{
		logger: discard(),
		handler: func(context.Context, kafka.Message) error {
			called = true
			return errors.New("boom")
		},
	}
	c.handle(context.Background(), kafka.Message{
		Topic:   TopicAgendaUpdated,
		Key:     []byte("evt-1"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("agenda.updated")}},
	})
	if !called {
		t.Fatal("expected handler to run")
	}
}
