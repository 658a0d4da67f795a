package cache

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/inkbook/platform/services/scheduling-service/internal/metrics"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider/memstore"
)

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		MaxRetries:   -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKeys(t *testing.T) {
	s := New(memstore.New(), nil, TTLs{}, "", nil)
	if got := s.agendaKey("a1"); got != "scheduling:agenda:a1" {
		t.Fatalf("expected default prefix, got %q", got)
	}
	if got := s.customerKey("c1"); got != "scheduling:customer:c1" {
		t.Fatalf("unexpected customer key %q", got)
	}
	got := s.quotationsKey(provider.QuotationFilter{
		ArtistID: "a1",
		Type:     model.QuotationDirect,
		Statuses: []model.QuotationStatus{model.QuotationPending, model.QuotationQuoted},
	})
	if got != "scheduling:quotations:a1:DIRECT:PENDING,QUOTED" {
		t.Fatalf("unexpected quotations key %q", got)
	}
	from := time.Unix(100, 0)
	if got := s.openQuotationsKey("a1", from, from.Add(time.Second)); got != "scheduling:open-quotations:a1:100-101" {
		t.Fatalf("unexpected open quotations key %q", got)
	}
	if !strings.HasPrefix(s.quotationsKey(provider.QuotationFilter{ArtistID: "a1"}), "scheduling:quotations:a1:") {
		t.Fatal("artist scan pattern must cover every quotation key")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(memstore.New(), nil, TTLs{Agenda: time.Minute * 5}, " custom ", nil)
	if s.ttl.Agenda != 5*time.Minute || s.ttl.Customer != DefaultTTLs.Customer || s.ttl.Quotation != DefaultTTLs.Quotation {
		t.Fatalf("unexpected ttls %+v", s.ttl)
	}
	if s.prefix != "custom" {
		t.Fatalf("expected trimmed prefix, got %q", s.prefix)
	}
}

func TestSource_DegradesWhenRedisIsDown(t *testing.T) {
	inner := memstore.New()
	inner.PutAgenda(model.Agenda{ID: "ag-1", ArtistID: "a1", WorkingDays: []string{"1"}})
	inner.PutCustomer(model.Customer{ID: "c1", FirstName: "Ana"})
	inner.PutCustomer(model.Customer{ID: "c2", FirstName: "Bo"})
	inner.AddQuotation(model.Quotation{ID: "q1", ArtistID: "a1", Type: model.QuotationDirect, Status: model.QuotationPending})

	s := New(inner, unreachable(t), DefaultTTLs, "test", quietLogger())
	ctx := context.Background()
	errorsBefore := testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("agenda", "error"))

	agenda, ok, err := s.FindAgenda(ctx, "a1")
	if err != nil || !ok || agenda.ID != "ag-1" {
		t.Fatalf("expected agenda from source, got %+v %v %v", agenda, ok, err)
	}
	if got := testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("agenda", "error")); got <= errorsBefore {
		t.Fatal("expected the redis fault to be counted")
	}

	customers, err := s.FindCustomers(ctx, []string{"c2", "missing", "c1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(customers) != 2 || customers[0].ID != "c2" || customers[1].ID != "c1" {
		t.Fatalf("expected customers in request order, got %+v", customers)
	}

	quotes, err := s.FindQuotations(ctx, provider.QuotationFilter{ArtistID: "a1"})
	if err != nil || len(quotes) != 1 {
		t.Fatalf("expected one quotation, got %d (%v)", len(quotes), err)
	}

	if inner.Calls("FindAgenda") != 1 || inner.Calls("FindCustomers") != 1 || inner.Calls("FindQuotations") != 1 {
		t.Fatal("expected every lookup to reach the source exactly once")
	}
}

func TestSource_PassesThroughUncachedLookups(t *testing.T) {
	inner := memstore.New()
	s := New(inner, unreachable(t), DefaultTTLs, "test", quietLogger())
	ctx := context.Background()

	if _, err := s.FindAppointments(ctx, provider.AppointmentFilter{AgendaID: "ag-1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := s.FindQuotations(ctx, provider.QuotationFilter{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if inner.Calls("FindAppointments") != 1 || inner.Calls("FindQuotations") != 1 {
		t.Fatal("expected pass-through calls to reach the source")
	}
	if got, err := s.FindCustomers(ctx, nil); err != nil || got != nil {
		t.Fatalf("expected nil for no ids, got %v %v", got, err)
	}
	if inner.Calls("FindCustomers") != 0 {
		t.Fatal("no ids must not reach the source")
	}
}

func TestInvalidate(t *testing.T) {
	s := New(memstore.New(), unreachable(t), DefaultTTLs, "test", quietLogger())
	ctx := context.Background()

	if err := s.InvalidateArtist(ctx, ""); err == nil {
		t.Fatal("expected error for empty artist id")
	}
	if err := s.InvalidateCustomer(ctx, ""); err == nil {
		t.Fatal("expected error for empty customer id")
	}
	if err := s.InvalidateArtist(ctx, "a1"); err == nil {
		t.Fatal("expected redis error to surface on invalidation")
	}
	if err := s.ReadyCheck()(ctx); err == nil {
		t.Fatal("expected ready check to fail against unreachable redis")
	}
}
