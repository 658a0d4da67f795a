// Package cache wraps a provider.Source with a Redis read-through cache for
// the slow-moving entities: agendas, customers and quotations. Appointments
// and unavailable blocks always go to the source.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkbook/platform/services/scheduling-service/internal/metrics"
	"github.com/inkbook/platform/services/scheduling-service/internal/model"
	"github.com/inkbook/platform/services/scheduling-service/internal/provider"
)

type TTLs struct {
	Agenda    time.Duration
	Customer  time.Duration
	Quotation time.Duration
}

var DefaultTTLs = TTLs{
	Agenda:    60 * time.Second,
	Customer:  60 * time.Second,
	Quotation: 15 * time.Second,
}

const scanBatch = 200

// Source is a provider.Source whose cached lookups degrade to the inner
// source when Redis misbehaves.
type Source struct {
	provider.Source
	rdb    *redis.Client
	ttl    TTLs
	prefix string
	logger *slog.Logger
}

var _ provider.Source = (*Source)(nil)

func New(inner provider.Source, rdb *redis.Client, ttl TTLs, prefix string, logger *slog.Logger) *Source {
	if ttl.Agenda <= 0 {
		ttl.Agenda = DefaultTTLs.Agenda
	}
	if ttl.Customer <= 0 {
		ttl.Customer = DefaultTTLs.Customer
	}
	if ttl.Quotation <= 0 {
		ttl.Quotation = DefaultTTLs.Quotation
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "scheduling"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{Source: inner, rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (s *Source) agendaKey(artistID string) string {
	return s.prefix + ":agenda:" + artistID
}

func (s *Source) customerKey(id string) string {
	return s.prefix + ":customer:" + id
}

func (s *Source) quotationsKey(f provider.QuotationFilter) string {
	statuses := make([]string, 0, len(f.Statuses))
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}
	return s.prefix + ":quotations:" + f.ArtistID + ":" + string(f.Type) + ":" + strings.Join(statuses, ",")
}

func (s *Source) openQuotationsKey(artistID string, from, to time.Time) string {
	return s.prefix + ":open-quotations:" + artistID + ":" +
		strconv.FormatInt(from.Unix(), 10) + "-" + strconv.FormatInt(to.Unix(), 10)
}

type agendaEntry struct {
	Agenda model.Agenda `json:"agenda"`
	Found  bool         `json:"found"`
}

// FindAgenda caches absence too, so unknown artists do not hit the database
// on every request.
func (s *Source) FindAgenda(ctx context.Context, artistID string) (model.Agenda, bool, error) {
	entry, err := readThrough(ctx, s, "agenda", s.agendaKey(artistID), s.ttl.Agenda, func() (agendaEntry, error) {
		a, ok, err := s.Source.FindAgenda(ctx, artistID)
		return agendaEntry{Agenda: a, Found: ok}, err
	})
	if err != nil {
		return model.Agenda{}, false, err
	}
	return entry.Agenda, entry.Found, nil
}

func (s *Source) FindQuotations(ctx context.Context, filter provider.QuotationFilter) ([]model.Quotation, error) {
	if filter.ArtistID == "" {
		return s.Source.FindQuotations(ctx, filter)
	}
	return readThrough(ctx, s, "quotations", s.quotationsKey(filter), s.ttl.Quotation, func() ([]model.Quotation, error) {
		return s.Source.FindQuotations(ctx, filter)
	})
}

func (s *Source) FindOpenQuotationsForArtist(ctx context.Context, artistID string, from, to time.Time) ([]model.Quotation, error) {
	return readThrough(ctx, s, "open_quotations", s.openQuotationsKey(artistID, from, to), s.ttl.Quotation, func() ([]model.Quotation, error) {
		return s.Source.FindOpenQuotationsForArtist(ctx, artistID, from, to)
	})
}

// FindCustomers caches customers one key per id and only asks the source for
// the ones missing.
func (s *Source) FindCustomers(ctx context.Context, ids []string) ([]model.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.customerKey(id)
	}

	found := map[string]model.Customer{}
	missing := ids
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		s.fault("customer", "mget", err)
	} else {
		missing = nil
		for i, v := range vals {
			raw, ok := v.(string)
			var c model.Customer
			if !ok || json.Unmarshal([]byte(raw), &c) != nil {
				missing = append(missing, ids[i])
				continue
			}
			found[c.ID] = c
		}
		metrics.CacheRequests.WithLabelValues("customer", "hit").Add(float64(len(found)))
		metrics.CacheRequests.WithLabelValues("customer", "miss").Add(float64(len(missing)))
	}

	if len(missing) > 0 {
		loaded, err := s.Source.FindCustomers(ctx, missing)
		if err != nil {
			return nil, err
		}
		pipe := s.rdb.Pipeline()
		for _, c := range loaded {
			found[c.ID] = c
			if raw, err := json.Marshal(c); err == nil {
				pipe.Set(ctx, s.customerKey(c.ID), raw, s.ttl.Customer)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			s.fault("customer", "set", err)
		}
	}

	out := make([]model.Customer, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			out = append(out, c)
			delete(found, id)
		}
	}
	return out, nil
}

// InvalidateArtist drops the artist's agenda and every cached quotation list.
func (s *Source) InvalidateArtist(ctx context.Context, artistID string) error {
	if artistID == "" {
		return errors.New("artist id is required")
	}
	keys := []string{s.agendaKey(artistID)}
	for _, pattern := range []string{
		s.prefix + ":quotations:" + artistID + ":*",
		s.prefix + ":open-quotations:" + artistID + ":*",
	} {
		matched, err := s.scan(ctx, pattern)
		if err != nil {
			return err
		}
		keys = append(keys, matched...)
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Source) InvalidateCustomer(ctx context.Context, customerID string) error {
	if customerID == "" {
		return errors.New("customer id is required")
	}
	return s.rdb.Del(ctx, s.customerKey(customerID)).Err()
}

func (s *Source) scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *Source) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return s.rdb.Ping(ctx).Err()
	}
}

func (s *Source) fault(entity, op string, err error) {
	metrics.CacheRequests.WithLabelValues(entity, "error").Inc()
	s.logger.Warn("cache unavailable, reading through", "entity", entity, "op", op, "err", err)
}

func readThrough[T any](ctx context.Context, s *Source, entity, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jerr := json.Unmarshal(raw, &cached); jerr == nil {
			metrics.CacheRequests.WithLabelValues(entity, "hit").Inc()
			return cached, nil
		}
		metrics.CacheRequests.WithLabelValues(entity, "miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues(entity, "miss").Inc()
	default:
		s.fault(entity, "get", err)
	}

	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	if encoded, err := json.Marshal(value); err == nil {
		if err := s.rdb.Set(ctx, key, encoded, ttl).Err(); err != nil {
			s.fault(entity, "set", err)
		}
	}
	return value, nil
}
