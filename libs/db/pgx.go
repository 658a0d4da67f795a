package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Pool struct {
	*pgxpool.Pool
}

// Options tunes the pool. Zero fields keep the defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// ReadOnly starts every connection in a read-only session.
	ReadOnly bool
}

var defaultOptions = Options{
	MaxConns:        10,
	MinConns:        1,
	MaxConnLifetime: 30 * time.Minute,
	MaxConnIdleTime: 5 * time.Minute,
}

func Open(ctx context.Context, databaseURL string, opts ...Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	o := defaultOptions
	if len(opts) > 0 {
		o = o.merge(opts[0])
	}
	cfg.MaxConns = o.MaxConns
	cfg.MinConns = o.MinConns
	cfg.MaxConnLifetime = o.MaxConnLifetime
	cfg.MaxConnIdleTime = o.MaxConnIdleTime
	if o.ReadOnly {
		cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

func (o Options) merge(override Options) Options {
	if override.MaxConns > 0 {
		o.MaxConns = override.MaxConns
	}
	if override.MinConns > 0 {
		o.MinConns = override.MinConns
	}
	if override.MaxConnLifetime > 0 {
		o.MaxConnLifetime = override.MaxConnLifetime
	}
	if override.MaxConnIdleTime > 0 {
		o.MaxConnIdleTime = override.MaxConnIdleTime
	}
	o.ReadOnly = override.ReadOnly
	return o
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}
