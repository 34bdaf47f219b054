// Package db opens the Postgres pool used by the save store.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "tycoon"

// ParseConfig applies the pool defaults unless the URL already sets
// pool_max_conns or pool_min_conns.
func ParseConfig(databaseURL string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	set := poolParams(databaseURL)
	if !set["pool_max_conns"] {
		cfg.MaxConns = 10
	}
	if !set["pool_min_conns"] {
		cfg.MinConns = 1
	}
	if !set["pool_max_conn_lifetime"] {
		cfg.MaxConnLifetime = 30 * time.Minute
	}
	if !set["pool_max_conn_idle_time"] {
		cfg.MaxConnIdleTime = 10 * time.Minute
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

// poolParams reports which pool_* settings a URL-style DSN carries.
// Keyword/value DSNs are parsed by pgx and left at its own defaults here.
func poolParams(databaseURL string) map[string]bool {
	out := map[string]bool{}
	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" {
		return out
	}
	for k := range u.Query() {
		out[k] = true
	}
	return out
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
