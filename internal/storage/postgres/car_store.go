// Package postgres provides Postgres-backed persistence for scraped cars.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vhrabko/autoria-scraper/internal/scrape"
	"github.com/vhrabko/autoria-scraper/internal/telemetry"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cars (
	id             SERIAL PRIMARY KEY,
	url            TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	price_usd      INTEGER NOT NULL DEFAULT 0,
	odometer       INTEGER NOT NULL DEFAULT 0,
	username       TEXT NOT NULL DEFAULT 'Unknown',
	phone_number   BIGINT,
	image_url      TEXT,
	images_count   INTEGER NOT NULL DEFAULT 0,
	car_number     TEXT,
	car_vin        TEXT,
	datetime_found TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertSQL = `
INSERT INTO cars (
	url, title, price_usd, odometer, username, phone_number,
	image_url, images_count, car_number, car_vin, datetime_found
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (url) DO UPDATE SET
	title          = EXCLUDED.title,
	price_usd      = EXCLUDED.price_usd,
	odometer       = EXCLUDED.odometer,
	username       = EXCLUDED.username,
	phone_number   = EXCLUDED.phone_number,
	image_url      = EXCLUDED.image_url,
	images_count   = EXCLUDED.images_count,
	car_number     = EXCLUDED.car_number,
	car_vin        = EXCLUDED.car_vin,
	datetime_found = EXCLUDED.datetime_found`

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	MaxConns int32
}

// CarStore upserts car records keyed by their canonical URL.
type CarStore struct {
	pool   pgxPool
	logger *zap.Logger
}

// NewCarStore connects a Postgres-backed CarStore.
func NewCarStore(ctx context.Context, cfg Config, logger *zap.Logger) (*CarStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewCarStoreWithPool(pool, logger), nil
}

// NewCarStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewCarStoreWithPool(pool pgxPool, logger *zap.Logger) *CarStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarStore{pool: pool, logger: logger}
}

// Close releases the underlying pool resources.
func (s *CarStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the cars table if it does not exist.
func (s *CarStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure cars schema: %w", err)
	}
	return nil
}

// Upsert writes the batch in one transaction, inserting unseen URLs and
// overwriting every non-identity column for URLs already stored.
// datetime_found is refreshed on every write, so it tracks "last seen".
// Each row runs under a savepoint: a failed row is logged, rolled back,
// and skipped without aborting the rest of the batch. All successful
// rows become visible together at commit.
func (s *CarStore) Upsert(ctx context.Context, records []scrape.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := 0
	now := time.Now().UTC()
	for _, rec := range records {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return saved, fmt.Errorf("open savepoint: %w", err)
		}
		_, err = sp.Exec(ctx, upsertSQL,
			rec.URL,
			rec.Title,
			rec.PriceUSD,
			rec.OdometerKm,
			rec.SellerName,
			rec.Phone,
			rec.ImageURL,
			rec.ImagesCount,
			rec.PlateNumber,
			rec.VIN,
			now,
		)
		if err != nil {
			s.logger.Error("car upsert failed",
				zap.String("url", rec.URL),
				zap.Error(err),
			)
			_ = sp.Rollback(ctx)
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			s.logger.Error("car savepoint release failed",
				zap.String("url", rec.URL),
				zap.Error(err),
			)
			continue
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert batch: %w", err)
	}

	telemetry.CountSaved(saved)
	s.logger.Info("car batch stored",
		zap.Int("saved", saved),
		zap.Int("batch", len(records)),
	)
	return saved, nil
}
