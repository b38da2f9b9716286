package pricebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Schema creates the base price table. Valid for both Postgres and SQLite.
const Schema = `CREATE TABLE IF NOT EXISTS base_prices (
	product_id INTEGER PRIMARY KEY,
	price      DOUBLE PRECISION NOT NULL
)`

// PriceStore abstracts DB queries for testability.
type PriceStore interface {
	LookupPrice(ctx context.Context, productID int) (float64, error)
}

// sqlPriceStore is the real implementation using *sql.DB.
type sqlPriceStore struct {
	db *sql.DB
}

func (s *sqlPriceStore) LookupPrice(ctx context.Context, productID int) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM base_prices WHERE product_id = $1`, productID,
	).Scan(&price)
	return price, err
}

// SQLBook reads base prices from the base_prices table through a TTL cache.
type SQLBook struct {
	store  PriceStore
	cache  *PriceCache
	logger *zap.Logger
}

// SQLBookConfig configures the SQLBook.
type SQLBookConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewSQLBook creates a new SQLBook.
func NewSQLBook(cfg SQLBookConfig) *SQLBook {
	return newSQLBookWithStore(&sqlPriceStore{db: cfg.DB}, cfg.CacheTTL, cfg.Logger)
}

// newSQLBookWithStore creates a book with a custom store (for testing).
func newSQLBookWithStore(store PriceStore, cacheTTL time.Duration, logger *zap.Logger) *SQLBook {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLBook{
		store:  store,
		cache:  NewPriceCache(cacheTTL),
		logger: logger,
	}
}

// Open connects to the base price database and makes sure the table exists.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("pricebook: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("pricebook: open: %w", err)
	}
	if driver == DriverSQLite {
		// an in-memory database lives and dies with its connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pricebook: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pricebook: create schema: %w", err)
	}
	return db, nil
}

// Seed inserts the given prices, leaving existing rows untouched.
func Seed(ctx context.Context, db *sql.DB, prices Static) error {
	for _, id := range prices.IDs() {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO base_prices (product_id, price) VALUES ($1, $2) ON CONFLICT (product_id) DO NOTHING`,
			id, prices[id],
		); err != nil {
			return fmt.Errorf("pricebook: seed product %d: %w", id, err)
		}
	}
	return nil
}

// BasePrice implements Book.
func (b *SQLBook) BasePrice(ctx context.Context, productID int) (float64, bool, error) {
	res := b.cache.Get(productID)
	if res.Hit {
		if res.NeedsRefresh {
			go b.refreshInBackground(productID)
		}
		return res.Price, res.Found, nil
	}

	price, err := b.store.LookupPrice(ctx, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			b.cache.Set(productID, 0, false)
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("pricebook: lookup product %d: %w", productID, err)
	}

	b.cache.Set(productID, price, true)
	return price, true, nil
}

func (b *SQLBook) refreshInBackground(productID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	price, err := b.store.LookupPrice(ctx, productID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b.cache.Set(productID, 0, false)
	case err != nil:
		b.logger.Warn("background base price refresh failed",
			zap.Int("product_id", productID),
			zap.Error(err),
		)
		b.cache.ClearRefreshing(productID)
	default:
		b.cache.Set(productID, price, true)
	}
}
