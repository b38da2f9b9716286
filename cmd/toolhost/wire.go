package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/backend"
	"github.com/triage-ai/toolhost/internal/catalog"
	"github.com/triage-ai/toolhost/internal/catalogsvc"
	"github.com/triage-ai/toolhost/internal/config"
	"github.com/triage-ai/toolhost/internal/events"
	"github.com/triage-ai/toolhost/internal/host"
	"github.com/triage-ai/toolhost/internal/orderssvc"
	"github.com/triage-ai/toolhost/internal/pricebook"
	"github.com/triage-ai/toolhost/internal/pricing"
	"github.com/triage-ai/toolhost/internal/telemetry"
)

// app is the fully wired host plus everything that must be closed on exit.
type app struct {
	host    *host.Host
	metrics *telemetry.Metrics
	// history is nil unless the ClickHouse archive is configured.
	history *events.ClickHouseHistory
	closers []func(context.Context) error
	logger  *zap.Logger
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: telemetry.NewMetrics(), logger: logger}

	book, err := a.buildBook(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	publisher := a.buildPublisher(ctx, cfg)
	a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })

	notifier := events.NewNotifier(events.NotifierConfig{
		Publisher:         publisher,
		LowStockThreshold: cfg.LowStockThreshold,
		PublishTimeout:    cfg.PublishTimeout,
		Recorder:          a.metrics,
		Logger:            logger,
	})

	engine := pricing.New(pricing.Config{
		Store: catalog.NewHTTPClient(catalog.HTTPClientConfig{
			BaseURL: cfg.CatalogURL,
			Timeout: cfg.CatalogTimeout,
		}),
		Book:     book,
		Notifier: notifier,
		Recorder: a.metrics,
		Logger:   logger,
	})

	catalogBackend, err := catalogsvc.New(catalogsvc.Config{
		Engine:           engine,
		DefaultThreshold: cfg.DefaultThreshold,
		Version:          version,
		Logger:           logger,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("catalog backend: %w", err)
	}
	ordersBackend, err := orderssvc.New(orderssvc.Config{
		Notifier: notifier,
		Version:  version,
		Logger:   logger,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("orders backend: %w", err)
	}

	backends := map[string]backend.Backend{
		catalogsvc.Namespace: catalogBackend,
		orderssvc.Namespace:  ordersBackend,
	}
	routes := make([]host.Route, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		be, ok := backends[b.Name]
		if !ok {
			a.Close(ctx)
			return nil, fmt.Errorf("unknown backend %q", b.Name)
		}
		routes = append(routes, host.Route{Prefix: b.Prefix, Backend: be})
	}
	router, err := host.NewRouter(backends[cfg.DefaultBackend], routes...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	tp, shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "toolhost")
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.host = host.New(host.Config{
		Router:  router,
		Tracer:  tp.Tracer(telemetry.TracerName),
		Metrics: a.metrics,
		Logger:  logger,
	})
	return a, nil
}

func (a *app) buildBook(ctx context.Context, cfg *config.Config) (pricebook.Book, error) {
	var driver string
	switch cfg.BasePrices.Driver {
	case config.SourcePostgres:
		driver = pricebook.DriverPostgres
	case config.SourceSQLite:
		driver = pricebook.DriverSQLite
	default:
		a.logger.Info("using static base prices", zap.Int("products", len(cfg.StaticPrices())))
		return cfg.StaticPrices(), nil
	}

	db, err := pricebook.Open(ctx, driver, cfg.BasePrices.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	if driver == pricebook.DriverPostgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := pricebook.Seed(ctx, db, cfg.StaticPrices()); err != nil {
		return nil, err
	}
	a.logger.Info("base price table connected", zap.String("driver", driver))
	return pricebook.NewSQLBook(pricebook.SQLBookConfig{
		DB:       db,
		CacheTTL: cfg.BasePrices.CacheTTL,
		Logger:   a.logger,
	}), nil
}

// buildPublisher picks Redis when configured, falling back to the log
// publisher, and adds the ClickHouse archive alongside when a DSN is set.
func (a *app) buildPublisher(ctx context.Context, cfg *config.Config) events.Publisher {
	var primary events.Publisher
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			a.logger.Warn("redis connection failed, falling back to log publisher", zap.Error(err))
			primary = events.NewLogPublisher(a.logger)
		} else {
			a.logger.Info("redis publisher connected")
			primary = rp
		}
	} else {
		a.logger.Info("no REDIS_URL set, using log publisher")
		primary = events.NewLogPublisher(a.logger)
	}

	if cfg.ClickHouseDSN == "" {
		return primary
	}
	archive, err := events.NewClickHouseArchive(ctx, cfg.ClickHouseDSN, a.logger)
	if err != nil {
		a.logger.Warn("clickhouse connection failed, events will not be archived", zap.Error(err))
		return primary
	}
	a.logger.Info("clickhouse archive connected")

	history, err := events.NewClickHouseHistory(ctx, cfg.ClickHouseDSN, a.logger)
	if err != nil {
		a.logger.Warn("clickhouse history unavailable", zap.Error(err))
	} else {
		a.history = history
		a.closers = append(a.closers, func(context.Context) error { return history.Close() })
	}
	return events.Fanout{primary, archive}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown errors", zap.Error(err))
	}
}
