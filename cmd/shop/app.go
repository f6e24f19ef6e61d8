package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/cart"
	"github.com/ttwixxbot/telegram-shop/internal/catalog"
	"github.com/ttwixxbot/telegram-shop/internal/checkout"
	"github.com/ttwixxbot/telegram-shop/internal/config"
	h "github.com/ttwixxbot/telegram-shop/internal/http"
	"github.com/ttwixxbot/telegram-shop/internal/metrics"
	"github.com/ttwixxbot/telegram-shop/internal/order"
	"github.com/ttwixxbot/telegram-shop/internal/storefront"
	"github.com/ttwixxbot/telegram-shop/pkg/circuitbreaker"
)

// app owns every long-lived dependency of the server.
type app struct {
	handler  http.Handler
	sessions *cart.Sessions
	closers  []func() error
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}

	provider, err := a.buildCatalog(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	sink := buildSink(cfg, log)
	a.closers = append(a.closers, sink.Close)

	m := metrics.New()
	a.sessions = cart.NewSessions(cfg.Session.IdleTTL, cfg.Session.CleanupInterval)
	a.closers = append(a.closers, a.sessions.Close)

	submitter := checkout.NewSubmitter(order.NewBuilder(), m)
	svc := storefront.NewService(a.sessions, provider, submitter, storefront.Branding{
		Title:        cfg.Shop.Title,
		LogoPath:     cfg.Shop.LogoPath,
		PrimaryColor: cfg.Shop.PrimaryColor,
	}, m)

	a.handler = h.NewRouter(h.NewShopHandler(svc, sink, cfg.HTTP.RequestTimeout), h.RouterConfig{
		Auth: h.AuthConfig{
			BotToken: cfg.Telegram.BotToken,
			MaxAge:   cfg.Telegram.InitDataTTL,
			Insecure: cfg.Telegram.InsecureSkipAuth,
		},
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		Logger:             log,
		Metrics:            m,
	})

	return a, nil
}

func (a *app) buildCatalog(cfg *config.Config, log *zap.Logger) (catalog.Provider, error) {
	var provider catalog.Provider

	switch cfg.Catalog.Source {
	case "http":
		provider = catalog.NewHTTPProvider(cfg.Catalog.URL, cfg.Catalog.FetchTimeout, circuitbreaker.Config{
			Name:             "catalog-feed",
			FailureThreshold: cfg.Catalog.BreakerFailures,
			OpenTimeout:      cfg.Catalog.BreakerTimeout,
			HalfOpenRequests: 1,
		}, log)
	case "sqlite":
		repo, err := openRepository(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		provider = repo
	default:
		provider = catalog.NewFileProvider(cfg.Catalog.Path)
	}

	if cfg.Redis.Addr == "" {
		return provider, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// the cache falls back to the source, so a cold redis is not fatal
		log.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	return catalog.NewCachedProvider(provider, client, cfg.Catalog.CacheTTL, log), nil
}

func openRepository(cfg config.CatalogConfig) (*catalog.Repository, error) {
	repo, err := catalog.NewRepository(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func buildSink(cfg *config.Config, log *zap.Logger) bridge.Sink {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("no kafka brokers configured, orders go to the log")
		return bridge.NewLogSink(log)
	}
	return bridge.NewKafkaSink(cfg.Kafka.Topic, log, cfg.Kafka.Brokers...)
}

// Close releases dependencies in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
