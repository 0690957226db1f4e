package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/diewo77/invoice-dashboard/internal/cache"
	"github.com/diewo77/invoice-dashboard/internal/config"
	"github.com/diewo77/invoice-dashboard/internal/handlers"
	"github.com/diewo77/invoice-dashboard/internal/repository"
	"github.com/diewo77/invoice-dashboard/internal/server"
	"github.com/diewo77/invoice-dashboard/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// app holds the wired HTTP server and its optional Redis fan-out.
type app struct {
	srv      *http.Server
	redis    *redis.Client
	listener *cache.RedisRevalidator
	log      *zap.Logger
}

func newApp(cfg *config.Config, conn *gorm.DB, log *zap.Logger) (*app, error) {
	policy, err := services.ParseErrorPolicy(cfg.App.StorageErrorPolicy)
	if err != nil {
		return nil, err
	}

	pages := cache.NewPageCache(cfg.Cache.TTL)
	a := &app{log: log}

	var revalidator cache.Revalidator = pages
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.listener = cache.NewRedisRevalidator(a.redis, pages,
			cache.WithChannel(cfg.Redis.Channel),
			cache.WithLogger(log))
		revalidator = a.listener
	}

	svc := services.NewInvoiceService(
		repository.NewGormInvoiceStore(conn),
		revalidator,
		services.WithLogger(log),
		services.WithErrorPolicy(policy),
	)
	handler := server.New(conn, handlers.NewInvoiceHandler(svc, pages, log), log)

	a.srv = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	log.Info("Application wired",
		zap.String("storage_error_policy", string(svc.Policy())),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.Bool("redis", a.redis != nil))
	return a, nil
}

// run serves until ctx is cancelled, then shuts down gracefully.
func (a *app) run(ctx context.Context) error {
	if a.listener != nil {
		go func() {
			if err := a.listener.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("Revalidation listener stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error during shutdown", zap.Error(err))
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.log.Info("Server stopped gracefully")
	return nil
}
