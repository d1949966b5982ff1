package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kopitiam/backend/internal/cache"
	"kopitiam/backend/internal/config"
	"kopitiam/backend/internal/httpapi"
	"kopitiam/backend/internal/service"
	"kopitiam/backend/internal/store"
	"kopitiam/backend/internal/store/memory"
	pgstore "kopitiam/backend/internal/store/postgres"
	"kopitiam/backend/pkg/logging"
)

func main() {
	logging.Setup()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "error", err)
			os.Exit(1)
		}
		repo = pg
		closers = append(closers, pg.Close)
		slog.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		slog.Info("repository: in-memory (seeded demo sales)")
	}

	saleCache := cache.SaleCache(cache.NoopSaleCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSaleCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, using noop cache", "error", err)
		} else {
			saleCache = redisCache
			closers = append(closers, redisCache.Close)
			slog.Info("cache: redis")
		}
	} else {
		slog.Info("cache: noop")
	}

	svc := service.New(
		repo,
		saleCache,
		time.Duration(cfg.SaleCacheTTLSeconds)*time.Second,
		time.Duration(cfg.SessionTTLMinutes)*time.Minute,
	)
	api := httpapi.New(svc, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("payment backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			slog.Warn("close error", "error", err)
		}
	}

	slog.Info("server stopped")
}
