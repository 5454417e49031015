package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nishat2006/surakshanet/internal/auth"
	"github.com/Nishat2006/surakshanet/internal/config"
	"github.com/Nishat2006/surakshanet/internal/httpx"
	"github.com/Nishat2006/surakshanet/internal/logging"
)

const sweepInterval = time.Minute

func openStore(cfg *config.Config, logger *zap.Logger) (auth.Store, error) {
	switch cfg.StoreAdapter {
	case "sqlite":
		return auth.NewSQLiteStore(cfg.SQLiteFile)
	case "postgres":
		dsn, err := cfg.BuildPostgresDSN()
		if err != nil {
			return nil, err
		}
		logger.Info("applying database migrations")
		if err := auth.ApplyMigrations("./migrations", dsn); err != nil {
			return nil, err
		}
		return auth.NewPostgresStore(dsn)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return auth.NewRedisStore(rdb), nil
	default:
		logger.Info("using in-memory session store (not recommended for production)")
		return auth.NewMemoryStore(), nil
	}
}

func main() {
	cfg, err := config.New()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.Error(err))
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	metrics := auth.NewMetrics(reg)

	authority := auth.NewAuthority(store, auth.Config{
		JWTSecret:       []byte(cfg.JWTSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, logger, metrics)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	for _, u := range cfg.SeedUsers {
		if _, err := authority.ProvisionUser(seedCtx, u.Username, u.Password); err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				continue
			}
			logger.Fatal("seed user", zap.String("username", u.Username), zap.Error(err))
		}
	}
	cancelSeed()

	r := mux.NewRouter()
	r.Use(httpx.SecurityHeaders)
	r.Use(httpx.RequestID)
	r.Use(httpx.Logging(logger))
	r.Use(httpx.CORS)
	limiter := httpx.NewRateLimiter(120, 30)
	r.Use(limiter.Limit)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := authority.Ping(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")

	auth.NewHandler(authority, logger).Register(r)

	// TTL sweep keeps the memory adapter from accumulating dead sessions;
	// harmless for the durable adapters.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := authority.SweepExpired(sweepCtx); err != nil && sweepCtx.Err() == nil {
					logger.Warn("session sweep", zap.Error(err))
				}
			}
		}
	}()

	srv := &http.Server{
		Handler:      r,
		Addr:         ":" + cfg.AuthPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("session authority listening", zap.String("port", cfg.AuthPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("shutdown failed", zap.Error(err))
	}
	logger.Info("server exited properly")
}
