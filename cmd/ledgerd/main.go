package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Nishat2006/surakshanet/internal/config"
	"github.com/Nishat2006/surakshanet/internal/httpx"
	"github.com/Nishat2006/surakshanet/internal/ledger"
	"github.com/Nishat2006/surakshanet/internal/logging"
)

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

	reg := prometheus.NewRegistry()
	metrics := ledger.NewMetrics(reg)

	chain := ledger.New(cfg.LedgerDifficulty, metrics)
	logger.Info("blockchain initialized", zap.Int("difficulty", chain.Difficulty()))

	r := mux.NewRouter()
	r.Use(httpx.SecurityHeaders)
	r.Use(httpx.RequestID)
	r.Use(httpx.Logging(logger))
	r.Use(httpx.CORS)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	ledger.NewHandler(chain, logger).Register(r)

	srv := &http.Server{
		Handler:     r,
		Addr:        ":" + cfg.LedgerPort,
		ReadTimeout: 5 * time.Second,
		// Mining at higher difficulties can exceed a normal write window.
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		logger.Info("ledger listening", zap.String("port", cfg.LedgerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("shutdown failed", zap.Error(err))
	}
	logger.Info("server exited properly")
}
