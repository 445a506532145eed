// README: Entry point; loads config, wires the modules and serves the API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hmarket/internal/auth"
	"hmarket/internal/config"
	httptransport "hmarket/internal/http"
	"hmarket/internal/infra"
	"hmarket/internal/maps"
	"hmarket/internal/modules/assignment"
	"hmarket/internal/modules/driver"
	"hmarket/internal/modules/notify"
	"hmarket/internal/modules/order"
	"hmarket/internal/modules/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer func() { _ = redisClient.Close() }()

	var notifier notify.Notifier
	if cfg.Notify.Mode == "redis" {
		notifier = notify.NewRedisNotifier(redisClient)
	} else {
		notifier = notify.NewMemoryNotifier()
	}

	var estimator maps.Estimator = maps.HaversineEstimator{}
	if cfg.Maps.APIKey != "" {
		est, err := maps.NewGoogleEstimator(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps client init", zap.Error(err))
		}
		estimator = est
	}

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, notifier, payment.NopGateway{}, logger)

	driverStore := driver.NewStore(redisClient)
	assignSvc := assignment.NewService(orderSvc, driverStore, estimator, cfg.Delivery.AvailableListLimit, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:      orderSvc,
		Assignment: assignSvc,
		Drivers:    driverStore,
		Verifier:   auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		Log:        logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
