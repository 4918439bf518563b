/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, optional yaml, BOOKING_* env)
  2. Build the zap logger for the environment
  3. Open the SQLite store
  4. Wire ledger, notifier, booking service, idempotency key store
  5. Start the HTTP server with graceful shutdown

CONFIGURATION:
  BOOKING_PORT              HTTP port (default 8080)
  BOOKING_DB_PATH           SQLite path, ":memory:" allowed (default booking.db)
  BOOKING_REDIS_ADDR        enables the Redis idempotency store when set
  BOOKING_ENV               "production" switches to the production logger

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for in-flight
  requests up to the shutdown timeout, close the database, exit.

SEE ALSO:
  - api/server.go: router configuration
  - config/config.go: configuration loading
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/ledger"
	"github.com/warp/booking-engine/notify"
	"github.com/warp/booking-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	creditLedger := ledger.New(store)
	notifier := notify.NewLogNotifier(log)
	service := booking.NewService(store, creditLedger, notifier, log)

	var keys api.KeyStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer client.Close()
		keys = api.NewRedisKeyStore(client, cfg.IdempotencyTTL)
		log.Info("using redis idempotency store", zap.String("addr", cfg.RedisAddr))
	} else {
		keys = api.NewMemoryKeyStore(cfg.IdempotencyTTL)
	}

	handler := api.NewHandler(service, creditLedger, store, log)
	router := api.NewRouter(handler, keys, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
