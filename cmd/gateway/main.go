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

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"consultas-gateway/internal/blobstore"
	"consultas-gateway/internal/cache"
	"consultas-gateway/internal/config"
	"consultas-gateway/internal/gateway"
	"consultas-gateway/internal/handlers"
	"consultas-gateway/internal/httpserver"
	"consultas-gateway/internal/metrics"
	"consultas-gateway/internal/routes"
	"consultas-gateway/internal/upstream"
	"consultas-gateway/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("loaded config", cfg.LogFields()...)

	table, err := routes.Load(cfg.RoutesFile)
	if err != nil {
		return err
	}
	logger.Info("loaded routes", zap.Int("count", len(table)), zap.String("file", cfg.RoutesFile))

	ctx := logging.WithLogger(context.Background(), logger)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.StoreBackend == blobstore.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	}

	// ----- Blob store -----
	store, closeStore, err := blobstore.New(ctx, cfg.Store(), redisClient)
	if err != nil {
		return err
	}
	defer closeStore()
	if store == nil {
		logger.Warn("store disabled, every consulta goes upstream")
	}

	// ----- Cache -----
	lookup := cache.NewLookup(store, cache.LookupConfig{
		ListLimit:   cfg.CacheListLimit,
		StrictMatch: cfg.CacheStrictMatch,
	})
	persister := cache.NewPersister(store,
		cache.NewDownloader(&http.Client{}, cfg.MediaTimeout, cfg.MediaMaxBytes),
		cache.PersisterConfig{
			Workers:   cfg.PersistWorkers,
			QueueSize: cfg.PersistQueueSize,
		})

	// ----- Upstream client -----
	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		Token:   cfg.UpstreamToken,
		Timeout: cfg.UpstreamTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// ----- Handlers -----
	coord := gateway.NewCoordinator(lookup, client, persister)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		Routes:         table,
		Consulta:       handlers.NewConsultaHandler(coord),
		Admin:          handlers.NewAdminHandler(cache.NewAdmin(store), table),
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.String("store_backend", cfg.StoreBackend),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	// Responses are out; let queued persists finish.
	if err := persister.Close(shutdownCtx); err != nil {
		logger.Warn("persist queue not drained", zap.Int("pending", persister.Pending()), zap.Error(err))
	}

	logger.Info("server shutdown complete")
	return nil
}
