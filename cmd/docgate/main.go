package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	cachepkg "github.com/meridian-cloud/docgate/internal/cache"
	"github.com/meridian-cloud/docgate/internal/cache/badgerstore"
	"github.com/meridian-cloud/docgate/internal/config"
	dbRedis "github.com/meridian-cloud/docgate/internal/db/redis"
	"github.com/meridian-cloud/docgate/internal/domain/region"
	"github.com/meridian-cloud/docgate/internal/events"
	logpkg "github.com/meridian-cloud/docgate/internal/logger"
	"github.com/meridian-cloud/docgate/internal/metrics"
	documentrepo "github.com/meridian-cloud/docgate/internal/repository/document"
	searchrepo "github.com/meridian-cloud/docgate/internal/repository/search"
	"github.com/meridian-cloud/docgate/internal/resilience"
	chiTransport "github.com/meridian-cloud/docgate/internal/transport/chi"
	gatewayuc "github.com/meridian-cloud/docgate/internal/usecase/gateway"
	healthuc "github.com/meridian-cloud/docgate/internal/usecase/health"
	searchuc "github.com/meridian-cloud/docgate/internal/usecase/search"
	shardinguc "github.com/meridian-cloud/docgate/internal/usecase/sharding"
	"github.com/meridian-cloud/docgate/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docgate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create document store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Document store not ready", zap.Error(err))
	}
	logger.Info("Connected to document store")

	keys := documentrepo.Keys{Prefix: cfg.Database.KeyPrefix}
	if err := ensureIndexes(ctx, store, keys, cfg.Database.Collections); err != nil {
		logger.Fatal("Failed to create query indexes", zap.Error(err))
	}

	emitter := events.NewLogEmitter(logger, 256)
	defer emitter.Close()

	// Cache substrate: in-memory LRU fronting a durable badger tier.
	var resultCache *cachepkg.Cache
	if cfg.Cache.Enabled == nil || *cfg.Cache.Enabled {
		durable, err := badgerstore.Open(cfg.Cache.Path, logger)
		if err != nil {
			logger.Fatal("Failed to open durable cache", zap.Error(err))
		}
		resultCache = cachepkg.New(cfg.Cache, durable, metrics.CacheLookups(), logger)
		defer func() { _ = resultCache.Close() }()
		logger.Info("Cache substrate ready",
			zap.String("path", cfg.Cache.Path),
			zap.Int("memory_capacity", cfg.Cache.MemoryCapacity))
	}

	executor := resilience.NewExecutor(
		cfg.Resilience, resilience.DefaultClassifier,
		metrics.Retries(), metrics.BreakerState(), logger,
	)

	// Repositories. When resilience is on, search scans and the sharding
	// store traffic run under the same executor as gateway calls, one
	// breaker per partition.
	docRepo := documentrepo.New(store, cfg.Database.KeyPrefix)
	searchRepo := searchrepo.New(store, cfg.Database.KeyPrefix)

	var engineRepo searchuc.Repository = searchRepo
	var shardStore shardinguc.DocumentStore = docRepo
	if cfg.Resilience.Enabled == nil || *cfg.Resilience.Enabled {
		engineRepo = searchuc.NewResilientRepository(searchRepo, executor)
		shardStore = shardinguc.NewResilientStore(docRepo, executor)
	}

	// Pass nil interfaces (not typed nil pointers!) when the cache is off.
	// Go gotcha: (*cache.Cache)(nil) wrapped in an interface != nil.
	var searchCache searchuc.Cache
	var gatewayCache gatewayuc.ResultCache
	var cacheProber healthuc.CacheProber
	if resultCache != nil {
		searchCache = resultCache
		gatewayCache = resultCache
		cacheProber = resultCache
	}

	// Use case services
	searchSvc := searchuc.New(engineRepo, searchCache, cfg.Search, metrics.SearchDuration(), logger)
	shardingSvc := shardinguc.New(
		shardStore, searchSvc, store, cfg.Sharding, metrics.MigratedDocuments(), logger,
	).WithEmitter(emitter)
	coordinator := gatewayuc.New(
		docRepo, shardingSvc, searchSvc, gatewayCache, store, executor, cfg, logger,
	)

	healthSvc := healthuc.New(store, cacheProber)

	// Chi server
	server := chiTransport.NewServer(coordinator, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// ensureIndexes creates the query index for every configured collection
// and each of its regional partitions.
func ensureIndexes(ctx context.Context, store *dbRedis.Store, keys documentrepo.Keys, collections []string) error {
	for _, collection := range collections {
		if err := documentrepo.EnsureIndex(ctx, store, keys, collection); err != nil {
			return err
		}
		for _, r := range region.All {
			partition := shardinguc.PartitionName(collection, r)
			if err := documentrepo.EnsureIndex(ctx, store, keys, partition); err != nil {
				return err
			}
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
