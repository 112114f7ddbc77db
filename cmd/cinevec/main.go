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

	"github.com/cinevec/cinevec/internal/config"
	dbRedis "github.com/cinevec/cinevec/internal/db/redis"
	"github.com/cinevec/cinevec/internal/domain"
	"github.com/cinevec/cinevec/internal/embstore"
	qdrantidx "github.com/cinevec/cinevec/internal/index/qdrant"
	logpkg "github.com/cinevec/cinevec/internal/logger"
	"github.com/cinevec/cinevec/internal/metrics"
	"github.com/cinevec/cinevec/internal/repository/details"
	"github.com/cinevec/cinevec/internal/repository/embcache"
	chiTransport "github.com/cinevec/cinevec/internal/transport/chi"
	openaiEmb "github.com/cinevec/cinevec/internal/transport/openai"
	healthuc "github.com/cinevec/cinevec/internal/usecase/health"
	initializeruc "github.com/cinevec/cinevec/internal/usecase/initializer"
	recommenduc "github.com/cinevec/cinevec/internal/usecase/recommend"
	searchuc "github.com/cinevec/cinevec/internal/usecase/search"
	writeruc "github.com/cinevec/cinevec/internal/usecase/writer"
	"github.com/cinevec/cinevec/internal/version"
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

	logger.Info("Starting cinevec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Qdrant.Host),
	)

	ctx := context.Background()

	// Vector index
	idx, err := qdrantidx.New(qdrantidx.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		logger.Fatal("Failed to create qdrant client", zap.Error(err))
	}
	defer func() { _ = idx.Close() }()

	// Embedding cache store (optional)
	var cache *dbRedis.Store
	if len(cfg.Redis.Addrs) > 0 {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer cache.Close()

		readiness := time.Duration(cfg.Redis.ReadinessTimeout) * time.Second
		if err := cache.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache")
	}

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Embedder chain: OpenAI -> Cached
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.Redis.CacheTTLHours) * time.Hour)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", cache != nil),
	)

	// Detail tables
	movies, err := details.LoadMovies(cfg.Stores.MovieDetails)
	if err != nil {
		logger.Fatal("Failed to load movie details", zap.Error(err))
	}
	users, err := details.LoadUsers(cfg.Stores.UserDetails)
	if err != nil {
		logger.Fatal("Failed to load user details", zap.Error(err))
	}
	logger.Info("Detail tables loaded",
		zap.Int("movies", len(movies.All())),
		zap.Int("users", len(users.All())),
	)

	// Embedding stores
	movieStore := embstore.Open(cfg.Stores.MovieEmbeddings)
	userStore := embstore.Open(cfg.Stores.UserEmbeddings)

	if cfg.Bootstrap.Enabled {
		if err := bootstrap(ctx, cfg, idx, embedder, movies, users, movieStore, userStore, logger); err != nil {
			logger.Fatal("Bootstrap failed", zap.Error(err))
		}
	}

	// Point-in-time view of movie embeddings for centroid computation.
	movieSnap, err := movieStore.Load()
	if err != nil {
		logger.Fatal("Failed to load movie embedding store", zap.Error(err))
	}
	if movieSnap.Len() == 0 {
		logger.Warn("Movie embedding store is empty, user recommendations will fail",
			zap.String("path", movieStore.Path()))
	}

	// Use case services
	searchSvc := searchuc.New(idx, embedder)
	recommendSvc := recommenduc.New(searchSvc, movies, users, movieSnap, recommenduc.Config{
		MovieCollection: cfg.Collections.Movies,
		UserCollection:  cfg.Collections.Users,
		UserTopK:        cfg.Engine.UserTopK,
		MovieTopK:       cfg.Engine.MovieTopK,
	})

	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	healthSvc := healthuc.New(idx, base, cachePinger)

	// HTTP server
	server := chiTransport.NewServer(recommendSvc, searchSvc, healthSvc, cfg.Engine.MovieTopK, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Mount("/", server.Router(cfg.Auth.APIKeys))

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

// bootstrap embeds any missing movie and user descriptions, then seeds both
// index collections from the completed stores.
func bootstrap(
	ctx context.Context,
	cfg config.Config,
	idx *qdrantidx.Client,
	embedder domain.Embedder,
	movies *details.Movies,
	users *details.Users,
	movieStore, userStore *embstore.Store,
	logger *zap.Logger,
) error {
	movieWriter := writeruc.New(movieStore, embedder, "movies", logger).
		WithWorkers(cfg.Bootstrap.Workers)
	report, err := movieWriter.Process(ctx, movies.TextRecords(), cfg.Stores.MaxLimit)
	if err != nil {
		return fmt.Errorf("embed movies: %w", err)
	}
	logger.Info("Movie embeddings complete",
		zap.Int("written", report.Written), zap.Int("failed", report.Failed))

	userWriter := writeruc.New(userStore, embedder, "users", logger).
		WithWorkers(cfg.Bootstrap.Workers)
	report, err = userWriter.Process(ctx, users.TextRecords(), cfg.Stores.MaxLimit)
	if err != nil {
		return fmt.Errorf("embed users: %w", err)
	}
	logger.Info("User embeddings complete",
		zap.Int("written", report.Written), zap.Int("failed", report.Failed))

	movieInit := initializeruc.New(idx, movieStore, initializeruc.MoviePayloads{Movies: movies}, logger)
	res, err := movieInit.Run(ctx, cfg.Collections.Movies)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", cfg.Collections.Movies, err)
	}
	logger.Info("Movie collection ready",
		zap.Bool("created", res.Created), zap.Int("uploaded", res.Uploaded))

	userInit := initializeruc.New(idx, userStore, initializeruc.UserPayloads{Users: users}, logger)
	res, err = userInit.Run(ctx, cfg.Collections.Users)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", cfg.Collections.Users, err)
	}
	logger.Info("User collection ready",
		zap.Bool("created", res.Created), zap.Int("uploaded", res.Uploaded))

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
