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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/config"
	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/index"
	logpkg "github.com/Guilherme9797/meu-app/internal/logger"
	"github.com/Guilherme9797/meu-app/internal/metrics"
	"github.com/Guilherme9797/meu-app/internal/repository/embcache"
	"github.com/Guilherme9797/meu-app/internal/repository/sqlite"
	chiTransport "github.com/Guilherme9797/meu-app/internal/transport/chi"
	openaiTransport "github.com/Guilherme9797/meu-app/internal/transport/openai"
	"github.com/Guilherme9797/meu-app/internal/transport/tavily"
	"github.com/Guilherme9797/meu-app/internal/transport/zapi"
	healthuc "github.com/Guilherme9797/meu-app/internal/usecase/health"
	indexinguc "github.com/Guilherme9797/meu-app/internal/usecase/indexing"
	intakeuc "github.com/Guilherme9797/meu-app/internal/usecase/intake"
	retrievaluc "github.com/Guilherme9797/meu-app/internal/usecase/retrieval"
	"github.com/Guilherme9797/meu-app/internal/version"
)

func main() {
	// .env is a local convenience; absence is not an error
	_ = godotenv.Load()

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

	logger.Info("Starting legal intake server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("index_dir", cfg.Index.Dir),
	)

	ctx := context.Background()

	db, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database")

	store, err := index.Open(cfg.Index.Dir)
	if err != nil {
		logger.Fatal("Failed to load chunk index", zap.Error(err))
	}
	logger.Info("Chunk index loaded", zap.Int("chunks", store.Count()))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()
	metrics.IndexChunks.Set(float64(store.Count()))

	// Embedder chain: OpenAI base wrapped in the SQLite-backed cache.
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		baseEmbedder, sqlite.NewKV(db), metrics.EmbeddingCacheTotal, logger,
	)

	chatModel := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: *cfg.Chat.Temperature,
	})

	var webSearcher domain.WebSearcher
	if cfg.WebSearch.APIKey != "" {
		webSearcher = tavily.New(tavily.Config{
			APIKey:      cfg.WebSearch.APIKey,
			BaseURL:     cfg.WebSearch.BaseURL,
			SearchDepth: cfg.WebSearch.SearchDepth,
		})
	} else {
		logger.Warn("Web search disabled: no API key configured")
	}

	var whatsapp chiTransport.WhatsAppGateway
	if cfg.WhatsApp.InstanceID != "" {
		client, err := zapi.New(zapi.Config{
			BaseURL:       cfg.WhatsApp.BaseURL,
			InstanceID:    cfg.WhatsApp.InstanceID,
			InstanceToken: cfg.WhatsApp.InstanceToken,
			ClientToken:   cfg.WhatsApp.ClientToken,
			WebhookSecret: cfg.WhatsApp.WebhookSecret,
		})
		if err != nil {
			logger.Fatal("Failed to create WhatsApp gateway", zap.Error(err))
		}
		whatsapp = client
	} else {
		logger.Warn("WhatsApp gateway disabled: no instance configured")
	}

	retrievalSvc := retrievaluc.New(store, embedder,
		retrievaluc.Params{
			MinScore:        *cfg.Retrieval.MinChunkScore,
			PerDocCap:       cfg.Retrieval.MaxChunksPerDoc,
			DiversityWeight: *cfg.Retrieval.DiversityWeight,
			TargetSize:      cfg.Retrieval.TopK,
		},
		*cfg.Retrieval.FallbackConfidence,
		retrievaluc.WithOverfetch(cfg.Retrieval.CandidateOverfetch),
	)

	indexerSvc := indexinguc.New(store, embedder, indexinguc.Config{
		IndexDir:     cfg.Index.Dir,
		PDFDir:       cfg.Index.PDFDir,
		ChunkChars:   cfg.Index.ChunkChars,
		ChunkOverlap: *cfg.Index.ChunkOverlap,
		BatchSize:    cfg.Embedding.BatchSize,
	}, logger)

	intakeSvc := intakeuc.New(
		sqlite.NewSessionRepository(db),
		sqlite.NewMessageRepository(db),
		retrievalSvc,
		chatModel,
		webSearcher,
		intakeuc.Config{
			MaxChunks:          cfg.Retrieval.TopK,
			MaxWebResults:      cfg.Retrieval.MaxWebResults,
			UseWebFallback:     cfg.Retrieval.UseWebFallback,
			AppendCoverageNote: cfg.Retrieval.AppendCoverageNote,
			Refine:             cfg.Chat.Refine,
		},
	)

	healthSvc := healthuc.New(dbPinger{db}, store, embeddingHealthChecker{embedder: baseEmbedder})

	server := chiTransport.NewServer(intakeSvc, indexerSvc, healthSvc, whatsapp, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r, cfg.Auth.AdminKeys)

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

// dbPinger adapts *sql.DB to health.DBPinger.
type dbPinger struct {
	db interface {
		PingContext(ctx context.Context) error
	}
}

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// embeddingHealthChecker probes the embedding provider when it supports
// health checks.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

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
