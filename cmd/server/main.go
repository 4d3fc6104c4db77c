package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/api"
	"github.com/zombar/reviewxai/internal/config"
	"github.com/zombar/reviewxai/internal/database"
	"github.com/zombar/reviewxai/internal/hybrid"
	"github.com/zombar/reviewxai/internal/metrics"
	"github.com/zombar/reviewxai/internal/queue"
	"github.com/zombar/reviewxai/internal/tracing"
	"github.com/zombar/reviewxai/pkg/logging"
)

const serviceName = "reviewxai"

func main() {
	logger := logging.New(os.Stdout, serviceName, logging.ParseLevel(getEnv("LOG_LEVEL", "info")))
	slog.SetDefault(logger)

	logger.Info("reviewxai service initializing", "version", "1.0.0")

	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else if tp != nil {
		defer func() {
			if err := tracing.Shutdown(context.Background(), tp); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	var (
		port              = flag.String("port", getEnv("PORT", "8080"), "Server port (env: PORT)")
		dbDSN             = flag.String("db", getEnv("DB_DSN", "reviewxai.db"), "SQLite path or PostgreSQL DSN (env: DB_DSN)")
		redisAddr         = flag.String("redis-addr", getEnv("REDIS_ADDR", ""), "Redis address for the batch queue, empty disables it (env: REDIS_ADDR)")
		classifierKind    = flag.String("classifier", getEnv("CLASSIFIER", config.ClassifierNone), "Primary classifier: none, http, ollama or static (env: CLASSIFIER)")
		classifierURL     = flag.String("classifier-url", getEnv("CLASSIFIER_URL", ""), "Inference endpoint for the http classifier (env: CLASSIFIER_URL)")
		ollamaURL         = flag.String("ollama-url", getEnv("OLLAMA_URL", "http://localhost:11434"), "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel       = flag.String("ollama-model", getEnv("OLLAMA_MODEL", "llama3.2"), "Ollama model to use (env: OLLAMA_MODEL)")
		thresholdsFile    = flag.String("thresholds", getEnv("THRESHOLDS_FILE", ""), "YAML threshold overrides (env: THRESHOLDS_FILE)")
		advancedFeatures  = flag.Bool("advanced-features", getEnvBool("ADVANCED_FEATURES", false), "Enable readability, n-gram and corpus features (env: ADVANCED_FEATURES)")
		workerConcurrency = flag.Int("worker-concurrency", getEnvInt("WORKER_CONCURRENCY", 4), "Batch worker concurrency (env: WORKER_CONCURRENCY)")
	)
	flag.Parse()

	// Initialize database
	db, err := database.New(*dbDSN)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "driver", database.DriverFor(*dbDSN))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	dbMetrics := metrics.NewDatabaseMetrics(serviceName, nil)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(db.Conn())
		}
	}()
	businessMetrics := metrics.NewBusinessMetrics(serviceName, nil)

	// Initialize the rule engine
	engine, err := newEngine(*thresholdsFile, *advancedFeatures)
	if err != nil {
		logger.Error("failed to load thresholds", "error", err, "path", *thresholdsFile)
		os.Exit(1)
	}
	logger.Info("rule engine initialized",
		"features", engine.FeatureNames(),
		"advanced_features", engine.AdvancedFeatures(),
	)

	// Initialize the primary classifier
	c, err := config.NewClassifier(config.ClassifierConfig{
		Kind:        *classifierKind,
		URL:         *classifierURL,
		Token:       os.Getenv("CLASSIFIER_TOKEN"),
		OllamaURL:   *ollamaURL,
		OllamaModel: *ollamaModel,
		StaticFake:  0.5,
	})
	if err != nil {
		logger.Error("failed to initialize classifier", "error", err, "classifier", *classifierKind)
		os.Exit(1)
	}
	var hybridAnalyzer *hybrid.Analyzer
	if c != nil {
		hybridAnalyzer = hybrid.New(c, engine)
		logger.Info("primary classifier initialized", "classifier", *classifierKind)
	} else {
		logger.Info("no primary classifier configured, /api/predict disabled")
	}

	handlerCfg := api.Config{
		Engine:         engine,
		Hybrid:         hybridAnalyzer,
		DB:             db,
		Metrics:        businessMetrics,
		ClassifierKind: *classifierKind,
	}

	// Batch queue
	var worker *queue.Worker
	if *redisAddr != "" {
		queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
		defer queueClient.Close()
		handlerCfg.Queue = queueClient

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   *redisAddr,
			Concurrency: *workerConcurrency,
		}, db, engine, hybridAnalyzer, businessMetrics)

		go func() {
			if err := worker.Start(); err != nil {
				logger.Error("queue worker stopped", "error", err)
			}
		}()
	} else {
		logger.Info("REDIS_ADDR not set, /api/batch disabled")
	}

	// Wrap handler with middleware chain: HTTP logging -> tracing -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware(serviceName)(api.NewHandler(handlerCfg)),
	)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // LLM classifiers can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("reviewxai service starting",
			"port", *port,
			"database_driver", db.Driver(),
			"classifier", *classifierKind,
			"batch_queue", *redisAddr != "",
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if worker != nil {
		worker.Shutdown()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newEngine builds the rule engine from an optional thresholds file
func newEngine(thresholdsFile string, advanced bool) (*analyzer.Analyzer, error) {
	var opts []analyzer.Option
	if thresholdsFile != "" {
		f, err := config.LoadThresholdFile(thresholdsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, f.Options()...)
	}
	if advanced {
		opts = append(opts, analyzer.WithAdvancedFeatures())
	}
	return analyzer.New(opts...), nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
