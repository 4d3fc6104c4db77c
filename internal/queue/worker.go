package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/database"
	"github.com/zombar/reviewxai/internal/hybrid"
	"github.com/zombar/reviewxai/internal/metrics"
)

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server          *asynq.Server
	mux             *asynq.ServeMux
	db              *database.DB
	engine          *analyzer.Analyzer
	hybrid          *hybrid.Analyzer // nil when no classifier is configured
	concurrency     int
	logger          *slog.Logger
	businessMetrics *metrics.BusinessMetrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// retryDelays is the wait before each retry of a failed analysis. Most
// retries are classifier outages, so the schedule stretches to half an hour.
var retryDelays = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	20 * time.Minute,
	30 * time.Minute,
}

func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < len(retryDelays) {
		return retryDelays[n]
	}
	return retryDelays[len(retryDelays)-1]
}

// NewWorker creates a new queue worker. hybridAnalyzer may be nil, in which
// case reviews are analyzed by the rule engine alone.
func NewWorker(
	cfg WorkerConfig,
	db *database.DB,
	engine *analyzer.Analyzer,
	hybridAnalyzer *hybrid.Analyzer,
	businessMetrics *metrics.BusinessMetrics,
) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	serverCfg := asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueReviews: 1,
		},
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := &Worker{
		server:          asynq.NewServer(redisOpt, serverCfg),
		mux:             asynq.NewServeMux(),
		db:              db,
		engine:          engine,
		hybrid:          hybridAnalyzer,
		concurrency:     concurrency,
		logger:          slog.Default(),
		businessMetrics: businessMetrics,
	}

	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeReview, w.handleAnalyzeReview)
}

// Start starts the worker to begin processing tasks. It blocks until the
// server stops.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queue", QueueReviews,
		"hybrid", w.hybrid != nil,
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}
