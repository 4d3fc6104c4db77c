package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/database"
	"github.com/zombar/reviewxai/internal/hybrid"
	"github.com/zombar/reviewxai/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// handleAnalyzeReview runs one queued analysis and stores the outcome on the
// job's record
func (w *Worker) handleAnalyzeReview(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeReviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	analysisID := payload.AnalysisID

	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		queueWaitTime = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	ctx, span := startTaskSpan(ctx, payload, queueWaitTime)
	defer span.End()

	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	w.logger.Info("analyzing queued review",
		"analysis_id", analysisID,
		"text_length", len(payload.Text),
		"retry_count", retryCount,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	if err := w.db.UpdateStatus(analysisID, models.StatusProcessing, "", retryCount); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// job was deleted while queued
			w.logger.Warn("analysis record missing, dropping task", "analysis_id", analysisID)
			return nil
		}
		return fmt.Errorf("failed to mark analysis processing: %w", err)
	}

	start := time.Now()
	stored, mode, err := w.analyze(ctx, analysisID, payload.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return w.fail(analysisID, err, retryCount, maxRetry)
	}

	stored.RetryCount = retryCount
	if err := w.db.SaveAnalysis(stored); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if w.businessMetrics != nil {
		w.businessMetrics.ObserveDurationWithExemplar(ctx, w.businessMetrics.AnalysisDuration, time.Since(start), mode)
	}
	span.SetAttributes(
		attribute.String("analysis.mode", mode),
		attribute.String("analysis.verdict", string(stored.Verdict)),
	)

	w.logger.Info("queued review analyzed",
		"analysis_id", analysisID,
		"mode", mode,
		"verdict", stored.Verdict,
		"confidence", stored.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// analyze runs the hybrid analyzer when one is configured and the rule
// engine alone otherwise
func (w *Worker) analyze(ctx context.Context, analysisID, text string) (*models.StoredAnalysis, string, error) {
	if w.hybrid == nil {
		result, err := w.engine.AnalyzeWithContext(ctx, text)
		if err != nil {
			return nil, "rules", err
		}
		w.businessMetrics.RecordAnalysis("batch", result)
		return models.NewStoredAnalysis(analysisID, result, nil), "rules", nil
	}

	result, err := w.hybrid.Analyze(ctx, text)
	if err != nil {
		return nil, "hybrid", err
	}
	w.businessMetrics.RecordHybrid("batch", result)
	return models.NewStoredAnalysis(analysisID, result.Rules, result), "hybrid", nil
}

// fail records a failed attempt. Retriable classifier errors are handed back
// to asynq until its retries run out; anything else is final.
func (w *Worker) fail(analysisID string, err error, retryCount, maxRetry int) error {
	retriable := isRetriableClassifierError(err)

	if errors.Is(err, hybrid.ErrPrimaryUnavailable) && w.businessMetrics != nil {
		kind := "permanent"
		if retriable {
			kind = "transient"
		}
		w.businessMetrics.ClassifierErrors.WithLabelValues(kind).Inc()
	}

	if retriable && retryCount < maxRetry {
		w.logger.Warn("analysis failed, will retry",
			"analysis_id", analysisID,
			"error", err,
			"retry_count", retryCount,
			"max_retries", maxRetry,
		)
		if dbErr := w.db.UpdateStatus(analysisID, models.StatusPending, err.Error(), retryCount); dbErr != nil {
			w.logger.Error("failed to record retry", "analysis_id", analysisID, "error", dbErr)
		}
		return err
	}

	w.logger.Error("analysis failed",
		"analysis_id", analysisID,
		"error", err,
		"retry_count", retryCount,
	)
	if dbErr := w.db.UpdateStatus(analysisID, models.StatusFailed, err.Error(), retryCount); dbErr != nil {
		w.logger.Error("failed to record failure", "analysis_id", analysisID, "error", dbErr)
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// startTaskSpan starts the consumer span for a task, parented on the
// enqueuing request's span when the payload carries one
func startTaskSpan(ctx context.Context, payload AnalyzeReviewPayload, queueWaitTime time.Duration) (context.Context, trace.Span) {
	if payload.TraceID != "" && payload.SpanID != "" {
		traceID, traceErr := trace.TraceIDFromHex(payload.TraceID)
		spanID, spanErr := trace.SpanIDFromHex(payload.SpanID)
		if traceErr == nil && spanErr == nil {
			remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     spanID,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
			ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)
		}
	}

	ctx, span := otel.Tracer("reviewxai").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeReview),
			attribute.String("analysis.id", payload.AnalysisID),
			attribute.Int("text.length", len(payload.Text)),
			attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	span.AddEvent("task_processing_started", trace.WithAttributes(
		attribute.Float64("wait_time_seconds", queueWaitTime.Seconds()),
	))
	return ctx, span
}

// isRetriableClassifierError reports whether err is a classifier failure
// that may clear up on its own. Rule-engine errors are never retried.
func isRetriableClassifierError(err error) bool {
	if err == nil || !errors.Is(err, hybrid.ErrPrimaryUnavailable) {
		return false
	}
	return classifier.IsTemporary(err)
}
