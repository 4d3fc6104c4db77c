package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task type constants
const (
	TypeAnalyzeReview = "reviewxai:analyze_review"
)

// QueueReviews is the queue analyze tasks are placed on
const QueueReviews = "review-analysis"

// DefaultMaxRetries bounds asynq retries for one review
const DefaultMaxRetries = 8

// AnalyzeReviewPayload represents the payload for asynchronous review analysis
type AnalyzeReviewPayload struct {
	AnalysisID string `json:"analysis_id"`
	Text       string `json:"text"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client     *asynq.Client
	maxRetries int
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr  string
	MaxRetries int
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Client{
		client:     asynq.NewClient(redisOpt),
		maxRetries: maxRetries,
	}
}

// newAnalyzeReviewTask builds the task for one review, carrying the trace
// context of ctx when there is one
func newAnalyzeReviewTask(ctx context.Context, analysisID, text string) (*asynq.Task, error) {
	payload := AnalyzeReviewPayload{
		AnalysisID: analysisID,
		Text:       text,
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeReview),
			attribute.String("analysis_id", analysisID),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return asynq.NewTask(TypeAnalyzeReview, payloadBytes, asynq.TaskID(analysisID)), nil
}

// EnqueueAnalyzeReview enqueues a review for asynchronous analysis. The
// analysis id doubles as the task id so a job cannot be queued twice.
func (c *Client) EnqueueAnalyzeReview(ctx context.Context, analysisID, text string) (string, error) {
	task, err := newAnalyzeReviewTask(ctx, analysisID, text)
	if err != nil {
		return "", err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(c.maxRetries),
		asynq.Timeout(5 * time.Minute),
		asynq.Queue(QueueReviews),
		asynq.Retention(7 * 24 * time.Hour), // Keep completed tasks for 7 days
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analyze review task: %w", err)
	}

	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
