package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/database"
	"github.com/zombar/reviewxai/internal/explain"
	"github.com/zombar/reviewxai/internal/hybrid"
	"github.com/zombar/reviewxai/internal/metrics"
	"github.com/zombar/reviewxai/internal/models"
	"github.com/zombar/reviewxai/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBodyBytes  = 1 << 20
	maxBatchSize  = 100
	healthTimeout = 10 * time.Second
	healthReview  = "Test review"
)

// Validation messages returned to callers
const (
	msgEmptyText      = "Review text cannot be empty"
	msgWhitespaceText = "Review text cannot be empty or whitespace only"
)

// QueueClient enqueues reviews for asynchronous analysis
type QueueClient interface {
	EnqueueAnalyzeReview(ctx context.Context, analysisID, text string) (string, error)
}

// Config holds the handler's collaborators. Hybrid, Queue, DB and Metrics
// are optional; the routes that need a missing one answer 503.
type Config struct {
	Engine         *analyzer.Analyzer
	Hybrid         *hybrid.Analyzer
	DB             *database.DB
	Queue          QueueClient
	Metrics        *metrics.BusinessMetrics
	ClassifierKind string
}

// Handler handles HTTP requests
type Handler struct {
	engine         *analyzer.Analyzer
	hybrid         *hybrid.Analyzer
	db             *database.DB
	queueClient    QueueClient
	metrics        *metrics.BusinessMetrics
	classifierKind string
	mux            *http.ServeMux
}

// NewHandler creates a new API handler with CORS support
func NewHandler(cfg Config) http.Handler {
	h := newHandler(cfg)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(h.mux)
}

func newHandler(cfg Config) *Handler {
	kind := cfg.ClassifierKind
	if kind == "" {
		kind = "none"
	}
	h := &Handler{
		engine:         cfg.Engine,
		hybrid:         cfg.Hybrid,
		db:             cfg.DB,
		queueClient:    cfg.Queue,
		metrics:        cfg.Metrics,
		classifierKind: kind,
		mux:            http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/api/predict", h.handlePredict)
	h.mux.HandleFunc("/api/explain", h.handleExplain)
	h.mux.HandleFunc("/api/batch", h.handleBatch)
	h.mux.HandleFunc("/api/jobs/", h.handleJobStatus)
	h.mux.HandleFunc("/api/analyses", h.handleListAnalyses)
	h.mux.HandleFunc("/api/analyses/", h.handleAnalysisOperations)
	h.mux.HandleFunc("/api/thresholds", h.handleThresholds)
	h.mux.HandleFunc("/api/info", h.handleInfo)
	h.mux.HandleFunc("/health", h.handleHealth)
}

type reviewRequest struct {
	Text string `json:"text"`
}

// decodeReview reads {"text": ...} and returns the trimmed, NFC-normalised
// review. On failure the error response has already been written.
func decodeReview(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	text, msg := normalizeReview(req.Text)
	if msg != "" {
		respondError(w, msg, http.StatusBadRequest)
		return "", false
	}
	return text, true
}

// normalizeReview trims and NFC-normalises text, returning a validation
// message when nothing is left
func normalizeReview(text string) (string, string) {
	if text == "" {
		return "", msgEmptyText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", msgWhitespaceText
	}
	return norm.NFC.String(text), ""
}

// handlePredict runs the hybrid analysis for one review
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.hybrid == nil {
		respondError(w, "Primary classifier is not configured", http.StatusServiceUnavailable)
		return
	}

	text, ok := decodeReview(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tracing.SetSpanAttributes(ctx, attribute.Int("text.length", len(text)))

	start := time.Now()
	result, err := h.hybrid.Analyze(ctx, text)
	if err != nil {
		h.respondAnalysisError(w, err)
		return
	}
	h.metrics.RecordHybrid("api", result)
	h.observeDuration(ctx, "hybrid", time.Since(start))

	id := uuid.New().String()
	h.save(ctx, models.NewStoredAnalysis(id, result.Rules, result))

	respondJSON(w, map[string]interface{}{
		"success":     true,
		"id":          id,
		"prediction":  result.Primary.Prediction,
		"confidence":  math.Round(result.Primary.Confidence*10000) / 10000,
		"explanation": explain.RenderCompact(result.Rules),
		"details": map[string]interface{}{
			"model_verdict": result.Primary.Prediction,
			"xai_verdict":   result.Rules.Verdict,
			"flags":         result.Rules.FlagCount,
			"agreement":     result.Agreement,
		},
	}, http.StatusOK)
}

// handleExplain runs the rule engine alone
func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, ok := decodeReview(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tracing.SetSpanAttributes(ctx, attribute.Int("text.length", len(text)))

	start := time.Now()
	result, err := h.engine.AnalyzeWithContext(ctx, text)
	if err != nil {
		h.respondAnalysisError(w, err)
		return
	}
	h.metrics.RecordAnalysis("api", result)
	h.observeDuration(ctx, "rules", time.Since(start))

	id := uuid.New().String()
	h.save(ctx, models.NewStoredAnalysis(id, result, nil))

	respondJSON(w, map[string]interface{}{
		"success":  true,
		"id":       id,
		"analysis": result,
		"report":   explain.Render(result),
		"compact":  explain.RenderCompact(result),
	}, http.StatusOK)
}

// handleBatch queues reviews for asynchronous analysis
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.queueClient == nil || h.db == nil {
		respondError(w, "Batch queue is not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Texts) == 0 {
		respondError(w, "At least one review text is required", http.StatusBadRequest)
		return
	}
	if len(req.Texts) > maxBatchSize {
		respondError(w, fmt.Sprintf("Batch size %d exceeds the limit of %d", len(req.Texts), maxBatchSize), http.StatusBadRequest)
		return
	}

	texts := make([]string, len(req.Texts))
	for i, raw := range req.Texts {
		text, msg := normalizeReview(raw)
		if msg != "" {
			respondError(w, fmt.Sprintf("texts[%d]: %s", i, msg), http.StatusBadRequest)
			return
		}
		texts[i] = text
	}

	ctx := r.Context()
	tracing.SetSpanAttributes(ctx, attribute.Int("batch.size", len(texts)))

	jobs := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		analysisID := uuid.New().String()
		if _, err := h.db.CreatePending(analysisID, text); err != nil {
			respondError(w, fmt.Sprintf("Failed to create job: %v", err), http.StatusInternalServerError)
			return
		}

		taskID, err := h.queueClient.EnqueueAnalyzeReview(ctx, analysisID, text)
		if err != nil {
			if dbErr := h.db.UpdateStatus(analysisID, models.StatusFailed, err.Error(), 0); dbErr != nil {
				slog.Error("failed to mark job failed", "analysis_id", analysisID, "error", dbErr)
			}
			respondError(w, fmt.Sprintf("Failed to enqueue analysis: %v", err), http.StatusInternalServerError)
			return
		}
		if h.metrics != nil {
			h.metrics.BatchJobsEnqueued.Inc()
		}

		jobs = append(jobs, map[string]string{
			"job_id":  analysisID,
			"task_id": taskID,
			"status":  models.StatusPending,
		})
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"jobs":    jobs,
		"message": "Reviews queued for analysis",
	}, http.StatusAccepted)
}

// handleJobStatus handles job status requests
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.db == nil {
		respondError(w, "Storage is not configured", http.StatusServiceUnavailable)
		return
	}

	jobID := r.URL.Path[len("/api/jobs/"):]
	if idx := strings.Index(jobID, "/"); idx != -1 {
		jobID = jobID[:idx]
	}
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.db.GetAnalysis(jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, "Job not found", http.StatusNotFound)
			return
		}
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"success":     true,
		"job_id":      jobID,
		"status":      analysis.Status,
		"retry_count": analysis.RetryCount,
		"created_at":  analysis.CreatedAt,
		"updated_at":  analysis.UpdatedAt,
	}
	if analysis.Error != "" {
		response["error"] = analysis.Error
	}
	if analysis.Status == models.StatusCompleted {
		response["analysis"] = analysis
	}

	respondJSON(w, response, http.StatusOK)
}

// handleListAnalyses handles listing all analyses with pagination
func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.db == nil {
		respondError(w, "Storage is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 10
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	analyses, err := h.db.ListAnalyses(limit, offset)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, analyses, http.StatusOK)
}

// handleAnalysisOperations handles GET and DELETE for specific analyses
func (h *Handler) handleAnalysisOperations(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, "Storage is not configured", http.StatusServiceUnavailable)
		return
	}

	id := r.URL.Path[len("/api/analyses/"):]
	if id == "" {
		respondError(w, "Analysis ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		analysis, err := h.db.GetAnalysis(id)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, analysis, http.StatusOK)
	case http.MethodDelete:
		if err := h.db.DeleteAnalysis(id); err != nil {
			respondStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleThresholds reads and changes the engine's threshold configuration.
// PUT replaces it and must supply every threshold the active rules read;
// PATCH merges the given keys into the current values.
func (h *Handler) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, map[string]interface{}{
			"success":    true,
			"thresholds": h.engine.Thresholds(),
		}, http.StatusOK)
		return
	case http.MethodPut, http.MethodPatch:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzer.Thresholds
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, name := range req.Keys() {
		if err := analyzer.ParseThreshold(name, req[name]); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var ignored []string
	if r.Method == http.MethodPut {
		if err := req.Validate(h.engine.Rules()); err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ignored = h.engine.ReplaceThresholds(req)
	} else {
		ignored = h.engine.UpdateThresholds(req)
	}

	if h.metrics != nil {
		h.metrics.ThresholdUpdates.Inc()
	}
	slog.Info("thresholds updated", "method", r.Method, "keys", req.Keys(), "ignored", ignored)

	response := map[string]interface{}{
		"success":    true,
		"thresholds": h.engine.Thresholds(),
	}
	if len(ignored) > 0 {
		response["ignored"] = ignored
	}
	respondJSON(w, response, http.StatusOK)
}

// handleInfo describes the loaded classifier and rule engine
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modelType := "Rule-based XAI"
	if h.hybrid != nil {
		modelType = "Hybrid (primary classifier + rule-based XAI)"
	}

	respondJSON(w, map[string]interface{}{
		"model_name": "Fake Review Detection",
		"model_type": modelType,
		"classifier": h.classifierKind,
		"labels": map[string]string{
			models.PredictionFake: fmt.Sprintf("%s (%s) - Likely fake review", classifier.LabelTexts[0], classifier.LabelNames[0]),
			models.PredictionReal: fmt.Sprintf("%s (%s) - Likely genuine review", classifier.LabelTexts[1], classifier.LabelNames[1]),
		},
		"features":          h.engine.FeatureNames(),
		"advanced_features": h.engine.AdvancedFeatures(),
		"thresholds":        h.engine.Thresholds(),
	}, http.StatusOK)
}

// handleHealth runs a test analysis through each configured component
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK

	rules := "ok"
	if _, err := h.engine.AnalyzeWithContext(ctx, healthReview); err != nil {
		rules = err.Error()
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	classifierStatus := "not_configured"
	if h.hybrid != nil {
		classifierStatus = "ok"
		if _, err := h.hybrid.Analyze(ctx, healthReview); err != nil {
			classifierStatus = err.Error()
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	respondJSON(w, map[string]interface{}{
		"status":     status,
		"classifier": classifierStatus,
		"rules":      rules,
		"time":       time.Now().Format(time.RFC3339),
	}, code)
}

// save persists an analysis when storage is configured. Failures are logged
// and do not fail the request.
func (h *Handler) save(ctx context.Context, a *models.StoredAnalysis) {
	if h.db == nil {
		return
	}

	_, span := otel.Tracer("reviewxai").Start(ctx, "database.save_analysis")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.id", a.ID))

	if err := h.db.SaveAnalysis(a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		slog.Error("failed to save analysis", "analysis_id", a.ID, "error", err)
	}
}

func (h *Handler) observeDuration(ctx context.Context, mode string, d time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.ObserveDurationWithExemplar(ctx, h.metrics.AnalysisDuration, d, mode)
}

// respondAnalysisError maps core errors onto HTTP status codes
func (h *Handler) respondAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analyzer.ErrEmptyText):
		respondError(w, msgWhitespaceText, http.StatusBadRequest)
	case errors.Is(err, hybrid.ErrPrimaryUnavailable):
		if h.metrics != nil {
			kind := "permanent"
			if classifier.IsTemporary(err) {
				kind = "transient"
			}
			h.metrics.ClassifierErrors.WithLabelValues(kind).Inc()
		}
		respondError(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusServiceUnavailable)
	default:
		respondError(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusInternalServerError)
	}
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, err.Error(), http.StatusNotFound)
		return
	}
	respondError(w, err.Error(), http.StatusInternalServerError)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends the failure shape {"success": false, "error": ...}
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]interface{}{
		"success": false,
		"error":   message,
	}, statusCode)
}
