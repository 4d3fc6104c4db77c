package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zombar/reviewxai/internal/metrics"
	"github.com/zombar/reviewxai/internal/models"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	bm := metrics.NewBusinessMetrics(serviceName, reg)
	bm.RecordAnalysis("api", &models.AnalysisResult{Verdict: models.VerdictSuspicious, FlagCount: 2})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("Expected content-type to contain 'text/plain', got '%s'", contentType)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"go_goroutines",
		`reviewxai_analyses_total{source="api",verdict="SUSPICIOUS"} 1`,
		"reviewxai_flags_per_analysis_bucket",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metrics to contain '%s'", metric)
		}
	}
}
