package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			ollamaURL:     "",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "qwen2.5",
			expectError:   false,
			expectedModel: "qwen2.5",
		},
		{
			name:          "custom URL, default model",
			ollamaURL:     "http://localhost:11434",
			model:         "",
			expectError:   false,
			expectedModel: DefaultModel,
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
		{
			name:        "missing scheme",
			ollamaURL:   "localhost",
			model:       "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if client == nil {
					t.Fatal("Expected client but got nil")
				}
				if client.Model() != tt.expectedModel {
					t.Errorf("Expected model %s, got %s", tt.expectedModel, client.Model())
				}
				if client.timeout != DefaultTimeout {
					t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.timeout)
				}
			}
		})
	}
}

func TestParseFakeProbability(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		expected    float64
		expectError bool
	}{
		{
			name:     "plain object",
			response: `{"fake_probability": 0.82, "reasoning": "stock phrases"}`,
			expected: 0.82,
		},
		{
			name:     "object with prefix text",
			response: "Here is my verdict:\n{\"fake_probability\": 0.1}",
			expected: 0.1,
		},
		{
			name:     "zero",
			response: `{"fake_probability": 0}`,
			expected: 0,
		},
		{
			name:        "no JSON object",
			response:    "I think it is fake",
			expectError: true,
		},
		{
			name:        "missing field",
			response:    `{"reasoning": "unsure"}`,
			expectError: true,
		},
		{
			name:        "out of range",
			response:    `{"fake_probability": 1.7}`,
			expectError: true,
		},
		{
			name:        "invalid JSON",
			response:    `{"fake_probability": }`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFakeProbability(tt.response)
			if tt.expectError {
				if !errors.Is(err, classifier.ErrInvalidPrediction) {
					t.Errorf("Expected ErrInvalidPrediction, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["format"] != "json" {
			t.Errorf("Expected format json, got %v", req["format"])
		}
		if req["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", req["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":    "test-model",
			"response": `{"fake_probability": 0.9, "reasoning": "exaggerated"}`,
			"done":     true,
		})
	}))
	defer server.Close()

	client, err := New(server.URL, "test-model")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p, err := client.Classify(context.Background(), "AMAZING!!! BEST PRODUCT EVER!!!")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Prediction != models.PredictionFake || p.Label != models.LabelComputerGenerated {
		t.Errorf("Expected FAKE/CG, got %s/%s", p.Prediction, p.Label)
	}
	if p.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", p.Confidence)
	}
}

func TestClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "model not loaded"}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "test-model")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := client.Classify(context.Background(), "text"); err == nil {
		t.Error("Expected error but got none")
	}
}

func TestContextHandling(t *testing.T) {
	client, err := New("http://localhost:11434", "test-model")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	client.timeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GenerateResponse(ctx, "test prompt", ""); err == nil {
		t.Error("Expected error with cancelled context")
	}
}

func TestClassifierInterface(t *testing.T) {
	var _ classifier.Classifier = (*Client)(nil)
}
