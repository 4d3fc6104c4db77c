package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/models"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL: %q", ollamaURL)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// Model returns the model name used for generation
func (c *Client) Model() string {
	return c.model
}

// GenerateResponse generates a response from the LLM. A non-empty format
// is passed through to Ollama, e.g. "json".
func (c *Client) GenerateResponse(ctx context.Context, prompt, format string) (string, error) {
	slog.Debug("ollama request", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  new(bool), // false
		Options: map[string]any{"temperature": 0},
	}
	if format != "" {
		raw, err := json.Marshal(format)
		if err != nil {
			return "", err
		}
		req.Format = raw
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		slog.Warn("ollama generation failed", "model", c.model, "error", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	slog.Debug("ollama response received", "chars", len(result))
	return result, nil
}

// verdictResponse is the JSON object the model is asked for
type verdictResponse struct {
	FakeProbability *float64 `json:"fake_probability"`
	Reasoning       string   `json:"reasoning"`
}

// Classify asks the model how likely the review is to be fabricated
func (c *Client) Classify(ctx context.Context, text string) (models.Prediction, error) {
	prompt := fmt.Sprintf(`You are a product review moderator. Decide whether the following review was fabricated (computer generated or written to order) or is an original customer review.

Consider factors such as:
1. Specific details about the product and its use
2. Balanced versus exaggerated emotion
3. Marketing language and stock phrases
4. Natural imperfections in the writing

Respond with a JSON object with:
- fake_probability: number from 0.0 (certainly original) to 1.0 (certainly fabricated)
- reasoning: one short sentence

Review:
%s

Return ONLY the JSON object, nothing else:`, text)

	response, err := c.GenerateResponse(ctx, prompt, "json")
	if err != nil {
		return models.Prediction{}, err
	}

	fake, err := parseFakeProbability(response)
	if err != nil {
		return models.Prediction{}, err
	}
	return classifier.FromProbabilities(fake, 1-fake)
}

// parseFakeProbability finds the JSON object in response and reads
// fake_probability from it
func parseFakeProbability(response string) (float64, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return 0, fmt.Errorf("%w: no JSON object found in response", classifier.ErrInvalidPrediction)
	}

	var result verdictResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &result); err != nil {
		return 0, fmt.Errorf("%w: failed to parse verdict JSON: %v", classifier.ErrInvalidPrediction, err)
	}
	if result.FakeProbability == nil {
		return 0, fmt.Errorf("%w: fake_probability missing", classifier.ErrInvalidPrediction)
	}

	p := *result.FakeProbability
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: fake_probability %v out of range", classifier.ErrInvalidPrediction, p)
	}
	return p, nil
}
