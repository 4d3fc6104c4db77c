package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	cb "github.com/sony/gobreaker"
	"github.com/zombar/reviewxai/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultMaxRetries  = 3
)

// StatusError is a non-2xx answer from the inference endpoint
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPClassifier calls a text-classification inference endpoint that
// accepts {"inputs": text} and answers with label scores
type HTTPClassifier struct {
	url        string
	token      string
	httpClient *http.Client
	breaker    *cb.CircuitBreaker
	maxRetries uint64
}

// HTTPOption configures an HTTPClassifier
type HTTPOption func(*HTTPClassifier)

// WithToken sends a bearer token with every request
func WithToken(token string) HTTPOption {
	return func(c *HTTPClassifier) { c.token = token }
}

// WithHTTPClient replaces the default instrumented client
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClassifier) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a temporary failure is retried
func WithMaxRetries(n uint64) HTTPOption {
	return func(c *HTTPClassifier) { c.maxRetries = n }
}

// NewHTTPClassifier creates a classifier for the endpoint at url
func NewHTTPClassifier(url string, opts ...HTTPOption) (*HTTPClassifier, error) {
	if url == "" {
		return nil, errors.New("classifier URL is required")
	}

	c := &HTTPClassifier{
		url: url,
		httpClient: &http.Client{
			Timeout:   DefaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = cb.NewCircuitBreaker(cb.Settings{
		Name:        "classifier",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts cb.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to cb.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify sends text to the endpoint, retrying temporary failures with
// exponential backoff behind a circuit breaker
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (models.Prediction, error) {
	var scores []labelScore

	operation := func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.post(ctx, text)
		})
		if err != nil {
			if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) || !IsTemporary(err) {
				return backoff.Permanent(err)
			}
			slog.Warn("classifier request failed, retrying", "error", err)
			return err
		}
		scores = result.([]labelScore)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)); err != nil {
		return models.Prediction{}, fmt.Errorf("classification failed: %w", err)
	}

	return predictionFromScores(scores)
}

func (c *HTTPClassifier) post(ctx context.Context, text string) ([]labelScore, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return parseScores(data)
}

// parseScores accepts [[{label,score}...]] or [{label,score}...]
func parseScores(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", ErrInvalidPrediction, err)
	}
	return flat, nil
}

func predictionFromScores(scores []labelScore) (models.Prediction, error) {
	var fake, real float64
	var haveFake, haveReal bool
	for _, s := range scores {
		switch strings.ToUpper(s.Label) {
		case models.LabelComputerGenerated, "LABEL_0", models.PredictionFake:
			fake, haveFake = s.Score, true
		case models.LabelOriginal, "LABEL_1", models.PredictionReal:
			real, haveReal = s.Score, true
		}
	}

	switch {
	case haveFake && !haveReal:
		real = 1 - fake
	case haveReal && !haveFake:
		fake = 1 - real
	case !haveFake && !haveReal:
		return models.Prediction{}, fmt.Errorf("%w: no known labels in response", ErrInvalidPrediction)
	}
	return FromProbabilities(fake, real)
}

// IsTemporary reports whether a classifier error may succeed on retry.
// Transport failures, 5xx/429 answers and an open breaker count as temporary.
func IsTemporary(err error) bool {
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	if errors.Is(err, ErrInvalidPrediction) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
