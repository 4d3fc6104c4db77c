package config

import (
	"fmt"
	"strings"

	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/ollama"
)

// Classifier kinds accepted by NewClassifier
const (
	ClassifierNone   = "none"
	ClassifierHTTP   = "http"
	ClassifierOllama = "ollama"
	ClassifierStatic = "static"
)

// ClassifierConfig selects and configures the primary classifier
type ClassifierConfig struct {
	Kind        string
	URL         string // inference endpoint for http
	Token       string // bearer token for http
	MaxRetries  uint64
	OllamaURL   string
	OllamaModel string
	StaticFake  float64 // fake probability answered by static
}

// NewClassifier builds the configured classifier. Kind "none" (or empty)
// returns nil, nil.
func NewClassifier(cfg ClassifierConfig) (classifier.Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", ClassifierNone:
		return nil, nil
	case ClassifierHTTP:
		var opts []classifier.HTTPOption
		if cfg.Token != "" {
			opts = append(opts, classifier.WithToken(cfg.Token))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, classifier.WithMaxRetries(cfg.MaxRetries))
		}
		c, err := classifier.NewHTTPClassifier(cfg.URL, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ClassifierOllama:
		url := cfg.OllamaURL
		if url == "" {
			url = ollama.DefaultURL
		}
		model := cfg.OllamaModel
		if model == "" {
			model = ollama.DefaultModel
		}
		c, err := ollama.New(url, model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ClassifierStatic:
		c, err := classifier.NewStatic(cfg.StaticFake, 1-cfg.StaticFake)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (want none, http, ollama or static)", cfg.Kind)
	}
}
