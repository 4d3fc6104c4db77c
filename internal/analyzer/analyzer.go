package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zombar/reviewxai/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Analyzer is the rule-based explainability engine. It owns one mutable
// threshold configuration, copied from the defaults at construction.
type Analyzer struct {
	mu         sync.RWMutex
	thresholds Thresholds

	extractors []Extractor
	rules      []Rule
	advanced   bool
}

type options struct {
	thresholds Thresholds
	tagger     PartOfSpeechTagger
	scorer     SentimentScorer
	advanced   bool
	corpus     []string
	extractors []Extractor
	rules      []Rule
}

// Option configures an Analyzer
type Option func(*options)

// WithThresholds overlays t onto the defaults
func WithThresholds(t Thresholds) Option {
	return func(o *options) { o.thresholds = o.thresholds.Merge(t) }
}

// WithTagger replaces the part-of-speech tagger
func WithTagger(t PartOfSpeechTagger) Option {
	return func(o *options) { o.tagger = t }
}

// WithSentimentScorer replaces the sentiment scorer
func WithSentimentScorer(s SentimentScorer) Option {
	return func(o *options) { o.scorer = s }
}

// WithAdvancedFeatures enables the tier 3 extractors and rules
func WithAdvancedFeatures() Option {
	return func(o *options) { o.advanced = true }
}

// WithReferenceCorpus sets the known reviews used by corpus similarity.
// It implies WithAdvancedFeatures.
func WithReferenceCorpus(corpus []string) Option {
	return func(o *options) {
		o.advanced = true
		o.corpus = append([]string(nil), corpus...)
	}
}

// WithRule appends a custom extractor and the rule that scores it, after
// the built-in rules
func WithRule(e Extractor, r Rule) Option {
	return func(o *options) {
		o.extractors = append(o.extractors, e)
		o.rules = append(o.rules, r)
	}
}

// New creates an Analyzer with default thresholds
func New(opts ...Option) *Analyzer {
	o := &options{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(o)
	}
	if o.tagger == nil {
		o.tagger = NewProseTagger()
	}
	if o.scorer == nil {
		o.scorer = NewVaderScorer()
	}

	extractors := defaultExtractors(o.tagger, o.scorer)
	rules := DefaultRules()
	if o.advanced {
		extractors = append(extractors, advancedExtractors(o.corpus)...)
		rules = append(rules, AdvancedRules()...)
	}
	extractors = append(extractors, o.extractors...)
	rules = append(rules, o.rules...)

	thresholds, unknown := o.thresholds.Known(rules)
	warnUnknown(unknown)

	return &Analyzer{
		thresholds: thresholds,
		extractors: extractors,
		rules:      rules,
		advanced:   o.advanced,
	}
}

// Thresholds returns a snapshot of the current configuration
func (a *Analyzer) Thresholds() Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds.Clone()
}

// SetThreshold changes one cutoff; later analyses see the new value
func (a *Analyzer) SetThreshold(name string, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds[name] = value
}

// ReplaceThresholds swaps in the known keys of t and returns the names it
// ignored. Keys the rules need but t lacks make subsequent analyses fail
// with a ConfigError.
func (a *Analyzer) ReplaceThresholds(t Thresholds) []string {
	known, unknown := t.Known(a.rules)
	warnUnknown(unknown)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = known
	return unknown
}

// UpdateThresholds merges the known keys of t into the current
// configuration and returns the names it ignored
func (a *Analyzer) UpdateThresholds(t Thresholds) []string {
	known, unknown := t.Known(a.rules)
	warnUnknown(unknown)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = a.thresholds.Merge(known)
	return unknown
}

func warnUnknown(names []string) {
	if len(names) > 0 {
		slog.Warn("ignoring unknown thresholds", "thresholds", names)
	}
}

// Rules returns the active rules in evaluation order
func (a *Analyzer) Rules() []Rule {
	return append([]Rule(nil), a.rules...)
}

// FeatureNames returns the active feature names in extraction order
func (a *Analyzer) FeatureNames() []string {
	names := make([]string, 0, len(a.extractors))
	for _, e := range a.extractors {
		names = append(names, e.Name())
	}
	return names
}

// AdvancedFeatures reports whether tier 3 is enabled
func (a *Analyzer) AdvancedFeatures() bool {
	return a.advanced
}

// ExtractFeatures runs every extractor. It returns an *ExtractionError for
// the first extractor that fails rather than a partial set.
func (a *Analyzer) ExtractFeatures(text string) (models.FeatureSet, error) {
	if strings.TrimSpace(text) == "" {
		return models.FeatureSet{}, ErrEmptyText
	}

	features := make([]models.Feature, 0, len(a.extractors))
	for _, e := range a.extractors {
		m, err := e.Extract(text)
		if err != nil {
			return models.FeatureSet{}, &ExtractionError{Feature: e.Name(), Err: err}
		}
		features = append(features, models.Feature{
			Name:    e.Name(),
			Value:   m.Value,
			Counts:  m.Counts,
			Matches: m.Matches,
		})
	}
	return models.NewFeatureSet(features...), nil
}

// Analyze extracts, scores and explains a review
func (a *Analyzer) Analyze(text string) (*models.AnalysisResult, error) {
	return a.AnalyzeWithContext(context.Background(), text)
}

// AnalyzeWithContext is Analyze with a trace span
func (a *Analyzer) AnalyzeWithContext(ctx context.Context, text string) (*models.AnalysisResult, error) {
	_, span := otel.Tracer("reviewxai").Start(ctx, "analyzer.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(text)))

	features, err := a.ExtractFeatures(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feature extraction failed")
		return nil, err
	}

	card, err := Evaluate(features, a.Thresholds(), a.rules)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring failed")
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	span.SetAttributes(
		attribute.String("analysis.verdict", string(card.Verdict)),
		attribute.Int("analysis.confidence", card.Confidence),
		attribute.Int("analysis.flag_count", card.FlagCount),
	)
	slog.Debug("review analyzed",
		"verdict", card.Verdict,
		"confidence", card.Confidence,
		"points", card.Points,
		"flags", card.FlagCount,
	)

	return &models.AnalysisResult{
		ReviewText: text,
		Features:   features,
		Verdict:    card.Verdict,
		Confidence: card.Confidence,
		Reasons:    card.Reasons,
		FlagCount:  card.FlagCount,
	}, nil
}
