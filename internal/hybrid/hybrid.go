// Package hybrid reconciles the primary classifier's verdict with the rule
// engine's explanation.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/classifier"
	"github.com/zombar/reviewxai/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrPrimaryUnavailable means there is no usable primary prediction
	ErrPrimaryUnavailable = errors.New("primary classifier result unavailable")
	// ErrRulesUnavailable means there is no rule-engine result
	ErrRulesUnavailable = errors.New("rule engine result unavailable")
)

// SaysFake reports whether a rule verdict counts as "fake" for agreement.
// SUSPICIOUS counts as fake.
func SaysFake(v models.Verdict) bool {
	return v == models.VerdictLikelyFake || v == models.VerdictSuspicious
}

// Reconcile combines a primary prediction and a rule-engine result for the
// same text. It does no scoring of its own.
func Reconcile(primary *models.Prediction, rules *models.AnalysisResult) (*models.HybridResult, error) {
	if primary == nil {
		return nil, ErrPrimaryUnavailable
	}
	if err := classifier.Validate(*primary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrimaryUnavailable, err)
	}
	if rules == nil {
		return nil, ErrRulesUnavailable
	}

	primarySaysFake := primary.Prediction == models.PredictionFake
	rulesSayFake := SaysFake(rules.Verdict)

	return &models.HybridResult{
		ReviewText:      rules.ReviewText,
		Primary:         *primary,
		Rules:           rules,
		PrimarySaysFake: primarySaysFake,
		RulesSayFake:    rulesSayFake,
		Agreement:       primarySaysFake == rulesSayFake,
	}, nil
}

// Analyzer runs the primary classifier and the rule engine on one review
type Analyzer struct {
	classifier classifier.Classifier
	engine     *analyzer.Analyzer
}

// New creates a hybrid analyzer
func New(c classifier.Classifier, engine *analyzer.Analyzer) *Analyzer {
	return &Analyzer{classifier: c, engine: engine}
}

// Engine returns the rule engine
func (h *Analyzer) Engine() *analyzer.Analyzer {
	return h.engine
}

// Analyze classifies text, explains it and reconciles the two. A classifier
// failure is returned wrapped in ErrPrimaryUnavailable.
func (h *Analyzer) Analyze(ctx context.Context, text string) (*models.HybridResult, error) {
	ctx, span := otel.Tracer("reviewxai").Start(ctx, "hybrid.analyze")
	defer span.End()

	if h.classifier == nil {
		span.SetStatus(codes.Error, "no classifier")
		return nil, ErrPrimaryUnavailable
	}

	prediction, err := h.classify(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return nil, fmt.Errorf("%w: %w", ErrPrimaryUnavailable, err)
	}

	rules, err := h.engine.AnalyzeWithContext(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule analysis failed")
		return nil, err
	}

	result, err := Reconcile(&prediction, rules)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("primary.prediction", prediction.Prediction),
		attribute.String("rules.verdict", string(rules.Verdict)),
		attribute.Bool("agreement", result.Agreement),
	)
	if !result.Agreement {
		slog.Info("primary classifier and rule engine disagree",
			"prediction", prediction.Prediction,
			"verdict", rules.Verdict,
			"confidence", prediction.Confidence,
		)
	}
	return result, nil
}

func (h *Analyzer) classify(ctx context.Context, text string) (models.Prediction, error) {
	ctx, span := otel.Tracer("reviewxai").Start(ctx, "classifier.classify")
	defer span.End()

	p, err := h.classifier.Classify(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Prediction{}, err
	}
	span.SetAttributes(
		attribute.String("classifier.label", p.Label),
		attribute.Float64("classifier.confidence", p.Confidence),
	)
	return p, nil
}
