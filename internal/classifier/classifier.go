// Package classifier provides the primary fake-review classifiers whose
// verdicts the rule engine explains.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/zombar/reviewxai/internal/models"
)

// ErrInvalidPrediction is returned for probabilities that are out of range
// or do not sum to 1
var ErrInvalidPrediction = errors.New("invalid prediction")

// probabilityTolerance bounds how far fake+real may drift from 1
const probabilityTolerance = 0.01

// Label descriptions, indexed by class id
var (
	LabelNames = [2]string{models.LabelComputerGenerated, models.LabelOriginal}
	LabelTexts = [2]string{"Computer Generated", "Original"}
)

// Classifier returns the primary verdict for a review
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Prediction, error)
}

// FromProbabilities builds a prediction from class probabilities. Class 0
// (CG) is fabricated and class 1 (OR) is genuine; ties go to genuine.
func FromProbabilities(fake, real float64) (models.Prediction, error) {
	for _, p := range []float64{fake, real} {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return models.Prediction{}, fmt.Errorf("%w: probability %v out of range", ErrInvalidPrediction, p)
		}
	}
	if math.Abs(fake+real-1) > probabilityTolerance {
		return models.Prediction{}, fmt.Errorf("%w: probabilities sum to %.4f", ErrInvalidPrediction, fake+real)
	}

	p := models.Prediction{Probabilities: [2]float64{fake, real}}
	if fake > real {
		p.Label = models.LabelComputerGenerated
		p.Prediction = models.PredictionFake
		p.Confidence = fake
	} else {
		p.Label = models.LabelOriginal
		p.Prediction = models.PredictionReal
		p.Confidence = real
	}
	return p, nil
}

// Validate checks that p is a well-formed prediction
func Validate(p models.Prediction) error {
	switch {
	case p.Label == models.LabelComputerGenerated && p.Prediction == models.PredictionFake:
	case p.Label == models.LabelOriginal && p.Prediction == models.PredictionReal:
	default:
		return fmt.Errorf("%w: label %q with prediction %q", ErrInvalidPrediction, p.Label, p.Prediction)
	}
	if p.Confidence < 0 || p.Confidence > 1 || math.IsNaN(p.Confidence) {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidPrediction, p.Confidence)
	}
	return nil
}

// Static always returns the same prediction
type Static struct {
	Prediction models.Prediction
	Err        error
}

// NewStatic returns a classifier that answers with the given probabilities
func NewStatic(fake, real float64) (*Static, error) {
	p, err := FromProbabilities(fake, real)
	if err != nil {
		return nil, err
	}
	return &Static{Prediction: p}, nil
}

func (s *Static) Classify(ctx context.Context, _ string) (models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	if s.Err != nil {
		return models.Prediction{}, s.Err
	}
	return s.Prediction, nil
}
