package analyzer

import (
	"fmt"
	"math"
	"sync"

	"github.com/jdkato/prose/v2"
	"github.com/jonreiter/govader"
)

// PartOfSpeechTagger returns one Penn Treebank tag per token of text
type PartOfSpeechTagger interface {
	Tags(text string) ([]string, error)
}

// SentimentScorer returns a compound sentiment score in [-1, 1]
type SentimentScorer interface {
	Score(text string) (float64, error)
}

var (
	modelOnce sync.Once
	model     *prose.Model
	modelErr  error
)

// loadModel loads prose's bundled tagging model once per process
func loadModel() (*prose.Model, error) {
	modelOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				modelErr = fmt.Errorf("failed to load tagging model: %v", r)
			}
		}()

		doc, err := prose.NewDocument("Load the model.",
			prose.WithSegmentation(false),
			prose.WithExtraction(false),
		)
		if err != nil {
			modelErr = fmt.Errorf("failed to load tagging model: %w", err)
			return
		}
		model = doc.Model
	})
	return model, modelErr
}

// proseTagger tags with prose's averaged perceptron model
type proseTagger struct{}

// NewProseTagger returns the default part-of-speech tagger
func NewProseTagger() PartOfSpeechTagger {
	return proseTagger{}
}

func (proseTagger) Tags(text string) (tags []string, err error) {
	m, err := loadModel()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			tags = nil
			err = fmt.Errorf("tagger panic: %v", r)
		}
	}()

	doc, err := prose.NewDocument(text,
		prose.UsingModel(m),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, err
	}

	tokens := doc.Tokens()
	tags = make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tags = append(tags, tok.Tag)
	}
	return tags, nil
}

// vaderScorer scores the whole review with VADER
type vaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer returns the default sentiment scorer
func NewVaderScorer() SentimentScorer {
	return &vaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *vaderScorer) Score(text string) (float64, error) {
	score := v.analyzer.PolarityScores(text).Compound
	score = math.Max(-1.0, math.Min(1.0, score))
	return math.Round(score*10000) / 10000, nil
}
