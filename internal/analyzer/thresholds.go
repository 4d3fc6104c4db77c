package analyzer

import (
	"fmt"
	"math"
	"sort"
)

// Threshold names
const (
	ThresholdSentimentExtreme    = "SENTIMENT_EXTREME"
	ThresholdWordCountMin        = "WORD_COUNT_MIN"
	ThresholdWordCountMax        = "WORD_COUNT_MAX"
	ThresholdAdjNounRatio        = "ADJ_NOUN_RATIO"
	ThresholdFirstPersonRatio    = "FIRST_PERSON_RATIO"
	ThresholdSpamKeywordMin      = "SPAM_KEYWORD_MIN"
	ThresholdCapsRatioMax        = "CAPS_RATIO_MAX"
	ThresholdExcessivePunctMin   = "EXCESSIVE_PUNCT_MIN"
	ThresholdUniquenessRatioMin  = "UNIQUENESS_RATIO_MIN"
	ThresholdReadabilityMin      = "READABILITY_MIN"
	ThresholdBigramRepetitionMax = "BIGRAM_REPETITION_MAX"
	ThresholdFakeNgramMin        = "FAKE_NGRAM_MIN"
	ThresholdCorpusSimilarityMax = "CORPUS_SIMILARITY_MAX"
)

// Thresholds maps threshold names to cutoffs
type Thresholds map[string]float64

var defaultThresholds = Thresholds{
	ThresholdSentimentExtreme:   0.85,
	ThresholdWordCountMin:       15,
	ThresholdWordCountMax:       200,
	ThresholdAdjNounRatio:       2.5,
	ThresholdFirstPersonRatio:   0.15,
	ThresholdSpamKeywordMin:     3,
	ThresholdCapsRatioMax:       0.20,
	ThresholdExcessivePunctMin:  3,
	ThresholdUniquenessRatioMin: 0.60,

	ThresholdReadabilityMin:      30,
	ThresholdBigramRepetitionMax: 0.25,
	ThresholdFakeNgramMin:        1,
	ThresholdCorpusSimilarityMax: 0.5,
}

// DefaultThresholds returns a fresh copy of the documented defaults
func DefaultThresholds() Thresholds {
	return defaultThresholds.Clone()
}

// Clone returns an independent copy
func (t Thresholds) Clone() Thresholds {
	out := make(Thresholds, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge returns a copy of t with every key of overrides applied
func (t Thresholds) Merge(overrides Thresholds) Thresholds {
	out := t.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Keys returns the threshold names in sorted order
func (t Thresholds) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every threshold needed by rules is present
func (t Thresholds) Validate(rules []Rule) error {
	for _, r := range rules {
		if _, err := t.lookup(r, r.Threshold); err != nil {
			return err
		}
	}
	return nil
}

func (t Thresholds) lookup(rule Rule, name string) (float64, error) {
	v, ok := t[name]
	if !ok {
		return 0, &ConfigError{Threshold: name, Rule: rule.Name}
	}
	return v, nil
}

// IsKnownThreshold reports whether name is a documented threshold or one
// that any of rules reads
func IsKnownThreshold(name string, rules []Rule) bool {
	if _, ok := defaultThresholds[name]; ok {
		return true
	}
	for _, r := range rules {
		if r.Threshold == name {
			return true
		}
	}
	return false
}

// Known splits t into the thresholds rules can use and the sorted names of
// the ones nothing reads
func (t Thresholds) Known(rules []Rule) (known Thresholds, unknown []string) {
	known = make(Thresholds, len(t))
	for _, name := range t.Keys() {
		if IsKnownThreshold(name, rules) {
			known[name] = t[name]
		} else {
			unknown = append(unknown, name)
		}
	}
	return known, unknown
}

// ParseThreshold validates a single override such as from a CLI flag.
// Names are not checked here; unknown names are dropped by the engine.
func ParseThreshold(name string, value float64) error {
	if value < 0 || math.IsNaN(value) {
		return fmt.Errorf("threshold %q must be non-negative, got %v", name, value)
	}
	return nil
}
