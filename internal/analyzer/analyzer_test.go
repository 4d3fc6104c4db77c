package analyzer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zombar/reviewxai/internal/models"
)

const (
	hypeReview    = "AMAZING!!! BEST PRODUCT EVER!!! I LOVE IT SO MUCH!!!"
	laptopReview  = "Bought this laptop 3 weeks ago for work. Battery lasts about 6 hours with normal use. Keyboard is comfortable for typing. Screen could be brighter for outdoor use. Overall good value for the price."
	shortReview   = "Great product!"
	repeatyReview = "Great great great product great quality great price great"
)

type fixedTagger struct {
	tags []string
	err  error
}

func (f fixedTagger) Tags(string) ([]string, error) { return f.tags, f.err }

type fixedScorer float64

func (f fixedScorer) Score(string) (float64, error) { return float64(f), nil }

func TestAnalyzeScenarios(t *testing.T) {
	a := New()

	t.Run("hype review is flagged", func(t *testing.T) {
		result, err := a.Analyze(hypeReview)
		require.NoError(t, err)

		assert.Contains(t, []models.Verdict{models.VerdictLikelyFake, models.VerdictSuspicious}, result.Verdict)
		assert.Greater(t, result.Confidence, 50)
		assert.GreaterOrEqual(t, result.FlagCount, 2)
	})

	t.Run("detailed review is genuine", func(t *testing.T) {
		result, err := a.Analyze(laptopReview)
		require.NoError(t, err)

		assert.Equal(t, models.VerdictLikelyGenuine, result.Verdict)
		assert.LessOrEqual(t, result.FlagCount, 1)
		assert.Equal(t, GenuineConfidence, result.Confidence)
	})

	t.Run("two word review is short", func(t *testing.T) {
		result, err := a.Analyze(shortReview)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Features.Int(FeatureWordCount))
		assert.True(t, hasReason(result, "Length", "Suspiciously short review (2 words)"))
	})

	t.Run("repetitive review is redundant", func(t *testing.T) {
		result, err := a.Analyze(repeatyReview)
		require.NoError(t, err)

		ratio, ok := result.Features.Value(FeatureUniquenessRatio)
		require.True(t, ok)
		assert.Less(t, ratio, 0.60)
		assert.True(t, hasReason(result, "Redundancy", ""))
	})
}

func TestThresholdMutationTakesEffect(t *testing.T) {
	a := New()

	before, err := a.Analyze(laptopReview)
	require.NoError(t, err)
	assert.False(t, hasReason(before, "Length", "Suspiciously short review"))

	a.SetThreshold(ThresholdWordCountMin, 100)

	after, err := a.Analyze(laptopReview)
	require.NoError(t, err)
	assert.True(t, hasReason(after, "Length", "Suspiciously short review (34 words)"))
	assert.Equal(t, before.FlagCount+1, after.FlagCount)

	// other instances and the defaults are untouched
	assert.Equal(t, 15.0, DefaultThresholds()[ThresholdWordCountMin])
	assert.Equal(t, 15.0, New().Thresholds()[ThresholdWordCountMin])
}

func TestThresholdsSnapshotIsCopy(t *testing.T) {
	a := New()
	snapshot := a.Thresholds()
	snapshot[ThresholdCapsRatioMax] = 0

	assert.Equal(t, 0.20, a.Thresholds()[ThresholdCapsRatioMax])
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := New()
	for _, text := range []string{hypeReview, laptopReview, shortReview, repeatyReview} {
		first, err := a.Analyze(text)
		require.NoError(t, err)
		second, err := a.Analyze(text)
		require.NoError(t, err)
		assert.Equal(t, first, second, text)
	}
}

func TestAnalyzeInvariants(t *testing.T) {
	a := New()
	labels := ruleLabels(a.Rules())

	for _, text := range []string{hypeReview, laptopReview, shortReview, repeatyReview, "ok", "THIS IS THE WORST!!! Terrible. Awful... pathetic??"} {
		result, err := a.Analyze(text)
		require.NoError(t, err)

		assert.NotEmpty(t, result.Reasons, text)
		assert.GreaterOrEqual(t, result.Confidence, 0)
		assert.LessOrEqual(t, result.Confidence, MaxConfidence)

		flags := 0
		var flagLabels []string
		for _, r := range result.Reasons {
			if r.IsFlag {
				flags++
				flagLabels = append(flagLabels, r.Feature)
			}
		}
		assert.Equal(t, flags, result.FlagCount, text)
		assert.True(t, isSubsequence(flagLabels, labels), "reasons out of order: %v", flagLabels)

		if result.Verdict == models.VerdictLikelyGenuine {
			assert.Equal(t, GenuineConfidence, result.Confidence)
			last := result.Reasons[len(result.Reasons)-1]
			assert.False(t, last.IsFlag)
			assert.Equal(t, ReasonLabelOverall, last.Feature)
		}
	}
}

func TestTighteningNeverLowersSeverity(t *testing.T) {
	// tighten moves each cutoff so that it is easier to breach
	tighten := map[string]func(float64) float64{
		ThresholdSentimentExtreme:   func(v float64) float64 { return v / 4 },
		ThresholdWordCountMin:       func(v float64) float64 { return v * 4 },
		ThresholdWordCountMax:       func(v float64) float64 { return v / 8 },
		ThresholdAdjNounRatio:       func(v float64) float64 { return v / 4 },
		ThresholdFirstPersonRatio:   func(v float64) float64 { return v / 4 },
		ThresholdSpamKeywordMin:     func(v float64) float64 { return 1 },
		ThresholdCapsRatioMax:       func(v float64) float64 { return v / 4 },
		ThresholdExcessivePunctMin:  func(v float64) float64 { return 1 },
		ThresholdUniquenessRatioMin: func(v float64) float64 { return 0.95 },
	}

	base := New()
	for _, text := range []string{hypeReview, laptopReview, repeatyReview} {
		baseline, err := base.Analyze(text)
		require.NoError(t, err)

		for name, fn := range tighten {
			a := New()
			a.SetThreshold(name, fn(a.Thresholds()[name]))

			tightened, err := a.Analyze(text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, tightened.FlagCount, baseline.FlagCount, "%s on %q", name, text)
			assert.GreaterOrEqual(t, tightened.Verdict.Severity(), baseline.Verdict.Severity(), "%s on %q", name, text)
		}
	}
}

func TestMissingThresholdIsConfigError(t *testing.T) {
	a := New()
	thresholds := a.Thresholds()
	delete(thresholds, ThresholdWordCountMax)
	a.ReplaceThresholds(thresholds)

	result, err := a.Analyze(laptopReview)
	assert.Nil(t, result)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
	assert.Equal(t, ThresholdWordCountMax, cfgErr.Threshold)
	assert.Equal(t, "long_review", cfgErr.Rule)
}

func TestUnknownThresholdsIgnored(t *testing.T) {
	a := New(WithThresholds(Thresholds{"NOT_A_THRESHOLD": 42}))

	result, err := a.Analyze(laptopReview)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictLikelyGenuine, result.Verdict)
}

func TestExtractionFailureIsSurfaced(t *testing.T) {
	a := New(WithTagger(fixedTagger{err: errors.New("tagger unavailable")}))

	features, err := a.ExtractFeatures(laptopReview)
	assert.Equal(t, 0, features.Len())

	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, FeatureAdjNounRatio, extErr.Feature)
	assert.Contains(t, err.Error(), "tagger unavailable")

	_, err = a.Analyze(laptopReview)
	assert.True(t, errors.As(err, &extErr))
}

func TestExtractFeaturesVocabulary(t *testing.T) {
	a := New(WithTagger(fixedTagger{}), WithSentimentScorer(fixedScorer(0)))

	features, err := a.ExtractFeatures(shortReview)
	require.NoError(t, err)
	assert.Equal(t, []string{
		FeatureSentiment,
		FeatureWordCount,
		FeatureAdjNounRatio,
		FeatureFirstPersonRatio,
		FeatureSpamKeywordCount,
		FeatureCapsRatio,
		FeatureExcessivePunctCount,
		FeatureUniquenessRatio,
	}, features.Names())

	// no nouns tagged: the ratio denominator is floored at one
	ratio, ok := features.Value(FeatureAdjNounRatio)
	require.True(t, ok)
	assert.Equal(t, 0.0, ratio)
}

func TestAdjNounRatioWithoutNouns(t *testing.T) {
	a := New(WithTagger(fixedTagger{tags: []string{"JJ", "JJ", "JJS", "."}}), WithSentimentScorer(fixedScorer(0)))

	result, err := a.Analyze(shortReview)
	require.NoError(t, err)
	assert.Equal(t, 3.0, mustValue(t, result.Features, FeatureAdjNounRatio))
	assert.True(t, hasReason(result, "Specificity", "Excessive descriptive language (adj/noun ratio: 3.0x)"))
	assert.True(t, hasDetail(result, "Uses 3 adjectives but only 0 nouns - lacks specific details"))
}

func TestAdvancedFeatures(t *testing.T) {
	corpus := []string{"This blender changed my life and I highly recommend it to everyone I know"}
	a := New(WithReferenceCorpus(corpus), WithTagger(fixedTagger{tags: []string{"NN"}}), WithSentimentScorer(fixedScorer(0.2)))
	assert.True(t, a.AdvancedFeatures())

	features, err := a.ExtractFeatures(corpus[0])
	require.NoError(t, err)
	assert.Equal(t, 12, features.Len())
	assert.Equal(t, 1.0, mustValue(t, features, FeatureCorpusSimilarity))
	assert.Equal(t, 2, features.Int(FeatureFakeNgramCount))

	result, err := a.Analyze(corpus[0])
	require.NoError(t, err)
	assert.True(t, hasReason(result, "Corpus Match", "Closely matches a known review (similarity: 1.00)"))
	assert.True(t, hasReason(result, "Stock Phrases", "Contains 2 stock review phrases"))

	plain := New(WithTagger(fixedTagger{}), WithSentimentScorer(fixedScorer(0)))
	assert.False(t, plain.AdvancedFeatures())
	assert.Len(t, plain.FeatureNames(), 8)
}

func TestCustomRule(t *testing.T) {
	links := NewExtractor("link_count", func(text string) (Measurement, error) {
		return Measurement{Value: float64(strings.Count(text, "http"))}, nil
	})
	rule := Rule{
		Name: "links", Label: "Links", Tier: 3, Weight: 30,
		Feature: "link_count", Threshold: "LINK_MAX", Breached: above,
		Explain: func(_ models.FeatureSet, v float64) (string, string) {
			return "Contains links", "Reviews rarely link elsewhere"
		},
	}

	a := New(WithRule(links, rule), WithThresholds(Thresholds{"LINK_MAX": 0}),
		WithTagger(fixedTagger{tags: []string{"NN"}}), WithSentimentScorer(fixedScorer(0)))

	result, err := a.Analyze("Visit http://example.com and http://example.org for a discount on this item, it is sold at a reasonable price")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictSuspicious, result.Verdict)
	assert.Equal(t, "Links", result.Reasons[0].Feature)
}

func TestUnknownThresholdsAreIgnored(t *testing.T) {
	a := New(WithThresholds(Thresholds{ThresholdWordCountMin: 20, "TEAM_NOTE": 1}),
		WithTagger(fixedTagger{tags: []string{"NN"}}), WithSentimentScorer(fixedScorer(0)))

	assert.Equal(t, 20.0, a.Thresholds()[ThresholdWordCountMin])
	assert.NotContains(t, a.Thresholds(), "TEAM_NOTE")

	ignored := a.UpdateThresholds(Thresholds{ThresholdCapsRatioMax: 0.5, "TEAM_NOTE": 2})
	assert.Equal(t, []string{"TEAM_NOTE"}, ignored)
	assert.Equal(t, 0.5, a.Thresholds()[ThresholdCapsRatioMax])
	assert.NotContains(t, a.Thresholds(), "TEAM_NOTE")
}

func TestCustomRuleThresholdCanBeReplaced(t *testing.T) {
	links := NewExtractor("link_count", func(text string) (Measurement, error) {
		return Measurement{Value: float64(strings.Count(text, "http"))}, nil
	})
	rule := Rule{
		Name: "links", Label: "Links", Tier: 3, Weight: 30,
		Feature: "link_count", Threshold: "LINK_MAX", Breached: above,
		Explain: func(_ models.FeatureSet, v float64) (string, string) {
			return "Contains links", "Reviews rarely link elsewhere"
		},
	}
	a := New(WithRule(links, rule), WithThresholds(Thresholds{"LINK_MAX": 5}),
		WithTagger(fixedTagger{tags: []string{"NN"}}), WithSentimentScorer(fixedScorer(0)))
	assert.Equal(t, 5.0, a.Thresholds()["LINK_MAX"])

	replacement := DefaultThresholds()
	replacement["LINK_MAX"] = 0
	require.NoError(t, replacement.Validate(a.Rules()))
	assert.Empty(t, a.ReplaceThresholds(replacement))
	assert.Equal(t, 0.0, a.Thresholds()["LINK_MAX"])
}

func TestVaderScoresWholeReview(t *testing.T) {
	scorer := NewVaderScorer()

	tests := []struct {
		name     string
		text     string
		positive bool
	}{
		{"hype", hypeReview, true},
		{"effusive with neutral sentences", "This kettle is wonderful and amazing and the best gift ever. It arrived on Tuesday. The box was brown.", true},
		{"venomous with neutral sentences", "This is the worst, most horrible, useless garbage I have ever hated. It arrived on Tuesday. The box was brown.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := scorer.Score(tt.text)
			require.NoError(t, err)
			if tt.positive {
				assert.Greater(t, score, 0.85)
			} else {
				assert.Less(t, score, -0.85)
			}
		})
	}
}

func TestHypeReviewHasSentimentReason(t *testing.T) {
	result, err := New().Analyze(hypeReview)
	require.NoError(t, err)

	sentiment, ok := result.Features.Value(FeatureSentiment)
	require.True(t, ok)
	assert.Greater(t, sentiment, 0.85)
	assert.True(t, hasReason(result, "Sentiment", "Extremely positive sentiment"))
}

func TestEmptyText(t *testing.T) {
	a := New(WithTagger(fixedTagger{}), WithSentimentScorer(fixedScorer(0)))
	_, err := a.Analyze("   \n\t")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func hasReason(result *models.AnalysisResult, label, messagePrefix string) bool {
	for _, r := range result.Reasons {
		if r.Feature == label && strings.HasPrefix(r.Message, messagePrefix) {
			return true
		}
	}
	return false
}

func hasDetail(result *models.AnalysisResult, detail string) bool {
	for _, r := range result.Reasons {
		if r.Detail == detail {
			return true
		}
	}
	return false
}

func mustValue(t *testing.T, fs models.FeatureSet, name string) float64 {
	t.Helper()
	v, ok := fs.Value(name)
	require.True(t, ok, "feature %s missing", name)
	return v
}

func ruleLabels(rules []Rule) []string {
	labels := make([]string, 0, len(rules))
	for _, r := range rules {
		labels = append(labels, r.Label)
	}
	return labels
}

func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}
