package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zombar/reviewxai/internal/models"
)

// neutralFeatures breaches no default rule
func neutralFeatures(overrides map[string]float64) models.FeatureSet {
	values := map[string]float64{
		FeatureSentiment:           0.3,
		FeatureWordCount:           40,
		FeatureAdjNounRatio:        0.5,
		FeatureFirstPersonRatio:    0.05,
		FeatureSpamKeywordCount:    0,
		FeatureCapsRatio:           0,
		FeatureExcessivePunctCount: 0,
		FeatureUniquenessRatio:     0.9,
	}
	for k, v := range overrides {
		values[k] = v
	}
	features := make([]models.Feature, 0, len(values))
	for _, name := range []string{
		FeatureSentiment, FeatureWordCount, FeatureAdjNounRatio, FeatureFirstPersonRatio,
		FeatureSpamKeywordCount, FeatureCapsRatio, FeatureExcessivePunctCount, FeatureUniquenessRatio,
	} {
		features = append(features, models.Feature{Name: name, Value: values[name]})
	}
	return models.NewFeatureSet(features...)
}

func TestBand(t *testing.T) {
	tests := []struct {
		points     int
		verdict    models.Verdict
		confidence int
	}{
		{0, models.VerdictLikelyGenuine, 85},
		{24, models.VerdictLikelyGenuine, 85},
		{25, models.VerdictSuspicious, 55},
		{49, models.VerdictSuspicious, 79},
		{50, models.VerdictLikelyFake, 50},
		{95, models.VerdictLikelyFake, 95},
		{135, models.VerdictLikelyFake, 95},
	}

	for _, tt := range tests {
		verdict, confidence := band(tt.points)
		assert.Equal(t, tt.verdict, verdict, "points=%d", tt.points)
		assert.Equal(t, tt.confidence, confidence, "points=%d", tt.points)
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		feature  string
		value    float64
		breached bool
	}{
		{"sentiment at threshold", FeatureSentiment, 0.85, false},
		{"sentiment above threshold", FeatureSentiment, 0.86, true},
		{"negative sentiment", FeatureSentiment, -0.9, true},
		{"word count at minimum", FeatureWordCount, 15, false},
		{"word count below minimum", FeatureWordCount, 14, true},
		{"word count at maximum", FeatureWordCount, 200, true},
		{"spam at minimum", FeatureSpamKeywordCount, 3, true},
		{"spam below minimum", FeatureSpamKeywordCount, 2, false},
		{"caps at maximum", FeatureCapsRatio, 0.20, false},
		{"punctuation at minimum", FeatureExcessivePunctCount, 3, true},
		{"uniqueness at minimum", FeatureUniquenessRatio, 0.60, false},
		{"uniqueness below minimum", FeatureUniquenessRatio, 0.59, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := Evaluate(neutralFeatures(map[string]float64{tt.feature: tt.value}), DefaultThresholds(), DefaultRules())
			require.NoError(t, err)
			if tt.breached {
				assert.Equal(t, 1, card.FlagCount)
			} else {
				assert.Equal(t, 0, card.FlagCount)
			}
		})
	}
}

func TestEvaluateMessages(t *testing.T) {
	fs := neutralFeatures(map[string]float64{
		FeatureSentiment:        -0.9,
		FeatureFirstPersonRatio: 0.25,
		FeatureCapsRatio:        0.8889,
		FeatureUniquenessRatio:  0.4444,
	})

	card, err := Evaluate(fs, DefaultThresholds(), DefaultRules())
	require.NoError(t, err)

	messages := make([]string, 0, len(card.Reasons))
	for _, r := range card.Reasons {
		messages = append(messages, r.Message)
	}
	assert.Equal(t, []string{
		"Extremely negative sentiment (score: -0.90/1.0)",
		"Excessive self-referencing (25.0% of words)",
		"Excessive capitalization (88.9% of words)",
		"High text redundancy (44.4% unique words)",
	}, messages)

	// 25 + 20 + 10 + 15
	assert.Equal(t, 70, card.Points)
	assert.Equal(t, models.VerdictLikelyFake, card.Verdict)
	assert.Equal(t, 70, card.Confidence)
}

func TestEvaluateSpamDetailListsMatches(t *testing.T) {
	fs := models.NewFeatureSet(models.Feature{
		Name:  FeatureSpamKeywordCount,
		Value: 3,
		Matches: []models.Match{
			{Text: "amazing", Category: CategoryExtremePositive},
			{Text: "perfect", Category: CategoryExtremePositive},
			{Text: "buy now", Category: CategoryPromotional},
		},
	})
	rules := DefaultRules()[5:6]

	card, err := Evaluate(fs, DefaultThresholds(), rules)
	require.NoError(t, err)
	require.Len(t, card.Reasons, 2)
	assert.Equal(t, "Contains 3 spam/promotional keywords", card.Reasons[0].Message)
	assert.Equal(t, "High use of marketing language: amazing, perfect, buy now", card.Reasons[0].Detail)
	assert.Equal(t, models.VerdictLikelyGenuine, card.Verdict)
	assert.Equal(t, ReasonLabelOverall, card.Reasons[1].Feature)
}

func TestEvaluateMissingFeature(t *testing.T) {
	_, err := Evaluate(models.NewFeatureSet(), DefaultThresholds(), DefaultRules())
	assert.True(t, errors.Is(err, ErrMissingFeature))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate(append(DefaultRules(), AdvancedRules()...)))

	partial := DefaultThresholds()
	delete(partial, ThresholdCapsRatioMax)
	err := partial.Validate(DefaultRules())

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ThresholdCapsRatioMax, cfgErr.Threshold)
	assert.Equal(t, "excessive_caps", cfgErr.Rule)
}

func TestParseThreshold(t *testing.T) {
	assert.NoError(t, ParseThreshold(ThresholdWordCountMin, 100))
	assert.NoError(t, ParseThreshold("TEAM_NOTE", 1))
	assert.Error(t, ParseThreshold(ThresholdCapsRatioMax, -0.1))
}

func TestThresholdsKnown(t *testing.T) {
	rules := append(DefaultRules(), Rule{Name: "links", Threshold: "LINK_MAX"})

	assert.True(t, IsKnownThreshold(ThresholdWordCountMin, nil))
	assert.True(t, IsKnownThreshold(ThresholdReadabilityMin, DefaultRules()))
	assert.True(t, IsKnownThreshold("LINK_MAX", rules))
	assert.False(t, IsKnownThreshold("LINK_MAX", DefaultRules()))

	known, unknown := Thresholds{ThresholdWordCountMin: 20, "LINK_MAX": 2, "TEAM_NOTE": 1, "ALPHA": 0}.Known(rules)
	assert.Equal(t, Thresholds{ThresholdWordCountMin: 20, "LINK_MAX": 2}, known)
	assert.Equal(t, []string{"ALPHA", "TEAM_NOTE"}, unknown)
}

func TestLengthRulesAreExclusive(t *testing.T) {
	thresholds := DefaultThresholds()
	thresholds[ThresholdWordCountMin] = 100
	thresholds[ThresholdWordCountMax] = 50

	card, err := Evaluate(neutralFeatures(map[string]float64{FeatureWordCount: 60}), thresholds, DefaultRules())
	require.NoError(t, err)
	require.Equal(t, 1, card.FlagCount)
	assert.Equal(t, "Length", card.Reasons[0].Feature)
	assert.Contains(t, card.Reasons[0].Message, "Suspiciously short review")
	assert.Equal(t, 15, card.Points)

	card, err = Evaluate(neutralFeatures(map[string]float64{FeatureWordCount: 250}), DefaultThresholds(), DefaultRules())
	require.NoError(t, err)
	require.Equal(t, 1, card.FlagCount)
	assert.Contains(t, card.Reasons[0].Message, "Unusually long review")
}

func TestDefaultThresholdsAreIndependent(t *testing.T) {
	a := DefaultThresholds()
	a[ThresholdWordCountMin] = 1000
	assert.Equal(t, 15.0, DefaultThresholds()[ThresholdWordCountMin])
}
