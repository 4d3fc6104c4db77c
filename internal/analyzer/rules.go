package analyzer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zombar/reviewxai/internal/models"
)

// Scoring policy
const (
	FakeScoreMin       = 50
	SuspiciousScoreMin = 25
	MaxConfidence      = 95
	SuspiciousBoost    = 30
	GenuineConfidence  = 85
	ReasonLabelOverall = "Overall"

	genuineReasonMsg    = "No significant suspicious patterns detected"
	genuineReasonDetail = "Review appears to have natural linguistic characteristics"
)

// ErrMissingFeature is returned when a rule's feature was never extracted
var ErrMissingFeature = errors.New("feature missing from feature set")

// Rule is one threshold check. A breach appends one reason and adds Weight
// to the score.
type Rule struct {
	Name      string
	Label     string // reason feature label, e.g. "Sentiment"
	Feature   string
	Threshold string
	Weight    int
	Tier      int
	Unless    string // skip this rule when the named earlier rule fired
	Breached  func(value, limit float64) bool
	Explain   func(fs models.FeatureSet, value float64) (message, detail string)
}

func above(value, limit float64) bool { return value > limit }

func below(value, limit float64) bool { return value < limit }

func atLeast(value, limit float64) bool { return value >= limit }

func absAbove(value, limit float64) bool { return math.Abs(value) > limit }

func percent(ratio float64) float64 { return ratio * 100 }

// DefaultRules returns the tier 1 and tier 2 rules in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "extreme_sentiment", Label: "Sentiment", Tier: 1, Weight: 25,
			Feature: FeatureSentiment, Threshold: ThresholdSentimentExtreme, Breached: absAbove,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				direction := "positive"
				if v < 0 {
					direction = "negative"
				}
				return fmt.Sprintf("Extremely %s sentiment (score: %.2f/1.0)", direction, v),
					"Genuine reviews typically show more balanced emotions"
			},
		},
		{
			Name: "short_review", Label: "Length", Tier: 1, Weight: 15,
			Feature: FeatureWordCount, Threshold: ThresholdWordCountMin, Breached: below,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Suspiciously short review (%d words)", int(v)),
					"Genuine reviews typically provide more detail"
			},
		},
		{
			Name: "long_review", Label: "Length", Tier: 1, Weight: 10, Unless: "short_review",
			Feature: FeatureWordCount, Threshold: ThresholdWordCountMax, Breached: atLeast,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Unusually long review (%d words)", int(v)),
					"May contain padding or excessive fluff"
			},
		},
		{
			Name: "vague_description", Label: "Specificity", Tier: 1, Weight: 25,
			Feature: FeatureAdjNounRatio, Threshold: ThresholdAdjNounRatio, Breached: above,
			Explain: func(fs models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Excessive descriptive language (adj/noun ratio: %.1fx)", v),
					fmt.Sprintf("Uses %d adjectives but only %d nouns - lacks specific details",
						fs.Count(FeatureAdjNounRatio, CountAdjectives), fs.Count(FeatureAdjNounRatio, CountNouns))
			},
		},
		{
			Name: "self_reference", Label: "Self-Reference", Tier: 1, Weight: 20,
			Feature: FeatureFirstPersonRatio, Threshold: ThresholdFirstPersonRatio, Breached: above,
			Explain: func(fs models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Excessive self-referencing (%.1f%% of words)", percent(v)),
					fmt.Sprintf("Uses first-person pronouns %d times - appears overly personal",
						fs.Count(FeatureFirstPersonRatio, CountPronouns))
			},
		},
		{
			Name: "spam_keywords", Label: "Spam Language", Tier: 2, Weight: 15,
			Feature: FeatureSpamKeywordCount, Threshold: ThresholdSpamKeywordMin, Breached: atLeast,
			Explain: func(fs models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Contains %d spam/promotional keywords", int(v)),
					withMatches("High use of marketing language", fs.Matches(FeatureSpamKeywordCount))
			},
		},
		{
			Name: "excessive_caps", Label: "Capitalization", Tier: 2, Weight: 10,
			Feature: FeatureCapsRatio, Threshold: ThresholdCapsRatioMax, Breached: above,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Excessive capitalization (%.1f%% of words)", percent(v)),
					"Indicates emotional exaggeration"
			},
		},
		{
			Name: "excessive_punctuation", Label: "Punctuation", Tier: 2, Weight: 10,
			Feature: FeatureExcessivePunctCount, Threshold: ThresholdExcessivePunctMin, Breached: atLeast,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Excessive punctuation patterns (%d instances)", int(v)),
					"Indicates emotional manipulation"
			},
		},
		{
			Name: "low_uniqueness", Label: "Redundancy", Tier: 2, Weight: 15,
			Feature: FeatureUniquenessRatio, Threshold: ThresholdUniquenessRatioMin, Breached: below,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("High text redundancy (%.1f%% unique words)", percent(v)),
					"Repetitive language without substance"
			},
		},
	}
}

// AdvancedRules returns the tier 3 rules in evaluation order
func AdvancedRules() []Rule {
	return []Rule{
		{
			Name: "low_readability", Label: "Readability", Tier: 3, Weight: 10,
			Feature: FeatureReadability, Threshold: ThresholdReadabilityMin, Breached: below,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Hard to read text (Flesch score: %.1f)", v),
					"Garbled or keyword-stuffed text scores poorly on readability"
			},
		},
		{
			Name: "bigram_repetition", Label: "Repetition", Tier: 3, Weight: 10,
			Feature: FeatureBigramRepetition, Threshold: ThresholdBigramRepetitionMax, Breached: above,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Repeated word pairs (%.1f%% of bigrams)", percent(v)),
					"Recycled phrasing is typical of templated reviews"
			},
		},
		{
			Name: "fake_ngrams", Label: "Stock Phrases", Tier: 3, Weight: 15,
			Feature: FeatureFakeNgramCount, Threshold: ThresholdFakeNgramMin, Breached: atLeast,
			Explain: func(fs models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Contains %d stock review phrases", int(v)),
					withMatches("Phrases common in fabricated reviews", fs.Matches(FeatureFakeNgramCount))
			},
		},
		{
			Name: "corpus_similarity", Label: "Corpus Match", Tier: 3, Weight: 20,
			Feature: FeatureCorpusSimilarity, Threshold: ThresholdCorpusSimilarityMax, Breached: above,
			Explain: func(_ models.FeatureSet, v float64) (string, string) {
				return fmt.Sprintf("Closely matches a known review (similarity: %.2f)", v),
					"Near-duplicate text suggests copied or generated content"
			},
		},
	}
}

func withMatches(detail string, matches []models.Match) string {
	if len(matches) == 0 {
		return detail
	}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
	}
	return detail + ": " + strings.Join(texts, ", ")
}

// Scorecard is the output of Evaluate
type Scorecard struct {
	Verdict    models.Verdict
	Confidence int
	Points     int // raw additive score before banding
	Reasons    []models.Reason
	FlagCount  int
}

// Evaluate checks every rule in order against thresholds. It reads each
// threshold from the map it is given and fails on the first one missing.
func Evaluate(fs models.FeatureSet, thresholds Thresholds, rules []Rule) (*Scorecard, error) {
	card := &Scorecard{Reasons: make([]models.Reason, 0, len(rules)+1)}
	fired := make(map[string]bool, len(rules))

	for _, rule := range rules {
		limit, err := thresholds.lookup(rule, rule.Threshold)
		if err != nil {
			return nil, err
		}
		value, ok := fs.Value(rule.Feature)
		if !ok {
			return nil, fmt.Errorf("rule %q: %w: %s", rule.Name, ErrMissingFeature, rule.Feature)
		}
		if rule.Unless != "" && fired[rule.Unless] {
			continue
		}
		if !rule.Breached(value, limit) {
			continue
		}
		fired[rule.Name] = true

		message, detail := rule.Explain(fs, value)
		card.Reasons = append(card.Reasons, models.Reason{
			Feature: rule.Label,
			Message: message,
			Detail:  detail,
			IsFlag:  true,
		})
		card.Points += rule.Weight
		card.FlagCount++
	}

	card.Verdict, card.Confidence = band(card.Points)
	if card.Verdict == models.VerdictLikelyGenuine {
		card.Reasons = append(card.Reasons, models.Reason{
			Feature: ReasonLabelOverall,
			Message: genuineReasonMsg,
			Detail:  genuineReasonDetail,
			IsFlag:  false,
		})
	}

	return card, nil
}

// band maps a raw score to a verdict and reported confidence
func band(points int) (models.Verdict, int) {
	switch {
	case points >= FakeScoreMin:
		return models.VerdictLikelyFake, min(points, MaxConfidence)
	case points >= SuspiciousScoreMin:
		return models.VerdictSuspicious, points + SuspiciousBoost
	default:
		return models.VerdictLikelyGenuine, GenuineConfidence
	}
}
