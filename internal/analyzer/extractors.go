package analyzer

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/zombar/reviewxai/internal/models"
)

// Feature names
const (
	FeatureSentiment           = "sentiment"
	FeatureWordCount           = "word_count"
	FeatureAdjNounRatio        = "adj_noun_ratio"
	FeatureFirstPersonRatio    = "first_person_ratio"
	FeatureSpamKeywordCount    = "spam_keyword_count"
	FeatureCapsRatio           = "caps_ratio"
	FeatureExcessivePunctCount = "excessive_punct_count"
	FeatureUniquenessRatio     = "uniqueness_ratio"
	FeatureReadability         = "readability"
	FeatureBigramRepetition    = "bigram_repetition"
	FeatureFakeNgramCount      = "fake_ngram_count"
	FeatureCorpusSimilarity    = "corpus_similarity"
)

// Sub-count keys
const (
	CountAdjectives = "adjectives"
	CountNouns      = "nouns"
	CountPronouns   = "pronouns"
)

// Measurement is the output of one extractor
type Measurement struct {
	Value   float64
	Counts  map[string]int
	Matches []models.Match
}

// Extractor computes one named signal from raw review text
type Extractor interface {
	Name() string
	Extract(text string) (Measurement, error)
}

type funcExtractor struct {
	name string
	fn   func(text string) (Measurement, error)
}

func (f funcExtractor) Name() string { return f.name }

func (f funcExtractor) Extract(text string) (Measurement, error) { return f.fn(text) }

// NewExtractor adapts a function to the Extractor interface
func NewExtractor(name string, fn func(text string) (Measurement, error)) Extractor {
	return funcExtractor{name: name, fn: fn}
}

func pure(name string, fn func(text string) float64) Extractor {
	return NewExtractor(name, func(text string) (Measurement, error) {
		return Measurement{Value: fn(text)}, nil
	})
}

// SentimentExtractor scores overall polarity
type SentimentExtractor struct {
	Scorer SentimentScorer
}

func (SentimentExtractor) Name() string { return FeatureSentiment }

func (e SentimentExtractor) Extract(text string) (Measurement, error) {
	score, err := e.Scorer.Score(text)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{Value: score}, nil
}

// AdjNounExtractor computes adjectives / max(nouns, 1)
type AdjNounExtractor struct {
	Tagger PartOfSpeechTagger
}

func (AdjNounExtractor) Name() string { return FeatureAdjNounRatio }

func (e AdjNounExtractor) Extract(text string) (Measurement, error) {
	tags, err := e.Tagger.Tags(text)
	if err != nil {
		return Measurement{}, err
	}
	adjectives, nouns := countAdjectivesAndNouns(tags)
	ratio := float64(adjectives) / float64(max(nouns, 1))
	return Measurement{
		Value:  roundTo(ratio, 4),
		Counts: map[string]int{CountAdjectives: adjectives, CountNouns: nouns},
	}, nil
}

func countAdjectivesAndNouns(tags []string) (adjectives, nouns int) {
	for _, tag := range tags {
		switch {
		case strings.HasPrefix(tag, "JJ"):
			adjectives++
		case strings.HasPrefix(tag, "NN"):
			nouns++
		}
	}
	return adjectives, nouns
}

// CorpusSimilarityExtractor measures overlap with known reviews
type CorpusSimilarityExtractor struct {
	shingles []map[string]bool
}

// NewCorpusSimilarityExtractor precomputes shingles for the reference corpus
func NewCorpusSimilarityExtractor(corpus []string) *CorpusSimilarityExtractor {
	e := &CorpusSimilarityExtractor{}
	for _, text := range corpus {
		if s := shingles(tokenize(text), 3); len(s) > 0 {
			e.shingles = append(e.shingles, s)
		}
	}
	return e
}

func (e *CorpusSimilarityExtractor) Name() string { return FeatureCorpusSimilarity }

func (e *CorpusSimilarityExtractor) Extract(text string) (Measurement, error) {
	review := shingles(tokenize(text), 3)
	best := 0.0
	for _, ref := range e.shingles {
		if sim := jaccard(review, ref); sim > best {
			best = sim
		}
	}
	return Measurement{Value: roundTo(best, 4)}, nil
}

// defaultExtractors returns the tier 1 and tier 2 extractors in rule order
func defaultExtractors(tagger PartOfSpeechTagger, scorer SentimentScorer) []Extractor {
	return []Extractor{
		SentimentExtractor{Scorer: scorer},
		pure(FeatureWordCount, func(text string) float64 { return float64(wordCount(text)) }),
		AdjNounExtractor{Tagger: tagger},
		NewExtractor(FeatureFirstPersonRatio, extractFirstPerson),
		NewExtractor(FeatureSpamKeywordCount, extractSpamKeywords),
		pure(FeatureCapsRatio, capsRatio),
		pure(FeatureExcessivePunctCount, func(text string) float64 { return float64(excessivePunctuation(text)) }),
		pure(FeatureUniquenessRatio, uniquenessRatio),
	}
}

// advancedExtractors returns the tier 3 extractors
func advancedExtractors(corpus []string) []Extractor {
	return []Extractor{
		pure(FeatureReadability, readability),
		pure(FeatureBigramRepetition, bigramRepetition),
		NewExtractor(FeatureFakeNgramCount, extractFakeNgrams),
		NewCorpusSimilarityExtractor(corpus),
	}
}

// tokenize splits on whitespace, lowercases, and trims surrounding
// punctuation. Tokens that are pure punctuation are kept as-is.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, normalizeToken(f))
	}
	return tokens
}

func normalizeToken(token string) string {
	lower := strings.ToLower(token)
	trimmed := strings.TrimFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return lower
	}
	return trimmed
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func extractFirstPerson(text string) (Measurement, error) {
	tokens := tokenize(text)
	pronouns := getFirstPersonPronouns()

	count := 0
	for _, tok := range tokens {
		if pronouns[tok] {
			count++
		}
	}

	ratio := float64(count) / float64(max(len(tokens), 1))
	return Measurement{
		Value:  roundTo(ratio, 4),
		Counts: map[string]int{CountPronouns: count},
	}, nil
}

func extractSpamKeywords(text string) (Measurement, error) {
	lower := normalizeApostrophes(strings.ToLower(text))

	var matches []models.Match
	for _, category := range getSpamKeywords() {
		for _, keyword := range category.Keywords {
			if strings.Contains(lower, keyword) {
				matches = append(matches, models.Match{Text: keyword, Category: category.Name})
			}
		}
	}
	return Measurement{Value: float64(len(matches)), Matches: matches}, nil
}

// capsRatio counts alphabetic words longer than one letter written in
// upper case, over all alphabetic words
func capsRatio(text string) float64 {
	alphabetic, caps := 0, 0
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, unicode.IsPunct)
		if word == "" || !isAlphabetic(word) {
			continue
		}
		alphabetic++
		if len([]rune(word)) > 1 && strings.ToUpper(word) == word {
			caps++
		}
	}
	return roundTo(float64(caps)/float64(max(alphabetic, 1)), 4)
}

func isAlphabetic(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var excessivePunctPatterns = []*regexp.Regexp{
	regexp.MustCompile(`!{2,}`),
	regexp.MustCompile(`\?{2,}`),
	regexp.MustCompile(`\.{3,}`),
}

func excessivePunctuation(text string) int {
	count := 0
	for _, re := range excessivePunctPatterns {
		count += len(re.FindAllStringIndex(text, -1))
	}
	return count
}

func uniquenessRatio(text string) float64 {
	tokens := tokenize(text)
	unique := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		unique[tok] = true
	}
	return roundTo(float64(len(unique))/float64(max(len(tokens), 1)), 4)
}

func bigramRepetition(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) < 2 {
		return 0
	}

	seen := make(map[string]bool)
	repeated := 0
	for i := 0; i+1 < len(tokens); i++ {
		bigram := tokens[i] + " " + tokens[i+1]
		if seen[bigram] {
			repeated++
		}
		seen[bigram] = true
	}
	return roundTo(float64(repeated)/float64(len(tokens)-1), 4)
}

func extractFakeNgrams(text string) (Measurement, error) {
	lower := normalizeApostrophes(strings.ToLower(text))

	var matches []models.Match
	for _, phrase := range getFakeReviewNgrams() {
		if strings.Contains(lower, phrase) {
			matches = append(matches, models.Match{Text: phrase, Category: "fake_ngram"})
		}
	}
	return Measurement{Value: float64(len(matches)), Matches: matches}, nil
}

func shingles(tokens []string, n int) map[string]bool {
	out := make(map[string]bool)
	if len(tokens) < n {
		for _, tok := range tokens {
			out[tok] = true
		}
		return out
	}
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], " ")] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func normalizeApostrophes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
