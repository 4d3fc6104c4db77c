package analyzer

import (
	"math"
	"regexp"
	"strings"
)

var (
	nonWordPattern     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	sentenceEndPattern = regexp.MustCompile(`[.!?]+`)
)

// extractWords lowercases text and splits it into words without punctuation
func extractWords(text string) []string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

// countSentences counts runs of terminal punctuation; at least 1
func countSentences(text string) int {
	matches := sentenceEndPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return 1
	}
	return len(matches)
}

// readability returns the Flesch Reading Ease score
func readability(text string) float64 {
	words := extractWords(text)
	if len(words) == 0 {
		return 0
	}
	sentenceCount := countSentences(text)

	syllableCount := 0
	for _, word := range words {
		syllableCount += countSyllablesInWord(word)
	}

	avgWordsPerSentence := float64(len(words)) / float64(sentenceCount)
	avgSyllablesPerWord := float64(syllableCount) / float64(len(words))

	score := 206.835 - 1.015*avgWordsPerSentence - 84.6*avgSyllablesPerWord

	return math.Round(score*100) / 100
}

// countSyllablesInWord counts vowel groups, adjusting for a silent e
func countSyllablesInWord(word string) int {
	word = strings.ToLower(word)
	if len(word) == 0 {
		return 0
	}

	count := 0
	vowels := "aeiouy"
	prevWasVowel := false

	for _, char := range word {
		isVowel := strings.ContainsRune(vowels, char)
		if isVowel && !prevWasVowel {
			count++
		}
		prevWasVowel = isVowel
	}

	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}

	if count == 0 {
		count = 1
	}

	return count
}
