package analyzer

// Spam keyword categories
const (
	CategoryExtremePositive = "extreme_positive"
	CategoryExtremeNegative = "extreme_negative"
	CategoryPromotional     = "promotional"
)

// spamCategory is a named keyword list
type spamCategory struct {
	Name     string
	Keywords []string
}

// getSpamKeywords returns the curated keyword categories in match order
func getSpamKeywords() []spamCategory {
	return []spamCategory{
		{
			Name:     CategoryExtremePositive,
			Keywords: []string{"amazing", "perfect", "best ever", "incredible", "outstanding", "flawless"},
		},
		{
			Name:     CategoryExtremeNegative,
			Keywords: []string{"worst", "terrible", "horrible", "awful", "disgusting", "pathetic"},
		},
		{
			Name:     CategoryPromotional,
			Keywords: []string{"buy now", "must have", "life changing", "miracle", "highly recommend"},
		},
	}
}

// getFirstPersonPronouns returns singular and plural first-person pronouns
func getFirstPersonPronouns() map[string]bool {
	words := []string{"i", "me", "my", "mine", "myself", "we", "us", "our", "ours", "ourselves"}

	pronouns := make(map[string]bool)
	for _, word := range words {
		pronouns[word] = true
	}
	return pronouns
}

// getFakeReviewNgrams returns phrases over-represented in fabricated reviews
func getFakeReviewNgrams() []string {
	return []string{
		"i highly recommend",
		"five stars",
		"changed my life",
		"you won't regret",
		"best purchase ever",
		"do yourself a favor",
		"worth every penny",
		"exceeded my expectations",
		"a must buy",
		"can't live without",
	}
}
