package models

import "time"

// Verdict is the rule engine's classification of a review
type Verdict string

const (
	VerdictLikelyFake    Verdict = "LIKELY_FAKE"
	VerdictSuspicious    Verdict = "SUSPICIOUS"
	VerdictLikelyGenuine Verdict = "LIKELY_GENUINE"
)

// Severity orders verdicts: LIKELY_FAKE > SUSPICIOUS > LIKELY_GENUINE.
// Unknown verdicts have severity -1.
func (v Verdict) Severity() int {
	switch v {
	case VerdictLikelyFake:
		return 2
	case VerdictSuspicious:
		return 1
	case VerdictLikelyGenuine:
		return 0
	default:
		return -1
	}
}

// Valid reports whether v is one of the three verdicts
func (v Verdict) Valid() bool {
	return v.Severity() >= 0
}

// Reason is one structured explanation unit
type Reason struct {
	Feature string `json:"feature"` // category label, e.g. "Sentiment"
	Message string `json:"message"` // flagged condition including the offending value
	Detail  string `json:"detail"`  // why the pattern is suspicious
	IsFlag  bool   `json:"is_flag"` // false only for the synthesized "no suspicious patterns" reason
}

// AnalysisResult is the rule engine's output for one review
type AnalysisResult struct {
	ReviewText string     `json:"review_text"`
	Features   FeatureSet `json:"features"`
	Verdict    Verdict    `json:"verdict"`
	Confidence int        `json:"confidence"` // 0-95
	Reasons    []Reason   `json:"reasons"`
	FlagCount  int        `json:"flag_count"`
}

// Flags returns only the reasons that represent an actual breach
func (r *AnalysisResult) Flags() []Reason {
	flags := make([]Reason, 0, r.FlagCount)
	for _, reason := range r.Reasons {
		if reason.IsFlag {
			flags = append(flags, reason)
		}
	}
	return flags
}

// Primary classifier labels
const (
	LabelComputerGenerated = "CG" // fabricated class
	LabelOriginal          = "OR" // genuine class

	PredictionFake = "FAKE"
	PredictionReal = "REAL"
)

// Prediction is the primary classifier's output
type Prediction struct {
	Label         string     `json:"label"`         // CG or OR
	Prediction    string     `json:"prediction"`    // FAKE or REAL
	Confidence    float64    `json:"confidence"`    // 0.0 to 1.0
	Probabilities [2]float64 `json:"probabilities"` // [fake, real]
}

// HybridResult combines the primary classifier with the rule engine
type HybridResult struct {
	ReviewText      string          `json:"review_text"`
	Primary         Prediction      `json:"primary"`
	Rules           *AnalysisResult `json:"rules"`
	PrimarySaysFake bool            `json:"primary_says_fake"`
	RulesSayFake    bool            `json:"rules_say_fake"`
	Agreement       bool            `json:"agreement"`
}

// Job states of a stored analysis
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// StoredAnalysis is a persisted analysis record. Batch jobs are stored as
// pending records and filled in when the worker completes them.
type StoredAnalysis struct {
	ID         string          `json:"id"`
	ReviewText string          `json:"review_text"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count,omitempty"`
	Verdict    Verdict         `json:"verdict,omitempty"`
	Confidence int             `json:"confidence"`
	FlagCount  int             `json:"flag_count"`
	Primary    *Prediction     `json:"primary,omitempty"`   // nil for rule-only analyses
	Agreement  *bool           `json:"agreement,omitempty"` // nil for rule-only analyses
	Result     *AnalysisResult `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewStoredAnalysis builds a completed record from a rule-engine result and
// an optional hybrid result
func NewStoredAnalysis(id string, rules *AnalysisResult, hybrid *HybridResult) *StoredAnalysis {
	s := &StoredAnalysis{
		ID:         id,
		ReviewText: rules.ReviewText,
		Status:     StatusCompleted,
		Verdict:    rules.Verdict,
		Confidence: rules.Confidence,
		FlagCount:  rules.FlagCount,
		Result:     rules,
	}
	if hybrid != nil {
		primary := hybrid.Primary
		agreement := hybrid.Agreement
		s.Primary = &primary
		s.Agreement = &agreement
	}
	return s
}
