// Package explain renders analysis results as plain-text reports.
package explain

import (
	"fmt"
	"strings"

	"github.com/zombar/reviewxai/internal/models"
)

const (
	reportWidth  = 60
	hybridWidth  = 70
	previewRunes = 100

	reportTitle = "FAKE REVIEW DETECTION - XAI ANALYSIS"
	hybridTitle = "HYBRID ANALYSIS: PRIMARY MODEL + XAI"

	// NoPatternsMessage is the compact rendering of a result without flags
	NoPatternsMessage = "No suspicious patterns detected."
)

// Render formats a rule-engine result as a multi-line report. The output
// always contains "VERDICT:" and "CONFIDENCE:" lines and one numbered block
// per reason in result order.
func Render(result *models.AnalysisResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	rule(&b, "=", reportWidth)
	b.WriteString(reportTitle + "\n")
	rule(&b, "=", reportWidth)

	fmt.Fprintf(&b, "\nReview: %q\n", preview(result.ReviewText))
	fmt.Fprintf(&b, "\nVERDICT: %s\n", result.Verdict)
	fmt.Fprintf(&b, "CONFIDENCE: %d%%\n", result.Confidence)
	fmt.Fprintf(&b, "FLAGS: %d\n", result.FlagCount)

	if result.FlagCount > 0 {
		b.WriteString("\nSUSPICIOUS INDICATORS:\n")
	} else {
		b.WriteString("\nANALYSIS:\n")
	}
	rule(&b, "-", reportWidth)
	writeReasons(&b, result.Reasons, "")

	b.WriteString("\n")
	rule(&b, "=", reportWidth)
	return b.String()
}

// RenderCompact joins the flagged reasons as "<feature>: <detail>" with
// "; ". The synthesized genuine reason is skipped.
func RenderCompact(result *models.AnalysisResult) string {
	if result == nil {
		return NoPatternsMessage
	}

	parts := make([]string, 0, len(result.Reasons))
	for _, r := range result.Reasons {
		if !r.IsFlag {
			continue
		}
		parts = append(parts, r.Feature+": "+r.Detail)
	}
	if len(parts) == 0 {
		return NoPatternsMessage
	}
	return strings.Join(parts, "; ")
}

// RenderHybrid formats the primary prediction, the rule engine's reasons
// and whether the two agree
func RenderHybrid(h *models.HybridResult) string {
	if h == nil {
		return ""
	}

	var b strings.Builder
	rule(&b, "=", hybridWidth)
	b.WriteString(hybridTitle + "\n")
	rule(&b, "=", hybridWidth)

	fmt.Fprintf(&b, "\nReview: %q\n", preview(h.ReviewText))

	b.WriteString("\n")
	rule(&b, "-", hybridWidth)
	b.WriteString("PRIMARY PREDICTION\n")
	rule(&b, "-", hybridWidth)
	fmt.Fprintf(&b, "Label:       %s\n", h.Primary.Label)
	fmt.Fprintf(&b, "Prediction:  %s\n", h.Primary.Prediction)
	fmt.Fprintf(&b, "Confidence:  %.1f%%\n", h.Primary.Confidence*100)
	b.WriteString("Probabilities:\n")
	fmt.Fprintf(&b, "  FAKE (%s): %.1f%%\n", models.LabelComputerGenerated, h.Primary.Probabilities[0]*100)
	fmt.Fprintf(&b, "  REAL (%s): %.1f%%\n", models.LabelOriginal, h.Primary.Probabilities[1]*100)

	b.WriteString("\n")
	rule(&b, "-", hybridWidth)
	b.WriteString("XAI EXPLANATION\n")
	rule(&b, "-", hybridWidth)
	if h.Rules != nil {
		fmt.Fprintf(&b, "VERDICT: %s\n", h.Rules.Verdict)
		fmt.Fprintf(&b, "CONFIDENCE: %d%%\n", h.Rules.Confidence)
		fmt.Fprintf(&b, "FLAGS: %d\n", h.Rules.FlagCount)
		if len(h.Rules.Reasons) > 0 {
			b.WriteString("\nReasons:\n")
			writeReasons(&b, h.Rules.Reasons, "  ")
		}
	}

	b.WriteString("\n")
	rule(&b, "-", hybridWidth)
	if h.Agreement {
		b.WriteString("AGREEMENT: primary model and XAI agree on classification\n")
	} else {
		b.WriteString("AGREEMENT: primary model and XAI disagree - may need manual review\n")
	}
	rule(&b, "=", hybridWidth)
	return b.String()
}

func writeReasons(b *strings.Builder, reasons []models.Reason, indent string) {
	for i, r := range reasons {
		fmt.Fprintf(b, "\n%s%d. [%s] %s\n", indent, i+1, r.Feature, r.Message)
		fmt.Fprintf(b, "%s   -> %s\n", indent, r.Detail)
	}
}

func rule(b *strings.Builder, ch string, width int) {
	b.WriteString(strings.Repeat(ch, width))
	b.WriteByte('\n')
}

// preview truncates text to previewRunes runes, marking the cut with "..."
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
