package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/zombar/reviewxai/internal/models"
)

var verdictColors = map[models.Verdict]*color.Color{
	models.VerdictLikelyFake:    color.New(color.FgHiRed, color.Bold),
	models.VerdictSuspicious:    color.New(color.FgHiYellow, color.Bold),
	models.VerdictLikelyGenuine: color.New(color.FgHiGreen, color.Bold),
}

func colorVerdict(v models.Verdict) string {
	if c, ok := verdictColors[v]; ok {
		return c.Sprint(string(v))
	}
	return string(v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSummary prints a one-line coloured verdict
func writeSummary(w io.Writer, result *models.AnalysisResult) {
	fmt.Fprintf(w, "\n%s %s (%d%% confidence, %d flags)\n",
		color.New(color.Bold).Sprint("Verdict:"),
		colorVerdict(result.Verdict),
		result.Confidence,
		result.FlagCount,
	)
}

// writeFeatureTable prints every extracted feature in extraction order
func writeFeatureTable(w io.Writer, fs models.FeatureSet) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append([]string{"Feature", "Value"}); err != nil {
		return fmt.Errorf("failed to append header row: %w", err)
	}
	for _, name := range fs.Names() {
		value, _ := fs.Value(name)
		if err := table.Append([]string{name, strconv.FormatFloat(value, 'f', 4, 64)}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
