package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/zombar/reviewxai/internal/analyzer"
)

func newThresholdsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Show the effective threshold configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := o.engine()
			if err != nil {
				return err
			}

			current := engine.Thresholds()
			out := cmd.OutOrStdout()
			if o.v.GetBool("json") {
				return writeJSON(out, current)
			}

			usedBy := make(map[string][]string)
			for _, r := range engine.Rules() {
				usedBy[r.Threshold] = append(usedBy[r.Threshold], r.Name)
			}
			defaults := analyzer.DefaultThresholds()

			table := tablewriter.NewWriter(out)
			if err := table.Append([]string{"Threshold", "Value", "Default", "Rules"}); err != nil {
				return fmt.Errorf("failed to append header row: %w", err)
			}
			for _, name := range current.Keys() {
				value := formatThreshold(current[name])
				if current[name] != defaults[name] {
					value += " *"
				}
				rules := strings.Join(usedBy[name], ", ")
				if rules == "" {
					rules = "(inactive)"
				}
				if err := table.Append([]string{name, value, formatThreshold(defaults[name]), rules}); err != nil {
					return fmt.Errorf("failed to append row: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}
			return nil
		},
	}
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
