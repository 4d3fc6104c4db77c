package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zombar/reviewxai/internal/explain"
)

func newAnalyzeCmd(o *options) *cobra.Command {
	var compact, features bool

	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Explain a review with the rule engine",
		Long: `Analyze scores a review against the rule set and prints the verdict with
one reason per breached rule. The review is read from stdin when no argument
is given.`,
		Example: `  reviewctl analyze "AMAZING!!! Best product ever!!!"
  cat review.txt | reviewctl analyze --compact
  reviewctl analyze --set WORD_COUNT_MIN=100 --features "Works fine."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := reviewText(cmd, args)
			if err != nil {
				return err
			}

			engine, err := o.engine()
			if err != nil {
				return err
			}

			result, err := engine.AnalyzeWithContext(cmd.Context(), text)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case o.v.GetBool("json"):
				return writeJSON(out, result)
			case compact:
				fmt.Fprintf(out, "%s: %s\n", colorVerdict(result.Verdict), explain.RenderCompact(result))
			default:
				fmt.Fprint(out, explain.Render(result))
				writeSummary(out, result)
			}

			if features {
				fmt.Fprintln(out)
				return writeFeatureTable(out, result.Features)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "print a single line of reasons")
	cmd.Flags().BoolVar(&features, "features", false, "also print the extracted feature values")
	return cmd
}
