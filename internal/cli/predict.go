package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zombar/reviewxai/internal/config"
	"github.com/zombar/reviewxai/internal/explain"
	"github.com/zombar/reviewxai/internal/hybrid"
)

func newPredictCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [text]",
		Short: "Classify a review and compare the result with the rule engine",
		Example: `  reviewctl predict --classifier http --classifier-url http://localhost:9000/predict "Great!"
  reviewctl predict --classifier ollama --ollama-model llama3.2 < review.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := reviewText(cmd, args)
			if err != nil {
				return err
			}

			engine, err := o.engine()
			if err != nil {
				return err
			}

			kind := o.v.GetString("classifier")
			c, err := config.NewClassifier(config.ClassifierConfig{
				Kind:        kind,
				URL:         o.v.GetString("classifier_url"),
				Token:       o.v.GetString("classifier_token"),
				OllamaURL:   o.v.GetString("ollama_url"),
				OllamaModel: o.v.GetString("ollama_model"),
				StaticFake:  o.v.GetFloat64("static_fake"),
			})
			if err != nil {
				return err
			}
			if c == nil {
				return errors.New("predict needs a classifier, set --classifier to http, ollama or static")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), o.v.GetDuration("timeout"))
			defer cancel()

			result, err := hybrid.New(c, engine).Analyze(ctx, text)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if o.v.GetBool("json") {
				return writeJSON(out, result)
			}

			fmt.Fprint(out, explain.RenderHybrid(result))
			if result.Rules != nil {
				writeSummary(out, result.Rules)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("classifier", config.ClassifierHTTP, "primary classifier: http, ollama or static")
	flags.String("classifier-url", "", "inference endpoint for the http classifier")
	flags.String("ollama-url", "http://localhost:11434", "Ollama API URL")
	flags.String("ollama-model", "llama3.2", "Ollama model to use")
	flags.Float64("static-fake", 0.5, "fake probability returned by the static classifier")
	flags.Duration("timeout", 2*time.Minute, "give up on the classifier after this long")

	o.v.BindPFlag("classifier", flags.Lookup("classifier"))
	o.v.BindPFlag("classifier_url", flags.Lookup("classifier-url"))
	o.v.BindPFlag("ollama_url", flags.Lookup("ollama-url"))
	o.v.BindPFlag("ollama_model", flags.Lookup("ollama-model"))
	o.v.BindPFlag("static_fake", flags.Lookup("static-fake"))
	o.v.BindPFlag("timeout", flags.Lookup("timeout"))
	return cmd
}
