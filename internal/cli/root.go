// Package cli implements the reviewctl command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/config"
)

// options holds the resolved settings for one invocation
type options struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the reviewctl command tree
func NewRootCmd() *cobra.Command {
	o := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "reviewctl",
		Short: "Explain why a product review looks fake",
		Long: `reviewctl runs the rule-based fake review detector on a review and prints
the verdict with the reasons behind it. With a primary classifier configured
it also compares the classifier's prediction against the rules.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := o.initConfig(); err != nil {
				return err
			}
			if o.v.GetBool("no_color") {
				color.NoColor = true
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.reviewctl.yaml)")
	flags.String("thresholds", "", "YAML file with threshold overrides")
	flags.Bool("advanced", false, "enable readability, n-gram and corpus features")
	flags.StringSlice("set", nil, "override one threshold, e.g. --set WORD_COUNT_MIN=20 (repeatable)")
	flags.Bool("json", false, "print machine-readable JSON")
	flags.Bool("no-color", false, "disable coloured output")

	o.v.BindPFlag("thresholds_file", flags.Lookup("thresholds"))
	o.v.BindPFlag("advanced_features", flags.Lookup("advanced"))
	o.v.BindPFlag("set", flags.Lookup("set"))
	o.v.BindPFlag("json", flags.Lookup("json"))
	o.v.BindPFlag("no_color", flags.Lookup("no-color"))

	rootCmd.AddCommand(
		newAnalyzeCmd(o),
		newPredictCmd(o),
		newThresholdsCmd(o),
	)
	return rootCmd
}

// Execute runs reviewctl with os.Args
func Execute() error {
	return NewRootCmd().Execute()
}

// initConfig reads in config file and ENV variables if set
func (o *options) initConfig() error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			o.v.AddConfigPath(home)
		}
		o.v.SetConfigType("yaml")
		o.v.SetConfigName(".reviewctl")
	}

	o.v.SetEnvPrefix("REVIEWCTL")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	o.v.AutomaticEnv()

	if err := o.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && o.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// engine builds the rule engine from the thresholds file, the config file's
// thresholds map and --set overrides, applied in that order
func (o *options) engine() (*analyzer.Analyzer, error) {
	var opts []analyzer.Option

	if path := o.v.GetString("thresholds_file"); path != "" {
		f, err := config.LoadThresholdFile(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, f.Options()...)
	}

	if m := o.v.GetStringMap("thresholds"); len(m) > 0 {
		overrides := make(analyzer.Thresholds, len(m))
		for name, raw := range m {
			value, err := strconv.ParseFloat(fmt.Sprint(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("threshold %q: %w", name, err)
			}
			// viper lower-cases keys
			name = strings.ToUpper(name)
			if err := analyzer.ParseThreshold(name, value); err != nil {
				return nil, err
			}
			overrides[name] = value
		}
		opts = append(opts, analyzer.WithThresholds(overrides))
	}

	overrides, err := parseOverrides(o.v.GetStringSlice("set"))
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		opts = append(opts, analyzer.WithThresholds(overrides))
	}

	if o.v.GetBool("advanced_features") {
		opts = append(opts, analyzer.WithAdvancedFeatures())
	}
	return analyzer.New(opts...), nil
}

// parseOverrides parses KEY=VALUE threshold overrides
func parseOverrides(pairs []string) (analyzer.Thresholds, error) {
	overrides := make(analyzer.Thresholds, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q, want KEY=VALUE", pair)
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		if err := analyzer.ParseThreshold(name, value); err != nil {
			return nil, err
		}
		overrides[name] = value
	}
	return overrides, nil
}

// reviewText returns the argument, or stdin when there is none
func reviewText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read review from stdin: %w", err)
	}
	return string(data), nil
}
