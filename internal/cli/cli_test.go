package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zombar/reviewxai/internal/analyzer"
	"github.com/zombar/reviewxai/internal/models"
)

const hypeReview = "AMAZING!!! Best product EVER!!! Buy it now, you will love it!!!"

// runCLI executes reviewctl with an empty config file so the user's home
// config never leaks into a test
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cfg := filepath.Join(t.TempDir(), "reviewctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("{}\n"), 0o644))
	return runWithConfig(t, cfg, stdin, args...)
}

func runWithConfig(t *testing.T, cfg, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-color", "--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := runCLI(t, "", "analyze", hypeReview)
	require.NoError(t, err)

	assert.Contains(t, out, "FAKE REVIEW DETECTION - XAI ANALYSIS")
	assert.Contains(t, out, "VERDICT:")
	assert.Contains(t, out, "Verdict:")
}

func TestAnalyzeFromStdin(t *testing.T) {
	out, err := runCLI(t, hypeReview, "analyze", "--compact")
	require.NoError(t, err)

	assert.Contains(t, out, "Length")
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestAnalyzeJSON(t *testing.T) {
	out, err := runCLI(t, "", "analyze", "--json", hypeReview)
	require.NoError(t, err)

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, hypeReview, result.ReviewText)
	assert.True(t, result.Verdict.Valid())
	assert.Positive(t, result.FlagCount)
}

func TestAnalyzeFeatures(t *testing.T) {
	out, err := runCLI(t, "", "analyze", "--compact", "--features", hypeReview)
	require.NoError(t, err)

	assert.Contains(t, out, "word_count")
	assert.Contains(t, out, "caps_ratio")
}

func TestAnalyzeEmptyText(t *testing.T) {
	_, err := runCLI(t, "   \n", "analyze")
	assert.ErrorIs(t, err, analyzer.ErrEmptyText)
}

func TestAnalyzeOverrides(t *testing.T) {
	review := "Bought this kettle last month for the office kitchen and it boils a full jug in about three minutes without much noise."

	analyze := func(args ...string) models.AnalysisResult {
		out, err := runCLI(t, "", append([]string{"analyze", "--json"}, append(args, review)...)...)
		require.NoError(t, err)
		var result models.AnalysisResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		return result
	}

	before := analyze()
	after := analyze("--set", "word_count_min=100")
	assert.Greater(t, after.FlagCount, before.FlagCount)

	ignored := analyze("--set", "NOT_A_THRESHOLD=1")
	assert.Equal(t, before.FlagCount, ignored.FlagCount)

	_, err := runCLI(t, "", "analyze", "--set", "WORD_COUNT_MIN=-1", review)
	assert.Error(t, err)
}

func TestConfigFileThresholds(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "reviewctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("thresholds:\n  WORD_COUNT_MIN: 42\n"), 0o644))

	out, err := runWithConfig(t, cfg, "", "thresholds", "--json")
	require.NoError(t, err)

	var thresholds map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &thresholds))
	assert.Equal(t, 42.0, thresholds[analyzer.ThresholdWordCountMin])
	assert.Equal(t, 200.0, thresholds[analyzer.ThresholdWordCountMax])
}

func TestConfigFileUnknownThreshold(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "reviewctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("thresholds:\n  WORD_COUNT_MIN: 42\n  TEAM_NOTE: 1\n"), 0o644))

	out, err := runWithConfig(t, cfg, "", "thresholds", "--json")
	require.NoError(t, err)

	var thresholds map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &thresholds))
	assert.Equal(t, 42.0, thresholds[analyzer.ThresholdWordCountMin])
	assert.NotContains(t, thresholds, "TEAM_NOTE")
}

func TestNoColorFromConfig(t *testing.T) {
	previous := color.NoColor
	t.Cleanup(func() { color.NoColor = previous })

	cfg := filepath.Join(t.TempDir(), "reviewctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("no_color: true\n"), 0o644))

	color.NoColor = false
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfg, "thresholds"})
	require.NoError(t, cmd.Execute())
	assert.True(t, color.NoColor)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runWithConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "thresholds")
	assert.Error(t, err)
}

func TestThresholdsCommand(t *testing.T) {
	out, err := runCLI(t, "", "thresholds", "--set", "CAPS_RATIO_MAX=0.5")
	require.NoError(t, err)

	assert.Contains(t, out, analyzer.ThresholdWordCountMin)
	assert.Contains(t, out, "0.5 *")
	// advanced thresholds have no rule until --advanced is given
	assert.Contains(t, out, "(inactive)")
}

func TestPredictCommand(t *testing.T) {
	out, err := runCLI(t, "", "predict", "--classifier", "static", "--static-fake", "0.9", hypeReview)
	require.NoError(t, err)

	assert.Contains(t, out, "PRIMARY PREDICTION")
	assert.Contains(t, out, "XAI EXPLANATION")
	assert.Contains(t, out, "AGREEMENT:")
}

func TestPredictJSON(t *testing.T) {
	out, err := runCLI(t, "", "predict", "--json", "--classifier", "static", "--static-fake", "0.9", hypeReview)
	require.NoError(t, err)

	var result models.HybridResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, models.PredictionFake, result.Primary.Prediction)
	assert.True(t, result.PrimarySaysFake)
	require.NotNil(t, result.Rules)
}

func TestPredictNeedsClassifier(t *testing.T) {
	_, err := runCLI(t, "", "predict", "--classifier", "none", hypeReview)
	assert.ErrorContains(t, err, "needs a classifier")

	_, err = runCLI(t, "", "predict", "--classifier", "carrier-pigeon", hypeReview)
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    analyzer.Thresholds
		wantErr bool
	}{
		{"empty", nil, analyzer.Thresholds{}, false},
		{"single", []string{"WORD_COUNT_MIN=20"}, analyzer.Thresholds{"WORD_COUNT_MIN": 20}, false},
		{"lower case key", []string{" caps_ratio_max = 0.3 "}, analyzer.Thresholds{"CAPS_RATIO_MAX": 0.3}, false},
		{"missing equals", []string{"WORD_COUNT_MIN"}, nil, true},
		{"not a number", []string{"WORD_COUNT_MIN=lots"}, nil, true},
		{"unknown kept for the engine to drop", []string{"NOPE=1"}, analyzer.Thresholds{"NOPE": 1}, false},
		{"negative", []string{"WORD_COUNT_MIN=-1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOverrides(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
