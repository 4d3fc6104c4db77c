// Package config loads threshold configuration files.
package config

import (
	"fmt"
	"os"

	"github.com/zombar/reviewxai/internal/analyzer"
	"gopkg.in/yaml.v3"
)

// ThresholdFile is the on-disk form of a threshold configuration:
//
//	advanced_features: true
//	thresholds:
//	  WORD_COUNT_MIN: 20
//	  CAPS_RATIO_MAX: 0.3
//	reference_corpus:
//	  - "Known review text"
type ThresholdFile struct {
	AdvancedFeatures bool               `yaml:"advanced_features"`
	Thresholds       map[string]float64 `yaml:"thresholds"`
	ReferenceCorpus  []string           `yaml:"reference_corpus"`
}

// LoadThresholdFile reads and validates a YAML threshold file
func LoadThresholdFile(path string) (*ThresholdFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}
	return ParseThresholdFile(data)
}

// ParseThresholdFile decodes YAML. Negative values are rejected; names the
// engine does not know are dropped when the file is applied.
func ParseThresholdFile(data []byte) (*ThresholdFile, error) {
	var f ThresholdFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}
	for name, value := range f.Thresholds {
		if err := analyzer.ParseThreshold(name, value); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Options converts the file into analyzer options. Thresholds are merged
// onto the defaults.
func (f *ThresholdFile) Options() []analyzer.Option {
	if f == nil {
		return nil
	}
	opts := []analyzer.Option{analyzer.WithThresholds(f.Thresholds)}
	if f.AdvancedFeatures {
		opts = append(opts, analyzer.WithAdvancedFeatures())
	}
	if len(f.ReferenceCorpus) > 0 {
		opts = append(opts, analyzer.WithReferenceCorpus(f.ReferenceCorpus))
	}
	return opts
}

// LoadThresholds reads path and returns the defaults with its overrides
// applied
func LoadThresholds(path string) (analyzer.Thresholds, error) {
	f, err := LoadThresholdFile(path)
	if err != nil {
		return nil, err
	}
	return analyzer.DefaultThresholds().Merge(f.Thresholds), nil
}

// WriteThresholds saves t as a threshold file
func WriteThresholds(path string, t analyzer.Thresholds) error {
	data, err := yaml.Marshal(ThresholdFile{Thresholds: t})
	if err != nil {
		return fmt.Errorf("failed to encode thresholds: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
