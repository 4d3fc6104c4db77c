package analyzer

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when the engine is handed text with no tokens
var ErrEmptyText = errors.New("review text is empty")

// ConfigError reports a threshold that an active rule needs but the
// configuration does not define
type ConfigError struct {
	Threshold string
	Rule      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold %q required by rule %q is not configured", e.Threshold, e.Rule)
}

// ExtractionError reports an extractor that could not process the text
type ExtractionError struct {
	Feature string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract feature %q: %v", e.Feature, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
