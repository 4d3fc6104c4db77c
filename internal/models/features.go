package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	matchesSuffix = "_matches"
	countsSuffix  = "_counts"
)

// Match is a structured hit recorded by an extractor, e.g. a spam keyword
type Match struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// Feature is one named measurement with optional sub-counts and matches
type Feature struct {
	Name    string
	Value   float64
	Counts  map[string]int
	Matches []Match
}

// FeatureSet is an immutable, ordered mapping from feature name to value.
// The zero value is an empty set.
type FeatureSet struct {
	names   []string
	values  map[string]float64
	counts  map[string]map[string]int
	matches map[string][]Match
}

// NewFeatureSet builds a set from features in the given order. Later
// duplicates replace earlier values but keep the original position.
func NewFeatureSet(features ...Feature) FeatureSet {
	fs := FeatureSet{
		names:   make([]string, 0, len(features)),
		values:  make(map[string]float64, len(features)),
		counts:  make(map[string]map[string]int),
		matches: make(map[string][]Match),
	}
	for _, f := range features {
		if _, exists := fs.values[f.Name]; !exists {
			fs.names = append(fs.names, f.Name)
		}
		fs.values[f.Name] = f.Value
		if len(f.Matches) > 0 {
			fs.matches[f.Name] = append([]Match(nil), f.Matches...)
		} else {
			delete(fs.matches, f.Name)
		}
		if len(f.Counts) > 0 {
			c := make(map[string]int, len(f.Counts))
			for k, v := range f.Counts {
				c[k] = v
			}
			fs.counts[f.Name] = c
		} else {
			delete(fs.counts, f.Name)
		}
	}
	return fs
}

// Value returns the value of a feature and whether it is present
func (fs FeatureSet) Value(name string) (float64, bool) {
	v, ok := fs.values[name]
	return v, ok
}

// Int returns the value truncated to an int; 0 when absent
func (fs FeatureSet) Int(name string) int {
	return int(fs.values[name])
}

// Has reports whether name is present
func (fs FeatureSet) Has(name string) bool {
	_, ok := fs.values[name]
	return ok
}

// Matches returns a copy of the matches recorded for a feature
func (fs FeatureSet) Matches(name string) []Match {
	m := fs.matches[name]
	if len(m) == 0 {
		return nil
	}
	return append([]Match(nil), m...)
}

// Count returns a sub-count recorded for a feature, e.g. Count("adj_noun_ratio", "nouns")
func (fs FeatureSet) Count(name, key string) int {
	return fs.counts[name][key]
}

// Names returns feature names in extraction order
func (fs FeatureSet) Names() []string {
	return append([]string(nil), fs.names...)
}

// Len returns the number of features
func (fs FeatureSet) Len() int {
	return len(fs.names)
}

// Map returns a copy of the values keyed by name
func (fs FeatureSet) Map() map[string]float64 {
	out := make(map[string]float64, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes a flat object in extraction order. Sub-counts and
// matches are written under "<name>_counts" and "<name>_matches".
func (fs FeatureSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range fs.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONField(&buf, name, fs.values[name]); err != nil {
			return nil, err
		}
		if c, ok := fs.counts[name]; ok {
			buf.WriteByte(',')
			if err := writeJSONField(&buf, name+countsSuffix, c); err != nil {
				return nil, err
			}
		}
		if m, ok := fs.matches[name]; ok {
			buf.WriteByte(',')
			if err := writeJSONField(&buf, name+matchesSuffix, m); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONField(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal feature %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON reads the format written by MarshalJSON, keeping key order
func (fs *FeatureSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("feature set must be a JSON object")
	}

	var features []Feature
	index := make(map[string]int)
	pendingMatches := make(map[string][]Match)
	pendingCounts := make(map[string]map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected feature key %v", tok)
		}

		switch {
		case strings.HasSuffix(key, matchesSuffix):
			var m []Match
			if err := dec.Decode(&m); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			name := strings.TrimSuffix(key, matchesSuffix)
			if i, ok := index[name]; ok {
				features[i].Matches = m
			} else {
				pendingMatches[name] = m
			}
			continue
		case strings.HasSuffix(key, countsSuffix):
			var c map[string]int
			if err := dec.Decode(&c); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			name := strings.TrimSuffix(key, countsSuffix)
			if i, ok := index[name]; ok {
				features[i].Counts = c
			} else {
				pendingCounts[name] = c
			}
			continue
		}

		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("failed to decode feature %s: %w", key, err)
		}
		index[key] = len(features)
		features = append(features, Feature{
			Name:    key,
			Value:   v,
			Counts:  pendingCounts[key],
			Matches: pendingMatches[key],
		})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*fs = NewFeatureSet(features...)
	return nil
}
