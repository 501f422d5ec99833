// ABOUTME: Metric identity for daily health observations.
// ABOUTME: Built-in kinds (steps, heart_rate, calories, sleep_minutes) plus named custom metrics.
package models

import (
	"fmt"
	"regexp"
	"strings"
)

// MetricKind is the category of a daily observation.
type MetricKind string

const (
	KindSteps        MetricKind = "steps"
	KindHeartRate    MetricKind = "heart_rate"
	KindCalories     MetricKind = "calories"
	KindSleepMinutes MetricKind = "sleep_minutes"
	KindCustom       MetricKind = "custom"
)

// BuiltinKinds lists the non-custom kinds in display order.
var BuiltinKinds = []MetricKind{KindSteps, KindHeartRate, KindCalories, KindSleepMinutes}

// KindUnits maps built-in kinds to their display units.
var KindUnits = map[MetricKind]string{
	KindSteps:        "steps",
	KindHeartRate:    "bpm",
	KindCalories:     "kcal",
	KindSleepMinutes: "min",
}

const customPrefix = "custom:"

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// Metric identifies a series. Name is only set for custom metrics.
type Metric struct {
	Kind MetricKind `json:"kind" yaml:"kind"`
	Name string     `json:"name,omitempty" yaml:"name,omitempty"`
}

var (
	Steps        = Metric{Kind: KindSteps}
	HeartRate    = Metric{Kind: KindHeartRate}
	Calories     = Metric{Kind: KindCalories}
	SleepMinutes = Metric{Kind: KindSleepMinutes}
)

// Custom returns a custom metric with a sanitized name.
func Custom(name string) (Metric, error) {
	id, err := SanitizeIdentifier(name)
	if err != nil {
		return Metric{}, err
	}
	return Metric{Kind: KindCustom, Name: id}, nil
}

// Key is the canonical string form: the kind for built-ins, "custom:<name>" otherwise.
func (m Metric) Key() string {
	if m.Kind == KindCustom {
		return customPrefix + m.Name
	}
	return string(m.Kind)
}

func (m Metric) String() string {
	return m.Key()
}

// Unit returns the display unit, empty for custom metrics.
func (m Metric) Unit() string {
	return KindUnits[m.Kind]
}

// Validate checks that the metric is a known kind with a well-formed name.
func (m Metric) Validate() error {
	switch m.Kind {
	case KindSteps, KindHeartRate, KindCalories, KindSleepMinutes:
		if m.Name != "" {
			return &ValidationError{Field: "metric", Message: fmt.Sprintf("built-in metric %s cannot carry a name", m.Kind)}
		}
		return nil
	case KindCustom:
		if !identifierPattern.MatchString(m.Name) {
			return &ValidationError{Field: "metric", Message: fmt.Sprintf("invalid custom metric name %q", m.Name)}
		}
		return nil
	default:
		return &ValidationError{Field: "metric", Message: fmt.Sprintf("unknown metric kind %q", m.Kind)}
	}
}

// ParseMetric accepts a built-in kind ("steps"), "custom:<name>", or a bare
// name. Bare names are sanitized first, so "Heart Rate" is the built-in
// heart_rate; anything that is not a built-in is treated as custom.
func ParseMetric(s string) (Metric, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Metric{}, &ValidationError{Field: "metric", Message: "metric is required"}
	}
	if len(s) >= len(customPrefix) && strings.EqualFold(s[:len(customPrefix)], customPrefix) {
		return Custom(s[len(customPrefix):])
	}
	id, err := SanitizeIdentifier(s)
	if err != nil {
		return Metric{}, err
	}
	for _, k := range BuiltinKinds {
		if id == string(k) {
			return Metric{Kind: k}, nil
		}
	}
	return Metric{Kind: KindCustom, Name: id}, nil
}

// SanitizeIdentifier lowercases s, folds every run of non [a-z0-9] characters
// into one underscore and trims underscores. The result must start with a
// letter and be at most 48 characters.
func SanitizeIdentifier(s string) (string, error) {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	id := strings.Trim(b.String(), "_")
	if !identifierPattern.MatchString(id) {
		return "", &ValidationError{Field: "identifier", Message: fmt.Sprintf("cannot derive a safe identifier from %q", s)}
	}
	return id, nil
}
