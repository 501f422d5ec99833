// ABOUTME: Observation model and calendar Date type.
// ABOUTME: One (subject, date, metric, value) fact; a nil value means absent.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical serialization of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes its arguments the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s)}
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }
func (d Date) After(o Date) bool  { return d.Time().After(o.Time()) }

// AddDays returns the date n days later (earlier if n is negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// DateRange is an inclusive range. Zero bounds are open.
type DateRange struct {
	From Date
	To   Date
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Observation is a single daily value for a subject and metric.
type Observation struct {
	SubjectID string   `json:"subject_id" yaml:"subject_id"`
	Date      Date     `json:"date" yaml:"date"`
	Metric    Metric   `json:"metric" yaml:"metric"`
	Value     *float64 `json:"value" yaml:"value"`
}

// NewObservation creates an observation with a present value.
func NewObservation(subject string, date Date, metric Metric, value float64) Observation {
	return Observation{SubjectID: subject, Date: date, Metric: metric, Value: &value}
}

// Validate checks the existence constraints: subject, date and metric.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.SubjectID) == "" {
		return &ValidationError{Field: "subject_id", Message: "subject is required"}
	}
	if o.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	return o.Metric.Validate()
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
