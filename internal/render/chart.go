// ABOUTME: Chart specifications and single-panel rendering.
// ABOUTME: A panel is traces built from a merged table, or a placeholder when the table is empty.
package render

import (
	"fmt"
	"strings"

	"github.com/harperreed/healthdash/internal/aggregate"
	"go.uber.org/multierr"
)

// NoDataText is the placeholder shown on panels without rows.
const NoDataText = "No data available"

// Trace selects how a field is drawn.
type Trace string

const (
	TraceBar  Trace = "bar"
	TraceLine Trace = "line"
)

// Field binds one y-series to a stored metric.
type Field struct {
	Label   string            `json:"label" toml:"label"`
	Metric  string            `json:"metric" toml:"metric"`
	Reducer aggregate.Reducer `json:"reducer" toml:"reducer"`
	Trace   Trace             `json:"trace" toml:"trace"`
}

// ChartSpec declares one dashboard panel. With Secondary set, the last
// y-field is drawn against a right-hand axis.
type ChartSpec struct {
	Title     string  `json:"title" toml:"title"`
	XField    string  `json:"x_field" toml:"x_field"`
	YFields   []Field `json:"y_fields" toml:"y_fields"`
	Secondary bool    `json:"secondary" toml:"secondary"`
	XLabel    string  `json:"x_label" toml:"x_label"`
	YLabel    string  `json:"y_label" toml:"y_label"`
	Y2Label   string  `json:"y2_label" toml:"y2_label"`
	BarMode   string  `json:"bar_mode,omitempty" toml:"bar_mode"`
}

// Reducers returns the declared reducer of each y-field, in order.
func (c ChartSpec) Reducers() []aggregate.Reducer {
	out := make([]aggregate.Reducer, len(c.YFields))
	for i, f := range c.YFields {
		out[i] = f.Reducer
		if out[i] == "" {
			out[i] = aggregate.Sum
		}
	}
	return out
}

// Validate reports every problem with the spec at once.
func (c ChartSpec) Validate() error {
	var err error
	if strings.TrimSpace(c.Title) == "" {
		err = multierr.Append(err, fmt.Errorf("chart title is required"))
	}
	if len(c.YFields) == 0 {
		err = multierr.Append(err, fmt.Errorf("chart %q: at least one y field is required", c.Title))
	}
	if c.Secondary && len(c.YFields) < 2 {
		err = multierr.Append(err, fmt.Errorf("chart %q: secondary axis needs two y fields", c.Title))
	}
	switch c.BarMode {
	case "", "group", "stack", "overlay", "relative":
	default:
		err = multierr.Append(err, fmt.Errorf("chart %q: unknown bar mode %q", c.Title, c.BarMode))
	}
	for i, f := range c.YFields {
		if f.Metric == "" {
			err = multierr.Append(err, fmt.Errorf("chart %q field %d: metric is required", c.Title, i))
		}
		if f.Reducer != "" {
			if rerr := f.Reducer.Validate(); rerr != nil {
				err = multierr.Append(err, fmt.Errorf("chart %q field %d: %w", c.Title, i, rerr))
			}
		}
		switch f.Trace {
		case "", TraceBar, TraceLine:
		default:
			err = multierr.Append(err, fmt.Errorf("chart %q field %d: unknown trace %q", c.Title, i, f.Trace))
		}
	}
	return err
}

// TraceData is one drawable series on a panel.
type TraceData struct {
	Name      string     `json:"name"`
	Trace     Trace      `json:"trace"`
	X         []string   `json:"x"`
	Y         []*float64 `json:"y"`
	Secondary bool       `json:"secondary"`
}

// Panel is a rendered chart. Empty panels carry only the placeholder.
type Panel struct {
	Title       string      `json:"title"`
	Spec        ChartSpec   `json:"spec"`
	Traces      []TraceData `json:"traces"`
	Empty       bool        `json:"empty"`
	Placeholder string      `json:"placeholder,omitempty"`
}

// RenderPanel draws spec against a merged table. Columns are matched to
// y-fields by label, falling back to position. It never fails on empty input.
func RenderPanel(spec ChartSpec, t aggregate.Table) Panel {
	p := Panel{Title: spec.Title, Spec: spec, Traces: []TraceData{}}
	if t.Empty() {
		p.Empty = true
		p.Placeholder = NoDataText
		return p
	}

	x := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		x[i] = r.Date.String()
	}

	for i, f := range spec.YFields {
		col := t.Column(f.Label)
		if col < 0 {
			col = i
		}
		y := make([]*float64, len(t.Rows))
		if col < len(t.Columns) {
			for r, row := range t.Rows {
				y[r] = row.Values[col]
			}
		}

		trace := f.Trace
		if trace == "" {
			trace = TraceBar
		}
		p.Traces = append(p.Traces, TraceData{
			Name:      f.Label,
			Trace:     trace,
			X:         x,
			Y:         y,
			Secondary: spec.Secondary && i == len(spec.YFields)-1,
		})
	}
	return p
}
