// ABOUTME: Aggregation stage: joins per-metric daily series on date and reduces per day.
// ABOUTME: Inner join semantics; nil values are carried through and skipped by reducers.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/harperreed/healthdash/internal/models"
)

// Point is one dated value in a series.
type Point struct {
	Date  models.Date
	Value *float64
}

// Series is a named, date-ordered list of points. Dates may repeat.
type Series struct {
	Name   string
	Points []Point
}

// Row is one merged line: a date plus one value per table column.
type Row struct {
	Date   models.Date `json:"date"`
	Values []*float64  `json:"values"`
}

// Table is the result of a merge. Rows are ordered by date ascending.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Column returns the index of a named column, or -1.
func (t Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// FromObservations builds a series from stored observations, sorted by date.
// Observations for several subjects on one date become repeated dates.
func FromObservations(name string, obs []models.Observation) Series {
	s := Series{Name: name, Points: make([]Point, 0, len(obs))}
	for _, o := range obs {
		s.Points = append(s.Points, Point{Date: o.Date, Value: o.Value})
	}
	sort.SliceStable(s.Points, func(i, j int) bool {
		return s.Points[i].Date.Before(s.Points[j].Date)
	})
	return s
}

// byDate groups a series' values by date, keeping input order within a date.
func byDate(s Series) (map[models.Date][]*float64, []models.Date) {
	groups := make(map[models.Date][]*float64)
	var dates []models.Date
	for _, p := range s.Points {
		if _, ok := groups[p.Date]; !ok {
			dates = append(dates, p.Date)
		}
		groups[p.Date] = append(groups[p.Date], p.Value)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return groups, dates
}

// Merge inner-joins series on date. Dates missing from any input are dropped.
// When a date repeats within inputs, the output holds every combination.
func Merge(series ...Series) Table {
	t := Table{Columns: make([]string, len(series)), Rows: []Row{}}
	for i, s := range series {
		t.Columns[i] = s.Name
	}
	if len(series) == 0 {
		return t
	}

	groups := make([]map[models.Date][]*float64, len(series))
	var dates []models.Date
	for i, s := range series {
		g, d := byDate(s)
		groups[i] = g
		if i == 0 {
			dates = d
		}
	}

	for _, d := range dates {
		combos := [][]*float64{{}}
		for _, g := range groups {
			vals, ok := g[d]
			if !ok {
				combos = nil
				break
			}
			next := make([][]*float64, 0, len(combos)*len(vals))
			for _, prefix := range combos {
				for _, v := range vals {
					row := make([]*float64, len(prefix), len(prefix)+1)
					copy(row, prefix)
					next = append(next, append(row, v))
				}
			}
			combos = next
		}
		for _, values := range combos {
			t.Rows = append(t.Rows, Row{Date: d, Values: values})
		}
	}
	return t
}

// GroupBy collapses a table to one row per date, reducing each column with
// its declared reducer.
func GroupBy(t Table, reducers []Reducer) (Table, error) {
	if len(reducers) != len(t.Columns) {
		return Table{}, fmt.Errorf("group by: %d reducers for %d columns", len(reducers), len(t.Columns))
	}
	for _, r := range reducers {
		if err := r.Validate(); err != nil {
			return Table{}, fmt.Errorf("group by: %w", err)
		}
	}

	rows := append([]Row(nil), t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	out := Table{Columns: append([]string(nil), t.Columns...), Rows: []Row{}}
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].Date == rows[start].Date {
			end++
		}
		row := Row{Date: rows[start].Date, Values: make([]*float64, len(t.Columns))}
		for c, r := range reducers {
			vals := make([]*float64, 0, end-start)
			for _, src := range rows[start:end] {
				vals = append(vals, src.Values[c])
			}
			row.Values[c] = r.Apply(vals)
		}
		out.Rows = append(out.Rows, row)
		start = end
	}
	return out, nil
}

// Collapse reduces a series to one point per date.
func Collapse(s Series, r Reducer) Series {
	groups, dates := byDate(s)
	out := Series{Name: s.Name, Points: make([]Point, 0, len(dates))}
	for _, d := range dates {
		out.Points = append(out.Points, Point{Date: d, Value: r.Apply(groups[d])})
	}
	return out
}
