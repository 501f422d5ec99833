// ABOUTME: Descriptive statistics for daily series, shown after uploads and by the stats command.
// ABOUTME: Count, mean, median, sample standard deviation and range over present values.
package aggregate

import (
	"sort"

	"github.com/harperreed/healthdash/internal/models"
	"github.com/montanaflynn/stats"
)

// Stats summarizes one series. Absent values are counted but excluded from
// every measure; measures are nil when no value is present. StdDev is the
// sample deviation and needs at least two values.
type Stats struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Absent int      `json:"absent"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"std_dev"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Describe computes Stats over the present values of s.
func Describe(s Series) Stats {
	out := Stats{Name: s.Name}
	data := make(stats.Float64Data, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Value == nil {
			out.Absent++
			continue
		}
		data = append(data, *p.Value)
	}
	out.Count = len(data)
	if out.Count == 0 {
		return out
	}

	out.Mean = measure(stats.Mean, data)
	out.Median = measure(stats.Median, data)
	out.Min = measure(stats.Min, data)
	out.Max = measure(stats.Max, data)
	if out.Count > 1 {
		out.StdDev = measure(stats.StandardDeviationSample, data)
	}
	return out
}

func measure(fn func(stats.Float64Data) (float64, error), data stats.Float64Data) *float64 {
	v, err := fn(data)
	if err != nil {
		return nil
	}
	return &v
}

// DescribeObservations groups obs by metric and describes each group, ordered
// by metric key. Values for every subject in obs are pooled.
func DescribeObservations(obs []models.Observation) []Stats {
	groups := make(map[string][]models.Observation)
	for _, o := range obs {
		key := o.Metric.Key()
		groups[key] = append(groups[key], o)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Stats, 0, len(keys))
	for _, k := range keys {
		out = append(out, Describe(FromObservations(k, groups[k])))
	}
	return out
}
