// ABOUTME: The default four-panel dashboard layout.
// ABOUTME: Pairs activity, heart rate, calories, and sleep with their per-day reducers.
package dashboard

import (
	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/render"
)

// DefaultCharts returns a fresh copy of the standard panels.
func DefaultCharts() []render.ChartSpec {
	return []render.ChartSpec{
		{
			Title:  "Steps vs. Sleep",
			XField: "date",
			YFields: []render.Field{
				{Label: "Steps", Metric: "steps", Reducer: aggregate.Sum, Trace: render.TraceBar},
				{Label: "Sleep (min)", Metric: "sleep_minutes", Reducer: aggregate.Mean, Trace: render.TraceLine},
			},
			Secondary: true,
			XLabel:    "Date",
			YLabel:    "Steps",
			Y2Label:   "Minutes asleep",
		},
		{
			Title:  "Heart Rate vs. Sleep",
			XField: "date",
			YFields: []render.Field{
				{Label: "Heart Rate", Metric: "heart_rate", Reducer: aggregate.Mean, Trace: render.TraceLine},
				{Label: "Sleep (min)", Metric: "sleep_minutes", Reducer: aggregate.Mean, Trace: render.TraceLine},
			},
			Secondary: true,
			XLabel:    "Date",
			YLabel:    "BPM",
			Y2Label:   "Minutes asleep",
		},
		{
			Title:  "Calories vs. Steps",
			XField: "date",
			YFields: []render.Field{
				{Label: "Calories", Metric: "calories", Reducer: aggregate.Sum, Trace: render.TraceBar},
				{Label: "Steps", Metric: "steps", Reducer: aggregate.Sum, Trace: render.TraceBar},
			},
			XLabel:  "Date",
			YLabel:  "Total",
			BarMode: "group",
		},
		{
			Title:  "Heart Rate vs. Calories",
			XField: "date",
			YFields: []render.Field{
				{Label: "Heart Rate", Metric: "heart_rate", Reducer: aggregate.Mean, Trace: render.TraceLine},
				{Label: "Calories", Metric: "calories", Reducer: aggregate.Sum, Trace: render.TraceBar},
			},
			Secondary: true,
			XLabel:    "Date",
			YLabel:    "BPM",
			Y2Label:   "kcal",
		},
	}
}
