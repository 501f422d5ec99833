// ABOUTME: Tests for the dashboard pipeline against a real SQLite repository.
// ABOUTME: Covers empty state, joins across metrics, multi-subject collapse, and summaries.
package dashboard

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/render"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRepo(t *testing.T) storage.Repository {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "healthdash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildEmptyRepository(t *testing.T) {
	metrics := telemetry.NewTestManager()
	svc, err := NewService(openRepo(t), Options{Metrics: metrics})
	require.NoError(t, err)

	c, err := svc.Build(context.Background(), Request{Subject: "alice"})
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, c.Title)
	assert.Equal(t, 2, c.Columns)
	assert.Equal(t, 900, c.Height)
	require.Len(t, c.Panels, 4)
	for _, p := range c.Panels {
		assert.True(t, p.Empty, p.Title)
		assert.Equal(t, render.NoDataText, p.Placeholder)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CounterRenders))
}

func TestBuildJoinsMetricsOnDate(t *testing.T) {
	repo := openRepo(t)
	_, err := repo.Upsert(context.Background(), []models.Observation{
		models.NewObservation("alice", day("2024-11-01"), models.Steps, 100),
		models.NewObservation("alice", day("2024-11-02"), models.Steps, 200),
		models.NewObservation("alice", day("2024-11-01"), models.SleepMinutes, 450),
	})
	require.NoError(t, err)

	svc, err := NewService(repo, Options{})
	require.NoError(t, err)
	c, err := svc.Build(context.Background(), Request{Subject: "alice"})
	require.NoError(t, err)

	stepsSleep := c.Panels[0]
	require.False(t, stepsSleep.Empty)
	require.Len(t, stepsSleep.Traces, 2)
	assert.Equal(t, []string{"2024-11-01"}, stepsSleep.Traces[0].X)
	assert.Equal(t, 100.0, *stepsSleep.Traces[0].Y[0])
	assert.Equal(t, 450.0, *stepsSleep.Traces[1].Y[0])

	// No heart rate data: that panel stays empty without failing the build.
	assert.True(t, c.Panels[1].Empty)
}

func TestTableCollapsesSubjectsBeforeJoin(t *testing.T) {
	repo := openRepo(t)
	_, err := repo.Upsert(context.Background(), []models.Observation{
		models.NewObservation("alice", day("2024-11-01"), models.Steps, 100),
		models.NewObservation("bob", day("2024-11-01"), models.Steps, 50),
		models.NewObservation("alice", day("2024-11-01"), models.HeartRate, 60),
		models.NewObservation("bob", day("2024-11-01"), models.HeartRate, 80),
	})
	require.NoError(t, err)

	spec := render.ChartSpec{
		Title: "Steps vs HR",
		YFields: []render.Field{
			{Label: "Steps", Metric: "steps", Reducer: aggregate.Sum},
			{Label: "HR", Metric: "heart_rate", Reducer: aggregate.Mean},
		},
	}
	svc, err := NewService(repo, Options{Charts: []render.ChartSpec{spec}})
	require.NoError(t, err)

	table, err := svc.Table(context.Background(), spec, Request{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 150.0, *table.Rows[0].Values[0])
	assert.Equal(t, 70.0, *table.Rows[0].Values[1])
}

func TestCustomChartOnCustomMetric(t *testing.T) {
	repo := openRepo(t)
	rbc, err := models.Custom("rbc")
	require.NoError(t, err)
	cig, err := models.Custom("cigarettes")
	require.NoError(t, err)
	_, err = repo.Upsert(context.Background(), []models.Observation{
		models.NewObservation("alice", day("2024-11-01"), rbc, 4.6),
		models.NewObservation("alice", day("2024-11-01"), cig, 3),
	})
	require.NoError(t, err)

	spec := render.ChartSpec{
		Title: "RBC vs. Cigarettes",
		YFields: []render.Field{
			{Label: "RBC", Metric: "custom:rbc", Reducer: aggregate.Mean, Trace: render.TraceLine},
			{Label: "Cigarettes", Metric: "cigarettes", Reducer: aggregate.Sum},
		},
		Secondary: true,
	}
	svc, err := NewService(repo, Options{Charts: []render.ChartSpec{spec}, Columns: 1, Height: 400})
	require.NoError(t, err)

	c, err := svc.Build(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 400, c.Height)
	require.Len(t, c.Panels, 1)
	assert.False(t, c.Panels[0].Empty)
}

func TestNewServiceRejectsInvalidCharts(t *testing.T) {
	_, err := NewService(openRepo(t), Options{Charts: []render.ChartSpec{{Title: "broken"}}})
	assert.True(t, models.IsValidation(err))
}

func TestSummary(t *testing.T) {
	repo := openRepo(t)
	_, err := repo.Upsert(context.Background(), []models.Observation{
		models.NewObservation("alice", day("2024-11-01"), models.Steps, 100),
		models.NewObservation("alice", day("2024-11-01"), models.HeartRate, 61.5),
	})
	require.NoError(t, err)

	svc, err := NewService(repo, Options{})
	require.NoError(t, err)
	text, err := svc.Summary(context.Background(), Request{Subject: "alice"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	assert.Equal(t, []string{
		"alice - 2024-11-01: 100 steps",
		"alice - 2024-11-01: 61.50 bpm",
	}, lines)
}

func TestDefaultChartsAreValid(t *testing.T) {
	charts := DefaultCharts()
	require.Len(t, charts, 4)
	for _, c := range charts {
		assert.NoError(t, c.Validate(), c.Title)
	}
	assert.Equal(t, "group", charts[2].BarMode)
}
