// ABOUTME: Tests for CSV and fitness-response ingestion.
// ABOUTME: Covers header aliasing, coercion, date detection, and bucket reducers.
package ingest

import (
	"strings"
	"testing"

	"github.com/harperreed/healthdash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valueOf(t *testing.T, o models.Observation) float64 {
	t.Helper()
	require.NotNil(t, o.Value, "expected a value for %s on %s", o.Metric, o.Date)
	return *o.Value
}

func TestParseCSVBasic(t *testing.T) {
	input := "date,step_counts,minutes_asleep\n2024-11-01,100,420\n2024-11-02,200,\n"

	obs, err := ParseCSV(strings.NewReader(input), CSVOptions{Subject: "alice"})
	require.NoError(t, err)
	require.Len(t, obs, 4)

	assert.Equal(t, models.Steps, obs[0].Metric)
	assert.Equal(t, "2024-11-01", obs[0].Date.String())
	assert.Equal(t, 100.0, valueOf(t, obs[0]))
	assert.Equal(t, models.SleepMinutes, obs[1].Metric)
	assert.Equal(t, 420.0, valueOf(t, obs[1]))

	assert.Equal(t, "2024-11-02", obs[3].Date.String())
	assert.Nil(t, obs[3].Value, "missing cell should be absent")
	for _, o := range obs {
		assert.Equal(t, "alice", o.SubjectID)
	}
}

func TestParseCSVCustomAndIgnoredColumns(t *testing.T) {
	input := "Day,RBC Count,notes,average_hr\n2024-11-01,4.6,felt fine,61.5\n2024-11-02,oops,tired,63\n"

	obs, err := ParseCSV(strings.NewReader(input), CSVOptions{Subject: "bob"})
	require.NoError(t, err)
	require.Len(t, obs, 4)

	rbc := models.Metric{Kind: models.KindCustom, Name: "rbc_count"}
	assert.Equal(t, rbc, obs[0].Metric)
	assert.Equal(t, models.HeartRate, obs[1].Metric)
	assert.Nil(t, obs[2].Value, "unparseable numeric cell should coerce to absent")
	assert.Equal(t, 63.0, valueOf(t, obs[3]))
}

func TestParseCSVDropsBadDates(t *testing.T) {
	input := "date,steps\n2024-11-01,100\nnot-a-date,5\n2024/11/03,300\n"

	obs, err := ParseCSV(strings.NewReader(input), CSVOptions{Subject: "alice"})
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "2024-11-03", obs[1].Date.String())
}

func TestParseCSVCustomDateColumnAndDelimiter(t *testing.T) {
	input := "when;steps\n2024-11-01;100\n"

	obs, err := ParseCSV(strings.NewReader(input), CSVOptions{Subject: "alice", DateColumn: "When", Comma: ';'})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 100.0, valueOf(t, obs[0]))
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CSVOptions
	}{
		{"missing subject", "date,steps\n2024-11-01,1\n", CSVOptions{}},
		{"empty file", "", CSVOptions{Subject: "a"}},
		{"header only", "date,steps\n", CSVOptions{Subject: "a"}},
		{"no date column", "a,steps\nx,1\n", CSVOptions{Subject: "a"}},
		{"no numeric column", "date,notes\n2024-11-01,hello\n", CSVOptions{Subject: "a"}},
		{"no valid dates", "date,steps\nnope,1\n", CSVOptions{Subject: "a"}},
		{"malformed quoting", "date,steps\n\"2024-11-01,1\n", CSVOptions{Subject: "a"}},
		{"aliased metric columns", "date,steps,step_counts\n2024-11-01,1,2\n", CSVOptions{Subject: "a"}},
		{"colliding custom columns", "date,Blood RBC,blood-rbc\n2024-11-01,4.6,4.7\n", CSVOptions{Subject: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := ParseCSV(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.True(t, models.IsValidation(err), "expected ValidationError, got %v", err)
			assert.Nil(t, obs)
		})
	}
}

func TestParseCSVNamesCollidingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,average_hr,HR\n2024-11-01,61,62\n"), CSVOptions{Subject: "alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"average_hr"`)
	assert.Contains(t, err.Error(), `"HR"`)
	assert.Contains(t, err.Error(), "heart_rate")
}

func TestMetricForHeader(t *testing.T) {
	tests := map[string]models.Metric{
		"Steps":          models.Steps,
		"HR":             models.HeartRate,
		"Minutes Asleep": models.SleepMinutes,
		"calories":       models.Calories,
		"Cigarettes":     {Kind: models.KindCustom, Name: "cigarettes"},
	}
	for header, want := range tests {
		got, err := MetricForHeader(header)
		require.NoError(t, err, header)
		assert.Equal(t, want, got, header)
	}

	_, err := MetricForHeader("!!!")
	assert.Error(t, err)
}

const fitSteps = `{
  "bucket": [
    {
      "startTimeMillis": "1730419200000",
      "endTimeMillis": "1730505600000",
      "dataset": [{"point": [
        {"startTimeNanos": "1730419200000000000", "endTimeNanos": "1730422800000000000", "value": [{"intVal": 60}]},
        {"startTimeNanos": "1730422800000000000", "endTimeNanos": "1730426400000000000", "value": [{"intVal": 40}]}
      ]}]
    },
    {
      "startTimeMillis": 1730505600000,
      "endTimeMillis": 1730592000000,
      "dataset": [{"point": []}]
    }
  ]
}`

func TestParseFitResponseSteps(t *testing.T) {
	obs, err := ParseFitResponse(strings.NewReader(fitSteps), "alice", models.Steps)
	require.NoError(t, err)
	require.Len(t, obs, 1, "bucket without points should be dropped")

	assert.Equal(t, "2024-11-01", obs[0].Date.String())
	assert.Equal(t, 100.0, valueOf(t, obs[0]))
}

func TestParseFitResponseAllBucketsEmpty(t *testing.T) {
	body := `{"bucket":[{"startTimeMillis":"1730419200000","dataset":[{"point":[]}]},
		{"startTimeMillis":"1730505600000","dataset":[]}]}`

	obs, err := ParseFitResponse(strings.NewReader(body), "alice", models.Steps)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestParseFitResponseHeartRateMean(t *testing.T) {
	body := `{"bucket":[{"startTimeMillis":"1730419200000","dataset":[{"point":[
		{"value":[{"fpVal":60},{"fpVal":90},{"fpVal":50}]},
		{"value":[{"fpVal":70},{"fpVal":95},{"fpVal":55}]}
	]}]}]}`

	obs, err := ParseFitResponse(strings.NewReader(body), "alice", models.HeartRate)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.InDelta(t, 65.0, valueOf(t, obs[0]), 1e-9)
}

func TestParseFitResponseCaloriesAndSleep(t *testing.T) {
	cal := `{"bucket":[{"startTimeMillis":"1730419200000","dataset":[{"point":[
		{"value":[{"fpVal":1200.5}]},{"value":[{"fpVal":800.25}]}]}]}]}`
	obs, err := ParseFitResponse(strings.NewReader(cal), "alice", models.Calories)
	require.NoError(t, err)
	assert.InDelta(t, 2000.75, valueOf(t, obs[0]), 1e-9)

	sleep := `{"bucket":[{"startTimeMillis":"1730419200000","dataset":[{"point":[
		{"startTimeNanos":"0","endTimeNanos":"1800000000000","value":[{"intVal":4}]},
		{"startTimeNanos":"1800000000000","endTimeNanos":"5400000000000","value":[{"intVal":5}]}]}]}]}`
	obs, err = ParseFitResponse(strings.NewReader(sleep), "alice", models.SleepMinutes)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, valueOf(t, obs[0]), 1e-9)
}

func TestParseFitResponseErrors(t *testing.T) {
	_, err := ParseFitResponse(strings.NewReader(fitSteps), "", models.Steps)
	assert.True(t, models.IsValidation(err))

	_, err = ParseFitResponse(strings.NewReader("{not json"), "alice", models.Steps)
	assert.True(t, models.IsValidation(err))

	custom := models.Metric{Kind: models.KindCustom, Name: "rbc"}
	_, err = ParseFitResponse(strings.NewReader(fitSteps), "alice", custom)
	assert.True(t, models.IsValidation(err))
}
