// ABOUTME: Tests for the date join and per-date reducers.
// ABOUTME: Covers disjoint inputs, fan-out products, absent values, and reducer identity.
package aggregate

import (
	"testing"

	"github.com/harperreed/healthdash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) models.Date {
	day, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return day
}

func f(v float64) *float64 { return &v }

func series(name string, pts ...Point) Series {
	return Series{Name: name, Points: pts}
}

func TestMergeInnerJoin(t *testing.T) {
	steps := series("steps", Point{d("2024-11-01"), f(100)}, Point{d("2024-11-02"), f(200)})
	sleep := series("sleep", Point{d("2024-11-01"), f(7.5)})

	got := Merge(steps, sleep)

	assert.Equal(t, []string{"steps", "sleep"}, got.Columns)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "2024-11-01", got.Rows[0].Date.String())
	assert.Equal(t, 100.0, *got.Rows[0].Values[0])
	assert.Equal(t, 7.5, *got.Rows[0].Values[1])
}

func TestMergeDisjointDatesIsEmpty(t *testing.T) {
	a := series("a", Point{d("2024-11-01"), f(1)})
	b := series("b", Point{d("2024-11-02"), f(2)})

	got := Merge(a, b)
	assert.True(t, got.Empty())
	assert.NotNil(t, got.Rows)
}

func TestMergeProducesJoinProduct(t *testing.T) {
	a := series("a", Point{d("2024-11-01"), f(1)}, Point{d("2024-11-01"), f(2)})
	b := series("b", Point{d("2024-11-01"), f(10)}, Point{d("2024-11-01"), f(20)}, Point{d("2024-11-01"), f(30)})

	got := Merge(a, b)
	assert.Len(t, got.Rows, 6)
}

func TestMergeKeepsAbsentValuesAndOrdersByDate(t *testing.T) {
	a := series("a", Point{d("2024-11-03"), f(3)}, Point{d("2024-11-01"), nil})
	b := series("b", Point{d("2024-11-01"), f(1)}, Point{d("2024-11-03"), f(30)})

	got := Merge(a, b)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "2024-11-01", got.Rows[0].Date.String())
	assert.Nil(t, got.Rows[0].Values[0])
	assert.Equal(t, "2024-11-03", got.Rows[1].Date.String())
}

func TestMergeThreeSeriesAndNone(t *testing.T) {
	a := series("a", Point{d("2024-11-01"), f(1)}, Point{d("2024-11-02"), f(2)})
	b := series("b", Point{d("2024-11-01"), f(3)}, Point{d("2024-11-02"), f(4)})
	c := series("c", Point{d("2024-11-02"), f(5)})

	got := Merge(a, b, c)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []*float64{f(2), f(4), f(5)}, got.Rows[0].Values)

	empty := Merge()
	assert.Empty(t, empty.Columns)
	assert.Empty(t, empty.Rows)
}

func TestGroupBySingleRowIsIdentity(t *testing.T) {
	table := Merge(
		series("steps", Point{d("2024-11-01"), f(100)}, Point{d("2024-11-02"), f(200)}),
		series("sleep", Point{d("2024-11-01"), f(7.5)}, Point{d("2024-11-02"), f(6)}),
	)

	for _, r := range []Reducer{Sum, Mean} {
		got, err := GroupBy(table, []Reducer{r, r})
		require.NoError(t, err)
		assert.Equal(t, table.Rows, got.Rows, "reducer %s", r)
	}
}

func TestGroupByReducesFanOut(t *testing.T) {
	table := Table{
		Columns: []string{"steps", "hr"},
		Rows: []Row{
			{Date: d("2024-11-02"), Values: []*float64{f(5), nil}},
			{Date: d("2024-11-01"), Values: []*float64{f(100), f(60)}},
			{Date: d("2024-11-01"), Values: []*float64{f(50), f(70)}},
			{Date: d("2024-11-01"), Values: []*float64{nil, nil}},
		},
	}

	got, err := GroupBy(table, []Reducer{Sum, Mean})
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)

	assert.Equal(t, "2024-11-01", got.Rows[0].Date.String())
	assert.Equal(t, 150.0, *got.Rows[0].Values[0])
	assert.Equal(t, 65.0, *got.Rows[0].Values[1])

	assert.Equal(t, 5.0, *got.Rows[1].Values[0])
	assert.Nil(t, got.Rows[1].Values[1], "column with no present inputs stays absent")
}

func TestGroupByErrors(t *testing.T) {
	table := Table{Columns: []string{"a", "b"}}

	_, err := GroupBy(table, []Reducer{Sum})
	assert.Error(t, err)

	_, err = GroupBy(table, []Reducer{Sum, "median"})
	assert.Error(t, err)
}

func TestCollapse(t *testing.T) {
	s := series("hr",
		Point{d("2024-11-02"), f(80)},
		Point{d("2024-11-01"), f(60)},
		Point{d("2024-11-01"), f(70)},
	)

	got := Collapse(s, Mean)
	require.Len(t, got.Points, 2)
	assert.Equal(t, "2024-11-01", got.Points[0].Date.String())
	assert.Equal(t, 65.0, *got.Points[0].Value)
	assert.Equal(t, 80.0, *got.Points[1].Value)
}

func TestFromObservationsSortsByDate(t *testing.T) {
	obs := []models.Observation{
		models.NewObservation("a", d("2024-11-02"), models.Steps, 2),
		models.NewObservation("a", d("2024-11-01"), models.Steps, 1),
	}
	s := FromObservations("steps", obs)
	assert.Equal(t, "steps", s.Name)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "2024-11-01", s.Points[0].Date.String())
}

func TestParseReducer(t *testing.T) {
	r, err := ParseReducer(" MEAN ")
	require.NoError(t, err)
	assert.Equal(t, Mean, r)

	r, err = ParseReducer("")
	require.NoError(t, err)
	assert.Equal(t, Sum, r)

	_, err = ParseReducer("max")
	assert.Error(t, err)
}
