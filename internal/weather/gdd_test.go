package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(key string, tmax, tmin float64) ObservationRecord {
	mean := (tmax + tmin) / 2
	return ObservationRecord{
		ObsKey:      key,
		Temperature: floatPtr(mean),
		Humidity:    floatPtr(70),
		TMax:        floatPtr(tmax),
		TMin:        floatPtr(tmin),
	}
}

func sameRange(start, end string) [3]DateRange {
	r := DateRange{Start: start, End: end}
	return [3]DateRange{r, r, r}
}

func TestSweepGDD_ThreeDayScenario(t *testing.T) {
	series := []ObservationRecord{
		day("2024-05-01", 30, 20),
		day("2024-05-02", 32, 22),
		day("2024-05-03", 28, 18),
	}

	sweep, err := SweepGDD(series, sameRange("2024-05-01", "2024-05-03"))
	require.NoError(t, err)
	require.Len(t, sweep.Table, MaxBaseTemp-MinBaseTemp+1)

	row := sweep.Table[10]
	assert.Equal(t, 10, row.Tb)
	assert.Equal(t, 45.0, row.GDD1)
	assert.Equal(t, 45.0, row.GDD2)
	assert.Equal(t, 45.0, row.GDD3)
	assert.Equal(t, 0.0, row.Spread)

	// Every row ties at zero spread, so the first one wins.
	assert.Equal(t, 0, sweep.Best.Tb)
	assert.Equal(t, 75.0, sweep.Best.GDD1)
}

func TestSweepGDD_PicksSmallestSpread(t *testing.T) {
	series := []ObservationRecord{
		day("2024-03-01", 30, 20), // mean 25
		day("2024-04-01", 20, 10), // mean 15
		day("2024-05-01", 20, 10), // mean 15
	}
	ranges := [3]DateRange{
		{Start: "2024-03-01", End: "2024-03-31"},
		{Start: "2024-04-01", End: "2024-04-30"},
		{Start: "2024-05-01", End: "2024-05-31"},
	}

	sweep, err := SweepGDD(series, ranges)
	require.NoError(t, err)

	assert.Equal(t, 20, sweep.Best.Tb)
	assert.Equal(t, 5.0, sweep.Best.GDD1)
	assert.Equal(t, 0.0, sweep.Best.GDD2)
	assert.Equal(t, 2.36, sweep.Best.Spread)
	assert.Equal(t, 4.71, sweep.Table[0].Spread)
}

func TestSweepGDD_MonotonicInBaseTemperature(t *testing.T) {
	series := []ObservationRecord{
		day("2024-05-01", 18, 6),
		day("2024-05-02", 25, 12),
		day("2024-05-03", 31, 21),
		day("2024-05-04", 9, 1),
	}

	sweep, err := SweepGDD(series, sameRange("2024-05-01", "2024-05-31"))
	require.NoError(t, err)

	for i := 1; i < len(sweep.Table); i++ {
		prev, cur := sweep.Table[i-1], sweep.Table[i]
		assert.Equal(t, prev.Tb+1, cur.Tb)
		assert.LessOrEqual(t, cur.GDD1, prev.GDD1, "Tb=%d", cur.Tb)
	}
}

func TestSweepGDD_EmptyAndReversedRanges(t *testing.T) {
	series := []ObservationRecord{day("2024-05-01", 30, 20)}
	ranges := [3]DateRange{
		{Start: "2024-05-01", End: "2024-05-01"},
		{Start: "2023-01-01", End: "2023-01-31"},
		{Start: "2024-05-31", End: "2024-05-01"},
	}

	sweep, err := SweepGDD(series, ranges)
	require.NoError(t, err)
	for _, row := range sweep.Table {
		assert.Equal(t, 0.0, row.GDD2)
		assert.Equal(t, 0.0, row.GDD3)
	}
	assert.Equal(t, 25.0, sweep.Table[0].GDD1)
}

func TestSweepGDD_IgnoresRecordsWithoutExtremes(t *testing.T) {
	series := []ObservationRecord{
		day("2024-05-01", 30, 20),
		{ObsKey: "2024-05-02", Temperature: floatPtr(40), Humidity: floatPtr(50)},
		{ObsKey: "2024-05-03 10:00", TMax: floatPtr(40), TMin: floatPtr(30)},
	}

	sweep, err := SweepGDD(series, sameRange("2024-05-01", "2024-05-31"))
	require.NoError(t, err)
	assert.Equal(t, 25.0, sweep.Table[0].GDD1)
}

func TestSweepGDD_Deterministic(t *testing.T) {
	a := []ObservationRecord{
		day("2024-05-01", 30.1, 20.3),
		day("2024-05-02", 32.7, 22.2),
		day("2024-05-03", 28.4, 18.9),
	}
	b := []ObservationRecord{a[2], a[0], a[1]}
	ranges := [3]DateRange{
		{Start: "2024-05-01", End: "2024-05-02"},
		{Start: "2024-05-02", End: "2024-05-03"},
		{Start: "2024-05-01", End: "2024-05-03"},
	}

	first, err := SweepGDD(a, ranges)
	require.NoError(t, err)
	second, err := SweepGDD(b, ranges)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSweepGDD_InvalidRange(t *testing.T) {
	tests := map[string][3]DateRange{
		"bad start": {{Start: "2024/05/01", End: "2024-05-02"}, {Start: "2024-05-01", End: "2024-05-02"}, {Start: "2024-05-01", End: "2024-05-02"}},
		"bad end":   {{Start: "2024-05-01", End: "2024-05-02"}, {Start: "2024-05-01", End: "2024-02-30"}, {Start: "2024-05-01", End: "2024-05-02"}},
		"empty":     {},
	}
	for name, ranges := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := SweepGDD(nil, ranges)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestDailyGDD(t *testing.T) {
	assert.Equal(t, 15.0, DailyGDD(30, 20, 10))
	assert.Equal(t, 0.0, DailyGDD(10, 4, 10))
}
