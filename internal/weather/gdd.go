package weather

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// The sweep covers every integer base temperature in [MinBaseTemp, MaxBaseTemp].
const (
	MinBaseTemp = 0
	MaxBaseTemp = 20
)

// ErrInvalidRange is returned when a range bound is not a YYYY-MM-DD date.
var ErrInvalidRange = errors.New("invalid date range")

type dailyExtremes struct {
	date       string
	tmax, tmin float64
}

// SweepGDD accumulates growing degree days over three date ranges for each
// base temperature and picks the base that makes the three totals most alike.
// Records without daily extremes are ignored.
func SweepGDD(series []ObservationRecord, ranges [3]DateRange) (GDDSweep, error) {
	bounds, err := rangeBounds(ranges)
	if err != nil {
		return GDDSweep{}, err
	}

	days := dailySeries(series)

	table := make([]GDDResult, 0, MaxBaseTemp-MinBaseTemp+1)
	for tb := MinBaseTemp; tb <= MaxBaseTemp; tb++ {
		var sums [3]float64
		for i, b := range bounds {
			sums[i] = round2(accumulate(days, b[0], b[1], float64(tb)))
		}
		table = append(table, GDDResult{
			Tb:     tb,
			GDD1:   sums[0],
			GDD2:   sums[1],
			GDD3:   sums[2],
			Spread: round2(populationStdDev(sums[:])),
		})
	}

	best := table[0]
	for _, row := range table[1:] {
		if row.Spread < best.Spread {
			best = row
		}
	}

	return GDDSweep{Table: table, Best: best}, nil
}

// rangeBounds normalizes each range to inclusive day keys.
func rangeBounds(ranges [3]DateRange) ([3][2]string, error) {
	var bounds [3][2]string
	for i, r := range ranges {
		start, err := normalizeDate(r.Start)
		if err != nil {
			return bounds, fmt.Errorf("%w: range%d start: %v", ErrInvalidRange, i+1, err)
		}
		end, err := normalizeDate(r.End)
		if err != nil {
			return bounds, fmt.Errorf("%w: range%d end: %v", ErrInvalidRange, i+1, err)
		}
		bounds[i] = [2]string{start, end}
	}
	return bounds, nil
}

// DailyGDD is a single day's contribution: max(0, (tmax+tmin)/2 - tb).
func DailyGDD(tmax, tmin, tb float64) float64 {
	return math.Max(0, (tmax+tmin)/2-tb)
}

func accumulate(days []dailyExtremes, start, end string, tb float64) float64 {
	var sum float64
	for _, d := range days {
		if d.date < start || d.date > end {
			continue
		}
		sum += DailyGDD(d.tmax, d.tmin, tb)
	}
	return sum
}

// dailySeries keeps usable days sorted by date so summation order, and
// therefore the rounded output, does not depend on input order.
func dailySeries(series []ObservationRecord) []dailyExtremes {
	days := make([]dailyExtremes, 0, len(series))
	for _, rec := range series {
		if !rec.HasDailyExtremes() {
			continue
		}
		date, err := normalizeDate(rec.ObsKey)
		if err != nil {
			continue
		}
		days = append(days, dailyExtremes{date: date, tmax: *rec.TMax, tmin: *rec.TMin})
	}
	slices.SortStableFunc(days, func(a, b dailyExtremes) int {
		return strings.Compare(a.date, b.date)
	})
	return days
}

func normalizeDate(s string) (string, error) {
	t, err := time.Parse(DayKeyLayout, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return t.Format(DayKeyLayout), nil
}

func populationStdDev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(vals)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
