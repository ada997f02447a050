package weather

import (
	"time"
)

// Key layouts for ObsKey. Both are zero-padded, so lexical order is time order.
const (
	MinuteKeyLayout = "2006-01-02 15:04"
	DayKeyLayout    = "2006-01-02"
)

// StationZone is the fixed local offset observations are keyed in (UTC+08:00).
var StationZone = time.FixedZone("UTC+8", 8*60*60)

// ObservationRecord is the canonical unit of stored data.
// Records coming from the station API carry only Temperature and Humidity and
// are keyed at minute resolution; monthly climate uploads also carry TMax/TMin
// and are keyed by day.
type ObservationRecord struct {
	ObsKey      string   `json:"obsKey"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	TMax        *float64 `json:"tmax,omitempty"`
	TMin        *float64 `json:"tmin,omitempty"`
}

// HasDailyExtremes reports whether the record can take part in a GDD sweep.
func (r ObservationRecord) HasDailyExtremes() bool {
	return r.TMax != nil && r.TMin != nil
}

// DateRange is an inclusive pair of YYYY-MM-DD bounds.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GDDResult is one row of a threshold sweep.
type GDDResult struct {
	Tb     int     `json:"Tb"`
	GDD1   float64 `json:"GDD1"`
	GDD2   float64 `json:"GDD2"`
	GDD3   float64 `json:"GDD3"`
	Spread float64 `json:"std"`
}

// GDDSweep is the full table plus the row with the smallest spread.
type GDDSweep struct {
	Table []GDDResult `json:"table"`
	Best  GDDResult   `json:"best"`
}

// IngestResult summarizes one station API ingestion run.
type IngestResult struct {
	RunID    string `json:"runId"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Ignored  int    `json:"ignored"`
	Err      error  `json:"-"`
}

// ErrorMessage returns the run's error message, or "" on success.
func (r IngestResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ImportResult summarizes one climate CSV upload.
type ImportResult struct {
	Filename   string `json:"filename"`
	Parsed     int    `json:"parsed"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	BadDays    int    `json:"badDays"`
	Err        error  `json:"-"`
}

func floatPtr(v float64) *float64 {
	return &v
}
