package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Element names read from a station's WeatherElement block.
const (
	ElementAirTemperature   = "AirTemperature"
	ElementRelativeHumidity = "RelativeHumidity"
)

// sentinelFloor marks the upstream "no data" placeholders (-99, -999, -9999).
const sentinelFloor = -99.0

var (
	errElementMissing = errors.New("element missing")
	errNotNumeric     = errors.New("element is not numeric")
	errNotAnObject    = errors.New("station payload is not a JSON object")
)

// obsTimeLayouts are tried in order. Layouts without an offset are read as
// station local time.
var obsTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// StationPayload is the station API document, reduced to its list of station
// entries. Entries stay raw until parsing so one malformed entry only costs
// itself.
type StationPayload struct {
	entries []json.RawMessage
}

// NewStationPayload builds a payload from already-encoded station entries.
func NewStationPayload(entries ...json.RawMessage) StationPayload {
	return StationPayload{entries: entries}
}

// Len returns the number of station entries in the document.
func (p StationPayload) Len() int {
	return len(p.entries)
}

// UnmarshalJSON reads records.Station. A missing or non-list Station block
// yields an empty payload; only a non-object document is an error.
func (p *StationPayload) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", errNotAnObject, err)
	}
	p.entries = nil

	var records struct {
		Station json.RawMessage `json:"Station"`
	}
	if raw, ok := doc["records"]; !ok || json.Unmarshal(raw, &records) != nil {
		return nil
	}

	var list []json.RawMessage
	if json.Unmarshal(records.Station, &list) != nil {
		return nil
	}
	p.entries = list
	return nil
}

// ElementSet is a station's weather elements, whichever shape they arrived
// in: a direct {"name": value} object or a [{"ElementName", "ElementValue"}]
// list. Unknown shapes decode to an empty set.
type ElementSet struct {
	values map[string]json.RawMessage
}

type elementPair struct {
	Name  string          `json:"ElementName"`
	Value json.RawMessage `json:"ElementValue"`
}

// UnmarshalJSON never fails; lookups on an unrecognized shape simply miss.
func (e *ElementSet) UnmarshalJSON(data []byte) error {
	e.values = make(map[string]json.RawMessage)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err == nil {
			e.values = m
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		for _, item := range items {
			var pair elementPair
			if err := json.Unmarshal(item, &pair); err != nil || pair.Name == "" {
				continue
			}
			// First occurrence wins.
			if _, seen := e.values[pair.Name]; !seen {
				e.values[pair.Name] = pair.Value
			}
		}
	}
	return nil
}

// Lookup returns the raw value stored under name.
func (e ElementSet) Lookup(name string) (json.RawMessage, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Float returns the value under name coerced to a float. Numeric strings are
// accepted.
func (e ElementSet) Float(name string) (float64, error) {
	raw, ok := e.Lookup(name)
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%s: %w", name, errElementMissing)
	}
	v, err := coerceFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func coerceFloat(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errNotNumeric
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, errNotNumeric
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}

type stationEntry struct {
	StationID string `json:"StationId"`
	ObsTime   struct {
		DateTime string `json:"DateTime"`
	} `json:"ObsTime"`
	WeatherElement ElementSet `json:"WeatherElement"`
}

// PayloadResult is the outcome of parsing one station payload.
type PayloadResult struct {
	Records []ObservationRecord
	// Skipped counts entries for the target station that could not be used.
	Skipped int
	// Ignored counts entries for other stations.
	Ignored int
}

// ParseStationPayload extracts the target station's observations. It never
// fails: unusable entries are counted in Skipped.
func ParseStationPayload(p StationPayload, stationID string) PayloadResult {
	var res PayloadResult
	for _, raw := range p.entries {
		var entry stationEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			res.Skipped++
			continue
		}
		if entry.StationID != stationID {
			res.Ignored++
			continue
		}
		rec, ok := entry.record()
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func (e stationEntry) record() (ObservationRecord, bool) {
	temp, err := e.WeatherElement.Float(ElementAirTemperature)
	if err != nil {
		return ObservationRecord{}, false
	}
	rh, err := e.WeatherElement.Float(ElementRelativeHumidity)
	if err != nil {
		return ObservationRecord{}, false
	}

	key, ok := MinuteKey(e.ObsTime.DateTime)
	if !ok {
		return ObservationRecord{}, false
	}

	rec := ObservationRecord{
		ObsKey:      key,
		Temperature: validTemperature(temp),
		Humidity:    validHumidity(rh),
	}
	if rec.Temperature == nil && rec.Humidity == nil {
		return ObservationRecord{}, false
	}
	return rec, true
}

// MinuteKey converts an observation timestamp into a station-local minute key.
func MinuteKey(ts string) (string, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return "", false
	}
	for _, layout := range obsTimeLayouts {
		t, err := time.ParseInLocation(layout, ts, StationZone)
		if err != nil {
			continue
		}
		return t.In(StationZone).Format(MinuteKeyLayout), true
	}
	return "", false
}

func isSentinel(v float64) bool {
	return v <= sentinelFloor
}

func validTemperature(v float64) *float64 {
	if isSentinel(v) {
		return nil
	}
	return floatPtr(v)
}

func validHumidity(v float64) *float64 {
	if isSentinel(v) || v < 0 || v > 100 {
		return nil
	}
	return floatPtr(v)
}
