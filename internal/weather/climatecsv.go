package weather

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/i474232898/weather-gdd/internal/common"
)

var (
	// ErrFilenameFormat is returned when an upload name does not encode
	// prefix-YYYY-MM.
	ErrFilenameFormat = errors.New("filename must look like prefix-YYYY-MM.csv")
	// ErrMissingColumn is returned when a required logical column cannot be
	// located in the header.
	ErrMissingColumn = errors.New("missing column")
	// ErrHeader is returned when the two header rows cannot be read.
	ErrHeader = errors.New("csv header unreadable")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// climateColumn maps a logical column to the header fragments that identify
// it. Vendors label columns in Chinese, English, or both.
type climateColumn struct {
	field    string
	keywords []string
}

// climateColumns is resolved in this order; for each, the first physical
// column containing any keyword wins.
var climateColumns = []climateColumn{
	{field: "obs_time", keywords: []string{"觀測時間", "ObsTime"}},
	{field: "temperature", keywords: []string{"氣溫", "Temperature"}},
	{field: "humidity", keywords: []string{"相對溼度", "相對濕度", "RH"}},
	{field: "tmax", keywords: []string{"最高氣溫", "T Max"}},
	{field: "tmin", keywords: []string{"最低氣溫", "T Min"}},
}

// columnIndex holds the physical position of each logical column.
type columnIndex struct {
	obsTime, temp, rh, tmax, tmin int
}

// ClimateCSVParser reads monthly climate summary files.
type ClimateCSVParser struct {
	// DayFallback keys rows with an unreadable day cell to the 1st of the
	// month instead of rejecting them.
	DayFallback bool
}

// CSVResult is the outcome of parsing one climate file.
type CSVResult struct {
	Records []ObservationRecord
	// Skipped counts rows dropped for missing or non-numeric values.
	Skipped int
	// BadDays counts rows whose day cell could not be read.
	BadDays int
}

// Summary returns a one-line human readable description.
func (r CSVResult) Summary() string {
	return fmt.Sprintf("%d records, %d rows skipped, %d bad day cells", len(r.Records), r.Skipped, r.BadDays)
}

// MonthFromFilename extracts the year and zero-padded month from names like
// "C0D680-2024-05.csv".
func MonthFromFilename(filename string) (year, month string, err error) {
	base := filepath.Base(strings.TrimSpace(filename))
	name := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: %q", ErrFilenameFormat, filename)
	}

	y, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return "", "", fmt.Errorf("%w: bad year in %q", ErrFilenameFormat, filename)
	}
	m, err := strconv.Atoi(parts[2])
	if err != nil || m < 1 || m > 12 {
		return "", "", fmt.Errorf("%w: bad month in %q", ErrFilenameFormat, filename)
	}
	return fmt.Sprintf("%04d", y), fmt.Sprintf("%02d", m), nil
}

// Parse converts an uploaded climate file into day-keyed records. File level
// problems (name, header, columns) are errors; row problems are counted.
func (p ClimateCSVParser) Parse(data []byte, filename string) (CSVResult, error) {
	year, month, err := MonthFromFilename(filename)
	if err != nil {
		return CSVResult{}, err
	}

	text, err := decodeCSVText(data)
	if err != nil {
		return CSVResult{}, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	group, err := reader.Read()
	if err != nil {
		return CSVResult{}, fmt.Errorf("%w: group row: %v", ErrHeader, err)
	}
	sub, err := reader.Read()
	if err != nil {
		return CSVResult{}, fmt.Errorf("%w: sub-header row: %v", ErrHeader, err)
	}

	cols, err := resolveClimateColumns(joinHeaders(group, sub))
	if err != nil {
		return CSVResult{}, err
	}

	var res CSVResult
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}
		if isBlankRow(row) {
			continue
		}

		day, ok := p.dayKey(year, month, cell(row, cols.obsTime))
		if !ok {
			res.BadDays++
			continue
		}

		rec, ok := climateRecord(day, row, cols)
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func (p ClimateCSVParser) dayKey(year, month, raw string) (string, bool) {
	if key, ok := DayKey(year, month, raw); ok {
		return key, true
	}
	if p.DayFallback {
		return year + "-" + month + "-01", true
	}
	return "", false
}

// DayKey builds a YYYY-MM-DD key from a day-of-month cell such as " 5 " or
// "05 (Sun)". Days that do not exist in the month are rejected.
func DayKey(year, month, raw string) (string, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", false
	}
	d, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", false
	}

	key := fmt.Sprintf("%s-%s-%02d", year, month, d)
	if _, err := time.Parse(DayKeyLayout, key); err != nil {
		return "", false
	}
	return key, true
}

func climateRecord(key string, row []string, cols columnIndex) (ObservationRecord, bool) {
	var vals [4]float64
	for i, idx := range []int{cols.temp, cols.rh, cols.tmax, cols.tmin} {
		v, ok := parseClimateValue(cell(row, idx))
		if !ok {
			return ObservationRecord{}, false
		}
		vals[i] = v
	}
	return ObservationRecord{
		ObsKey:      key,
		Temperature: floatPtr(vals[0]),
		Humidity:    floatPtr(vals[1]),
		TMax:        floatPtr(vals[2]),
		TMin:        floatPtr(vals[3]),
	}, true
}

// parseClimateValue reads a numeric cell; placeholders such as "--", "X" or
// sentinel values count as missing.
func parseClimateValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || isSentinel(v) {
		return 0, false
	}
	return v, true
}

func joinHeaders(group, sub []string) []string {
	n := max(len(group), len(sub))
	headers := make([]string, n)
	for i := 0; i < n; i++ {
		headers[i] = strings.TrimSpace(cell(group, i) + "_" + cell(sub, i))
	}
	return headers
}

func resolveClimateColumns(headers []string) (columnIndex, error) {
	found := make(map[string]int, len(climateColumns))
	for _, col := range climateColumns {
		idx := common.FirstMatch(headers, col.keywords...)
		if idx < 0 {
			return columnIndex{}, fmt.Errorf("%w: %s (looked for %s)", ErrMissingColumn, col.field, strings.Join(col.keywords, ", "))
		}
		found[col.field] = idx
	}
	return columnIndex{
		obsTime: found["obs_time"],
		temp:    found["temperature"],
		rh:      found["humidity"],
		tmax:    found["tmax"],
		tmin:    found["tmin"],
	}, nil
}

func decodeCSVText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(traditionalchinese.Big5.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode big5 csv: %w", err)
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
