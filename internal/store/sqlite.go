package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-gdd/internal/weather"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// keyChunk bounds the number of bind variables in a single IN (...) lookup.
const keyChunk = 500

var errNoDB = errors.New("sqlite store is closed")

// Layout selects which table and value columns a store uses.
type Layout int

const (
	// LayoutRealtime stores minute-keyed station API records.
	LayoutRealtime Layout = iota
	// LayoutClimate stores day-keyed climate records with daily extremes.
	LayoutClimate
)

func (l Layout) table() string {
	if l == LayoutClimate {
		return "climate"
	}
	return "weather"
}

func (l Layout) columns() []string {
	if l == LayoutClimate {
		return []string{"temperature", "humidity", "tmax", "tmin"}
	}
	return []string{"temperature", "humidity"}
}

// SQLiteStore is a weather.Store backed by one SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	layout Layout
}

var _ weather.Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path. Use MemoryDSN for a
// throwaway database.
func Open(path string, layout Layout) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// One connection: writes are serialized anyway, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &SQLiteStore{db: db, layout: layout}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == MemoryDSN {
		return MemoryDSN, nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Init creates the table if it does not exist yet.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return errNoDB
	}

	cols := make([]string, 0, len(s.layout.columns()))
	for _, c := range s.layout.columns() {
		cols = append(cols, c+" REAL")
	}
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (obs_key TEXT PRIMARY KEY, %s)",
		s.layout.table(), strings.Join(cols, ", "),
	)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.layout.table(), err)
	}
	return nil
}

// InsertIfAbsent writes all records in one transaction, skipping keys that
// already exist. Either every new record is stored or none is.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, records []weather.ObservationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cols := append([]string{"obs_key"}, s.layout.columns()...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		s.layout.table(), strings.Join(cols, ", "), placeholders,
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx, s.values(rec)...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", rec.ObsKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) values(rec weather.ObservationRecord) []any {
	vals := []any{rec.ObsKey, nullable(rec.Temperature), nullable(rec.Humidity)}
	if s.layout == LayoutClimate {
		vals = append(vals, nullable(rec.TMax), nullable(rec.TMin))
	}
	return vals
}

// ReadRange returns records with from <= obs_key (and obs_key <= *to when to
// is set), oldest first.
func (s *SQLiteStore) ReadRange(ctx context.Context, from string, to *string) ([]weather.ObservationRecord, error) {
	query := fmt.Sprintf(
		"SELECT obs_key, %s FROM %s WHERE obs_key >= ?",
		strings.Join(s.layout.columns(), ", "), s.layout.table(),
	)
	args := []any{from}
	if to != nil {
		query += " AND obs_key <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY obs_key ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.layout.table(), err)
	}
	defer rows.Close()

	var out []weather.ObservationRecord
	for rows.Next() {
		var (
			rec        weather.ObservationRecord
			temp, rh   sql.NullFloat64
			tmax, tmin sql.NullFloat64
		)
		dest := []any{&rec.ObsKey, &temp, &rh}
		if s.layout == LayoutClimate {
			dest = append(dest, &tmax, &tmin)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.layout.table(), err)
		}
		rec.Temperature = ptr(temp)
		rec.Humidity = ptr(rh)
		rec.TMax = ptr(tmax)
		rec.TMin = ptr(tmin)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.layout.table(), err)
	}
	return out, nil
}

// ExistingKeys returns which of keys are already stored.
func (s *SQLiteStore) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(keys))
	for start := 0; start < len(keys); start += keyChunk {
		chunk := keys[start:min(start+keyChunk, len(keys))]

		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		query := fmt.Sprintf(
			"SELECT obs_key FROM %s WHERE obs_key IN (%s)",
			s.layout.table(), strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ","),
		)

		if err := s.collectKeys(ctx, query, args, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (s *SQLiteStore) collectKeys(ctx context.Context, query string, args []any, into map[string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return fmt.Errorf("scan key: %w", err)
		}
		into[k] = struct{}{}
	}
	return rows.Err()
}

// ClearAll deletes every record and reports how many were removed.
func (s *SQLiteStore) ClearAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM "+s.layout.table())
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", s.layout.table(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
