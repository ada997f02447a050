package weather

import (
	"context"
)

// Provider abstracts the remote station API. Fetch returns the decoded
// document; it does not filter or validate individual entries.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, stationID string) (StationPayload, error)
}

// Store is the contract for an observation relation keyed by ObsKey.
// Uniqueness is enforced by the store itself, callers may pre-filter.
type Store interface {
	// Init creates the schema; safe to call on every start.
	Init(ctx context.Context) error
	// InsertIfAbsent inserts records whose key is not yet present and
	// returns how many were actually inserted.
	InsertIfAbsent(ctx context.Context, records []ObservationRecord) (int, error)
	// ReadRange returns records with from <= key (<= *to when to is set),
	// ascending by key.
	ReadRange(ctx context.Context, from string, to *string) ([]ObservationRecord, error)
	// ExistingKeys returns the subset of keys already stored.
	ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
	// ClearAll removes every record and returns the number removed.
	ClearAll(ctx context.Context) (int, error)
}
