package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-gdd/internal/observability"
)

const (
	sourceRealtime = "realtime"
	sourceClimate  = "climate"
)

var errNoProvider = errors.New("no station provider configured")

// ServiceConfig holds the tunables of a Service.
type ServiceConfig struct {
	StationID    string
	FetchTimeout time.Duration
	// DayFallback is passed through to the climate CSV parser.
	DayFallback bool
}

// Service ties the station provider, the two observation stores and the
// analysis together.
type Service struct {
	realtime Store
	climate  Store
	provider Provider

	stationID    string
	fetchTimeout time.Duration
	csv          ClimateCSVParser

	status  *UpdateStatus
	metrics *observability.Metrics
	logger  *slog.Logger

	// runMu keeps manual and scheduled ingestion runs from overlapping.
	runMu sync.Mutex
}

// NewService creates a new Service. status and logger may be nil.
func NewService(
	realtime, climate Store,
	provider Provider,
	status *UpdateStatus,
	metrics *observability.Metrics,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if status == nil {
		status = NewUpdateStatus(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		realtime:     realtime,
		climate:      climate,
		provider:     provider,
		stationID:    cfg.StationID,
		fetchTimeout: cfg.FetchTimeout,
		csv:          ClimateCSVParser{DayFallback: cfg.DayFallback},
		status:       status,
		metrics:      metrics,
		logger:       logger,
	}
}

// StationID returns the station this service ingests.
func (s *Service) StationID() string {
	return s.stationID
}

// Status exposes the realtime last-update tracker.
func (s *Service) Status() *UpdateStatus {
	return s.status
}

// RunIngestion performs one fetch-parse-store cycle against the station API.
// It never returns an error or panics; failures are reported in the result
// and leave the last-update time untouched.
func (s *Service) RunIngestion(ctx context.Context) (res IngestResult) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	res.RunID = uuid.NewString()
	log := s.logger.With("run_id", res.RunID, "station_id", s.stationID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Inserted = 0
			res.Err = fmt.Errorf("ingestion panic: %v", r)
		}
		s.metrics.IngestionDuration.Observe(time.Since(start).Seconds())
		s.metrics.IngestionRuns.WithLabelValues(observability.Outcome(res.Err)).Inc()
		if res.Err != nil {
			log.Error("ingestion failed", "error", res.Err)
			return
		}
		log.Info("ingestion finished",
			"inserted", res.Inserted,
			"skipped", res.Skipped,
			"ignored", res.Ignored,
			"duration", time.Since(start),
		)
	}()

	if s.provider == nil {
		res.Err = errNoProvider
		return res
	}

	if err := s.realtime.Init(ctx); err != nil {
		res.Err = fmt.Errorf("init realtime store: %w", err)
		return res
	}

	payload, err := s.fetch(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	parsed := ParseStationPayload(payload, s.stationID)
	res.Skipped = parsed.Skipped
	res.Ignored = parsed.Ignored
	s.metrics.RecordsSkipped.WithLabelValues(sourceRealtime, "invalid").Add(float64(parsed.Skipped))
	s.metrics.RecordsSkipped.WithLabelValues(sourceRealtime, "other_station").Add(float64(parsed.Ignored))

	if len(parsed.Records) == 0 {
		log.Warn("no usable observations in payload", "entries", payload.Len())
		return res
	}

	inserted, err := s.realtime.InsertIfAbsent(ctx, parsed.Records)
	if err != nil {
		res.Err = fmt.Errorf("store realtime records: %w", err)
		return res
	}
	res.Inserted = inserted
	s.metrics.RecordsInserted.WithLabelValues(sourceRealtime).Add(float64(inserted))
	s.metrics.RecordsSkipped.WithLabelValues(sourceRealtime, "duplicate").Add(float64(len(parsed.Records) - inserted))

	updated := s.status.MarkUpdated()
	s.metrics.LastUpdate.Set(float64(updated.Unix()))
	return res
}

func (s *Service) fetch(ctx context.Context) (StationPayload, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	payload, err := s.provider.Fetch(ctx, s.stationID)
	s.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	s.metrics.FetchRequests.WithLabelValues(observability.Outcome(err)).Inc()
	if err != nil {
		return StationPayload{}, fmt.Errorf("fetch from %s: %w", s.provider.Name(), err)
	}
	return payload, nil
}

// ImportClimateCSV parses one uploaded monthly file and stores the days not
// already present. Problems are reported in the result.
func (s *Service) ImportClimateCSV(ctx context.Context, filename string, data []byte) ImportResult {
	res := ImportResult{Filename: filename}
	log := s.logger.With("filename", filename)

	defer func() {
		s.metrics.ClimateImports.WithLabelValues(observability.Outcome(res.Err)).Inc()
		if res.Err != nil {
			log.Warn("climate import failed", "error", res.Err)
			return
		}
		log.Info("climate import finished",
			"parsed", res.Parsed,
			"inserted", res.Inserted,
			"duplicates", res.Duplicates,
			"skipped", res.Skipped,
			"bad_days", res.BadDays,
		)
	}()

	if err := s.climate.Init(ctx); err != nil {
		res.Err = fmt.Errorf("init climate store: %w", err)
		return res
	}

	parsed, err := s.csv.Parse(data, filename)
	if err != nil {
		res.Err = err
		return res
	}
	res.Parsed = len(parsed.Records)
	res.Skipped = parsed.Skipped
	res.BadDays = parsed.BadDays
	s.metrics.RecordsSkipped.WithLabelValues(sourceClimate, "invalid").Add(float64(parsed.Skipped))
	s.metrics.RecordsSkipped.WithLabelValues(sourceClimate, "bad_day").Add(float64(parsed.BadDays))

	if len(parsed.Records) == 0 {
		return res
	}

	keys := make([]string, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		keys = append(keys, rec.ObsKey)
	}
	existing, err := s.climate.ExistingKeys(ctx, keys)
	if err != nil {
		res.Err = fmt.Errorf("look up existing days: %w", err)
		return res
	}

	fresh := make([]ObservationRecord, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		if _, ok := existing[rec.ObsKey]; ok {
			continue
		}
		fresh = append(fresh, rec)
	}

	inserted, err := s.climate.InsertIfAbsent(ctx, fresh)
	if err != nil {
		res.Err = fmt.Errorf("store climate records: %w", err)
		return res
	}
	res.Inserted = inserted
	res.Duplicates = res.Parsed - inserted
	s.metrics.RecordsInserted.WithLabelValues(sourceClimate).Add(float64(inserted))
	s.metrics.RecordsSkipped.WithLabelValues(sourceClimate, "duplicate").Add(float64(res.Duplicates))
	return res
}

// Realtime returns station API records in [from, to]; a nil to is open ended.
func (s *Service) Realtime(ctx context.Context, from string, to *string) ([]ObservationRecord, error) {
	if err := s.realtime.Init(ctx); err != nil {
		return nil, fmt.Errorf("init realtime store: %w", err)
	}
	return s.realtime.ReadRange(ctx, from, to)
}

// Climate returns daily climate records in [from, to]; a nil to is open ended.
func (s *Service) Climate(ctx context.Context, from string, to *string) ([]ObservationRecord, error) {
	if err := s.climate.Init(ctx); err != nil {
		return nil, fmt.Errorf("init climate store: %w", err)
	}
	return s.climate.ReadRange(ctx, from, to)
}

// ClearClimate removes every climate record.
func (s *Service) ClearClimate(ctx context.Context) (int, error) {
	if err := s.climate.Init(ctx); err != nil {
		return 0, fmt.Errorf("init climate store: %w", err)
	}
	n, err := s.climate.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("climate records cleared", "removed", n)
	return n, nil
}

// CompareGDD runs the threshold sweep over the stored climate series.
func (s *Service) CompareGDD(ctx context.Context, ranges [3]DateRange) (sweep GDDSweep, err error) {
	defer func() {
		s.metrics.GDDSweeps.WithLabelValues(observability.Outcome(err)).Inc()
	}()

	if _, err = rangeBounds(ranges); err != nil {
		return GDDSweep{}, err
	}
	series, err := s.Climate(ctx, "", nil)
	if err != nil {
		return GDDSweep{}, err
	}
	return SweepGDD(series, ranges)
}
