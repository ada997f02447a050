package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-gdd/internal/weather"
)

var errNoSchedule = errors.New("scheduler: empty cron expression")

// Ingester runs one ingestion cycle. *weather.Service satisfies it.
type Ingester interface {
	RunIngestion(ctx context.Context) weather.IngestResult
}

// Config controls when ingestion runs.
type Config struct {
	// Cron is a five-field expression, e.g. "10 * * * *" for ten past every hour.
	Cron       string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler periodically triggers station API ingestion.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	cfg       Config
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(cfg Config, ingester Ingester, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(cfg.Location)
	// A slow run makes the next tick wait instead of overlapping it.
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		ingester:  ingester,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the ingestion job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.Cron == "" {
		return errNoSchedule
	}

	if _, err := s.scheduler.Cron(s.cfg.Cron).Do(s.run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("ingestion scheduled", "cron", s.cfg.Cron, "tz", s.cfg.Location.String())

	if s.cfg.RunOnStart {
		go s.run()
	}
	return nil
}

func (s *Scheduler) run() {
	s.logger.Debug("running ingestion job")
	res := s.ingester.RunIngestion(s.ctx)
	if res.Err != nil {
		s.logger.Warn("ingestion job failed", "run_id", res.RunID, "error", res.Err)
		return
	}
	s.logger.Debug("ingestion job completed", "run_id", res.RunID, "inserted", res.Inserted)
}

// NextRun reports when the job fires next; ok is false before Start.
func (s *Scheduler) NextRun() (time.Time, bool) {
	_, next := s.scheduler.NextRun()
	return next, !next.IsZero()
}

// Stop stops the scheduler and cancels any in-flight run.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
