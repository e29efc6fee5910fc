// Package scheduler runs the registry sweep on a daily schedule, loads it
// into the data container and watches for stale data. A manual refresh
// cancels and supersedes a sweep that is still in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/giygas/mfds-oncology-api/entities"
	"github.com/giygas/mfds-oncology-api/interfaces"
	"github.com/giygas/mfds-oncology-api/logging"
	"github.com/giygas/mfds-oncology-api/validation"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// ErrSuperseded is returned by a refresh whose result was discarded because
// a newer refresh started while it was running.
var ErrSuperseded = errors.New("refresh superseded by a newer refresh")

const (
	defaultSweepTimeout = 5 * time.Minute
	staleWarning        = 25 * time.Hour
)

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore    interfaces.DataStore
	fetcher      interfaces.Fetcher
	validator    interfaces.DataValidator
	scheduler    *gocron.Scheduler
	refreshTimes []string
	sweepTimeout time.Duration
	monitorEvery time.Duration

	mu         sync.Mutex
	generation uint64
	cancelRun  context.CancelFunc

	stopMonitor chan struct{}
	stopOnce    sync.Once
}

type Option func(*Scheduler)

// WithRefreshTimes sets the daily HH:MM times of the scheduled sweep
func WithRefreshTimes(times []string) Option {
	return func(s *Scheduler) {
		if len(times) > 0 {
			s.refreshTimes = times
		}
	}
}

// WithSweepTimeout bounds a whole sweep
func WithSweepTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.sweepTimeout = d
		}
	}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, fetcher interfaces.Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		dataStore:    dataStore,
		fetcher:      fetcher,
		validator:    validation.NewDataValidator(),
		scheduler:    gocron.NewScheduler(time.Local),
		refreshTimes: []string{"06:00", "18:00"},
		sweepTimeout: defaultSweepTimeout,
		monitorEvery: time.Hour,
		stopMonitor:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start performs the initial load, schedules the daily sweeps and starts
// the staleness monitor. A failed initial load is logged and not fatal: the
// API reports itself unhealthy until a later sweep succeeds.
func (s *Scheduler) Start() error {
	if err := s.Refresh(context.Background()); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At(strings.Join(s.refreshTimes, ";")).Do(func() {
		if err := s.Refresh(context.Background()); err != nil && !errors.Is(err, ErrSuperseded) {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()

	s.startHealthMonitoring()

	return nil
}

// Stop stops the schedule, the monitor and any sweep in flight
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.stopMonitor) })

	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()
}

// NextRun returns the time of the next scheduled sweep, or the zero time
// before Start.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Refresh runs a full sweep and loads it into the data store. Starting a
// refresh cancels the one in flight, whose result is then discarded with
// ErrSuperseded. Cancelling ctx cancels the sweep.
func (s *Scheduler) Refresh(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.sweepTimeout)
	defer cancel()

	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
		logging.Info("Cancelling stale refresh in favour of a new one")
	}
	s.generation++
	gen := s.generation
	s.cancelRun = cancel
	s.mu.Unlock()

	s.dataStore.BeginUpdate()
	defer s.dataStore.EndUpdate()

	logging.Info("Starting approvals refresh", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	result, err := s.fetcher.Fetch(runCtx, entities.FetchRequest{FetchAll: true})

	s.mu.Lock()
	current := gen == s.generation
	if current {
		s.cancelRun = nil
	}
	s.mu.Unlock()

	if !current {
		logging.Info("Discarding superseded refresh", "duration", time.Since(start).String())
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	s.logDataQuality(result.Records)

	if err := s.validator.ValidateCollection(result.Records); err != nil {
		logging.Error("Refreshed approvals failed validation, keeping previous data", "error", err)
		return fmt.Errorf("refresh produced an invalid collection: %w", err)
	}

	s.dataStore.UpdateData(result)

	logging.Info("Approvals refresh completed",
		"duration", time.Since(start).String(),
		"approval_count", len(result.Records),
		"original_count", result.OriginalCount,
		"failed_keywords", len(result.FailedKeywords),
	)

	return nil
}

func (s *Scheduler) logDataQuality(records []entities.ExtendedDrugApproval) {
	report := s.validator.ReportDataQuality(records)

	if len(report.InvalidDates) > 0 {
		logging.Warn("Approvals with invalid dates",
			"ids", report.InvalidDates,
		)
	}

	if report.UnclassifiedCancer > 0 || report.MissingIndication > 0 {
		logging.Info("Approval data quality",
			"unclassified_cancer", report.UnclassifiedCancer,
			"missing_indication", report.MissingIndication,
			"missing_generic_name", report.MissingGenericName,
			"missing_approval_type", report.MissingApprovalType,
		)
	}
}

// startHealthMonitoring warns when the data has not been refreshed for
// more than a day
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.monitorEvery)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopMonitor:
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > staleWarning {
					logging.Warn("Data hasn't been updated in over 25 hours", "last_update", lastUpdate.Format(time.RFC3339))
				}
			}
		}
	}()
}
