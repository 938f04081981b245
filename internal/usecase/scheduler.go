package usecase

import (
	"context"
	"log/slog"
	"time"

	"TdnetDownloader/internal/logging"
	"TdnetDownloader/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	location *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. Each firing
// processes the calendar day of the trigger time in loc.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{driver: driver, pipeline: pipeline, location: loc, logger: logging.OrDiscard(log)}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		day := trigger.In(s.location)
		if _, err := s.pipeline.ProcessDay(ctx, day); err != nil {
			s.logger.Error("scheduled run failed", "date", day.Format("2006-01-02"), "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
