package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/logging"
	"TdnetDownloader/internal/naming"
	"TdnetDownloader/internal/ports"
)

// ErrDirectory marks a failure to prepare the per-day directory.
var ErrDirectory = errors.New("prepare save directory")

// MaterializerDeps wires the collaborators of a download pass. Delay is the
// pause after every successful download.
type MaterializerDeps struct {
	Fetcher ports.Fetcher
	Store   ports.DocumentStore
	Policy  naming.Policy
	Delay   time.Duration
	Logger  *slog.Logger
}

// Materializer downloads the documents of collected records into per-day
// directories, skipping files that already exist.
type Materializer struct {
	fetcher ports.Fetcher
	store   ports.DocumentStore
	policy  naming.Policy
	delay   time.Duration
	sleep   func(context.Context, time.Duration)
	logger  *slog.Logger
}

// NewMaterializer constructs the download component.
func NewMaterializer(deps MaterializerDeps) *Materializer {
	policy := deps.Policy
	if policy.Extension == "" && policy.Separator == "" {
		policy = naming.DefaultPolicy()
	}
	return &Materializer{
		fetcher: deps.Fetcher,
		store:   deps.Store,
		policy:  policy,
		delay:   deps.Delay,
		sleep:   sleepCtx,
		logger:  logging.OrDiscard(deps.Logger),
	}
}

// Materialize processes records in order. Per-record failures are reported in
// the returned Report; only a directory failure aborts the batch. The delay
// follows every successful download except the last record of the batch.
func (m *Materializer) Materialize(ctx context.Context, records []domain.Disclosure, day time.Time) (domain.Report, error) {
	dir := naming.DirName(day)
	report := domain.Report{Date: day, Directory: dir}

	if len(records) == 0 {
		m.logger.Info("nothing to do", "date", day.Format("2006-01-02"))
		return report, nil
	}

	if err := m.store.EnsureDir(dir); err != nil {
		m.logger.Error("cannot create save directory", "dir", dir, "error", err)
		return report, fmt.Errorf("%w %s: %w", ErrDirectory, dir, err)
	}

	total := len(records)
	m.logger.Info("materialize start", "dir", dir, "records", total)

	report.Outcomes = make([]domain.Outcome, 0, total)
	for i, record := range records {
		outcome := m.materializeOne(ctx, dir, record)
		progress := fmt.Sprintf("[%d/%d]", i+1, total)

		switch outcome.Status {
		case domain.StatusSkippedExisting:
			m.logger.Info(progress+" skip existing", "file", outcome.FileName)
		case domain.StatusFailed:
			m.logger.Error(progress+" download failed", "file", outcome.FileName, "url", record.DocumentURL, "error", outcome.Err)
		case domain.StatusWritten:
			m.logger.Info(progress+" DL", "file", outcome.FileName, "bytes", outcome.Bytes)
		}

		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Status == domain.StatusWritten && i < total-1 {
			m.sleep(ctx, m.delay)
		}
	}

	m.logger.Info("materialize done",
		"dir", dir,
		"written", report.Count(domain.StatusWritten),
		"skipped", report.Count(domain.StatusSkippedExisting),
		"failed", report.Count(domain.StatusFailed))

	return report, nil
}

func (m *Materializer) materializeOne(ctx context.Context, dir string, record domain.Disclosure) domain.Outcome {
	outcome := domain.Outcome{
		Record:   record,
		FileName: m.policy.FileName(record),
	}

	exists, err := m.store.Exists(dir, outcome.FileName)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Err = err
		return outcome
	}
	if exists {
		outcome.Status = domain.StatusSkippedExisting
		return outcome
	}

	if err := ctx.Err(); err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Err = err
		return outcome
	}

	body, err := m.fetcher.Fetch(ctx, record.DocumentURL)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Err = fmt.Errorf("download: %w", err)
		return outcome
	}

	if err := m.store.Write(dir, outcome.FileName, body); err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Err = fmt.Errorf("write: %w", err)
		return outcome
	}

	outcome.Status = domain.StatusWritten
	outcome.Bytes = len(body)
	return outcome
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
