package ports

import (
	"context"
	"time"

	"TdnetDownloader/internal/domain"
)

// Fetcher retrieves the raw bytes behind a URL. A missing resource is reported
// as an error wrapping domain.ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DisclosureSource walks the listing for a day and returns accepted records.
type DisclosureSource interface {
	CollectWithStats(ctx context.Context, day time.Time) domain.Collection
}

// DocumentStore persists downloaded documents under per-day directories.
type DocumentStore interface {
	EnsureDir(dir string) error
	Exists(dir, name string) (bool, error)
	Write(dir, name string, data []byte) error
	Path(dir, name string) string
}

// OutcomeLedger keeps an audit trail of materialization results.
type OutcomeLedger interface {
	SaveReport(ctx context.Context, runID string, report domain.Report) error
}

// MetricsRecorder exports run statistics.
type MetricsRecorder interface {
	ObserveCollection(stats domain.CollectStats)
	ObserveReport(report domain.Report)
	Flush() error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
