package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/logging"
	"TdnetDownloader/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.DisclosureSource
	Materializer *Materializer
	Ledger       ports.OutcomeLedger
	Metrics      ports.MetricsRecorder
	Notifier     ports.Notifier
	Logger       *slog.Logger
}

// Pipeline implements the collect then materialize workflow for one day.
type Pipeline struct {
	source       ports.DisclosureSource
	materializer *Materializer
	ledger       ports.OutcomeLedger
	metrics      ports.MetricsRecorder
	notifier     ports.Notifier
	logger       *slog.Logger
	newRunID     func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:       deps.Source,
		materializer: deps.Materializer,
		ledger:       deps.Ledger,
		metrics:      deps.Metrics,
		notifier:     deps.Notifier,
		logger:       logging.OrDiscard(deps.Logger),
		newRunID:     func() string { return uuid.NewString() },
	}
}

// ProcessDay collects the listing for day and downloads every accepted
// document. Ledger, metrics and notifier failures are logged and swallowed.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) (domain.Report, error) {
	if p.source == nil || p.materializer == nil {
		return domain.Report{Date: day}, nil
	}

	runID := p.newRunID()
	logger := p.logger.With("run_id", runID)

	collection := p.source.CollectWithStats(ctx, day)
	if p.metrics != nil {
		p.metrics.ObserveCollection(collection.Stats)
	}

	report, err := p.materializer.Materialize(ctx, collection.Records, day)
	if err != nil {
		return report, fmt.Errorf("materialize %s: %w", day.Format("2006-01-02"), err)
	}

	if p.ledger != nil && len(report.Outcomes) > 0 {
		if err := p.ledger.SaveReport(ctx, runID, report); err != nil {
			logger.Error("ledger save failed", "error", err)
		}
	}

	if p.metrics != nil {
		p.metrics.ObserveReport(report)
		if err := p.metrics.Flush(); err != nil {
			logger.Error("metrics export failed", "error", err)
		}
	}

	if p.notifier != nil && report.Count(domain.StatusWritten) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
			logger.Warn("digest not delivered", "error", err)
		}
	}

	return report, nil
}

func buildDigestMessage(report domain.Report) string {
	written := report.Written()

	var b strings.Builder
	fmt.Fprintf(&b, "TDnet %s: %d new document(s)", report.Date.Format("2006-01-02"), len(written))
	if failed := report.Count(domain.StatusFailed); failed > 0 {
		fmt.Fprintf(&b, ", %d failed", failed)
	}
	b.WriteString("\n")
	for _, name := range written {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}
