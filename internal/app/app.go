package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"TdnetDownloader/internal/config"
	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/infrastructure/console"
	"TdnetDownloader/internal/infrastructure/fetch"
	"TdnetDownloader/internal/infrastructure/metrics"
	"TdnetDownloader/internal/infrastructure/parser"
	"TdnetDownloader/internal/infrastructure/scheduler"
	"TdnetDownloader/internal/infrastructure/storage"
	"TdnetDownloader/internal/infrastructure/telegram"
	"TdnetDownloader/internal/logging"
	"TdnetDownloader/internal/naming"
	"TdnetDownloader/internal/ports"
	"TdnetDownloader/internal/usecase"
)

// JST is the fixed UTC+9 zone the listing service publishes in.
var JST = time.FixedZone("JST", 9*60*60)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	ledger   *storage.SQLLedger
	logger   *slog.Logger
	out      io.Writer
}

// New builds a runnable application instance from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:   cfg.Source.Timeout,
		UserAgent: cfg.Source.UserAgent,
		Referer:   cfg.Source.RefererURL(),
	})

	collector := parser.NewTdnetCollector(client, parser.CollectorOptions{
		BaseURL:   cfg.Source.BaseURL,
		Encoding:  cfg.Source.Encoding,
		PageDelay: cfg.Source.PageDelay,
	}, baseLogger.With("component", "collector"))

	materializer := usecase.NewMaterializer(usecase.MaterializerDeps{
		Fetcher: client,
		Store:   storage.NewFileStore(cfg.Output.Dir),
		Policy: naming.Policy{
			NameMaxRunes:  cfg.Output.NameMaxRunes,
			TitleMaxRunes: cfg.Output.TitleMaxRunes,
			MaxBytes:      cfg.Output.MaxNameBytes,
			Separator:     "_",
			Extension:     cfg.Output.Extension,
		},
		Delay:  cfg.Source.PageDelay,
		Logger: baseLogger.With("component", "materializer"),
	})

	application := &Application{cfg: cfg, logger: baseLogger, out: os.Stdout}

	var ledger ports.OutcomeLedger
	if cfg.Ledger.DSN != "" {
		l, err := storage.OpenLedger(ctx, cfg.Ledger.Driver, cfg.Ledger.DSN)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		application.ledger = l
		ledger = l
	}

	var notifier ports.Notifier
	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.APIBase, tg.BotToken, tg.ChatID)
	}

	application.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:       collector,
		Materializer: materializer,
		Ledger:       ledger,
		Metrics:      metrics.New(cfg.Metrics.Textfile),
		Notifier:     notifier,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	return application, nil
}

// SetOutput redirects the summary table; nil silences it.
func (a *Application) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	a.out = w
}

// Today is the current calendar day in JST.
func Today() time.Time {
	return time.Now().In(JST)
}

// Run processes a single day and prints the summary table.
func (a *Application) Run(ctx context.Context, day time.Time) (domain.Report, error) {
	a.logger.Info("tdnet download", "date", day.Format("2006-01-02"), "output", a.cfg.Output.Dir)

	report, err := a.pipeline.ProcessDay(ctx, day)
	if err != nil {
		return report, err
	}

	if len(report.Outcomes) > 0 {
		console.RenderSummary(a.out, report)
	}
	return report, nil
}

// Serve runs the pipeline on the configured interval until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
	sched := usecase.NewScheduler(driver, a.pipeline, JST, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving", "interval", a.cfg.Scheduler.Interval)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases the ledger connection, if any.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}
