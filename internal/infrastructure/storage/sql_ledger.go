package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/ports"
)

const outcomesTable = "download_outcomes"

const createOutcomesTable = `CREATE TABLE IF NOT EXISTS download_outcomes (
    run_id       TEXT    NOT NULL,
    seq          INTEGER NOT NULL,
    target_date  TEXT    NOT NULL,
    file_name    TEXT    NOT NULL,
    document_url TEXT    NOT NULL,
    status       TEXT    NOT NULL,
    error        TEXT    NOT NULL DEFAULT '',
    bytes        INTEGER NOT NULL DEFAULT 0,
    recorded_at  TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
)`

// LedgerEntry is one persisted outcome row.
type LedgerEntry struct {
	RunID       string
	Seq         int
	TargetDate  string
	FileName    string
	DocumentURL string
	Status      domain.OutcomeStatus
	Error       string
	Bytes       int
	RecordedAt  time.Time
}

// SQLLedger persists download outcomes into SQLite or Postgres.
type SQLLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.OutcomeLedger = (*SQLLedger)(nil)

// OpenLedger opens the database behind driver ("sqlite" or "postgres") and
// makes sure the outcomes table exists.
func OpenLedger(ctx context.Context, driver, dsn string) (*SQLLedger, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case "sqlite":
		placeholder = sq.Question
	case "postgres":
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	ledger := NewSQLLedger(db, placeholder)
	if err := ledger.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// NewSQLLedger wires an existing sql.DB.
func NewSQLLedger(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLLedger {
	return &SQLLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

// Migrate creates the outcomes table when missing.
func (l *SQLLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createOutcomesTable); err != nil {
		return fmt.Errorf("create %s: %w", outcomesTable, err)
	}
	return nil
}

// SaveReport stores every outcome of report under runID in one transaction.
func (l *SQLLedger) SaveReport(ctx context.Context, runID string, report domain.Report) error {
	if l.db == nil || len(report.Outcomes) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	recordedAt := l.now().UTC().Format(time.RFC3339Nano)
	targetDate := report.Date.Format("2006-01-02")

	for i, o := range report.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}

		query, args, err := l.builder.
			Insert(outcomesTable).
			Columns("run_id", "seq", "target_date", "file_name", "document_url", "status", "error", "bytes", "recorded_at").
			Values(runID, i, targetDate, o.FileName, o.Record.DocumentURL, string(o.Status), errText, o.Bytes, recordedAt).
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert outcome %s: %w", o.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcomes: %w", err)
	}
	return nil
}

// Outcomes returns the recorded outcomes for a target date ordered by run
// and position.
func (l *SQLLedger) Outcomes(ctx context.Context, day time.Time) ([]LedgerEntry, error) {
	query, args, err := l.builder.
		Select("run_id", "seq", "target_date", "file_name", "document_url", "status", "error", "bytes", "recorded_at").
		From(outcomesTable).
		Where(sq.Eq{"target_date": day.Format("2006-01-02")}).
		OrderBy("recorded_at", "run_id", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	var entries []LedgerEntry
	for rows.Next() {
		var (
			e          LedgerEntry
			status     string
			recordedAt string
		)
		if err := rows.Scan(&e.RunID, &e.Seq, &e.TargetDate, &e.FileName, &e.DocumentURL, &status, &e.Error, &e.Bytes, &recordedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Status = domain.OutcomeStatus(status)
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return entries, nil
}

// Close releases the database handle.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}
