package parser

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/logging"
	"TdnetDownloader/internal/ports"
)

const (
	resultsTableSelector = "table#main-list-table"
	minCells             = 5
)

// CollectorOptions tunes where the listing lives and how it is walked.
type CollectorOptions struct {
	BaseURL   string
	Encoding  string
	PageDelay time.Duration
}

// TdnetCollector walks the numbered listing pages of one day and extracts
// the announcements that survive the exclusion filters.
type TdnetCollector struct {
	fetcher   ports.Fetcher
	baseURL   string
	encoding  string
	pageDelay time.Duration
	sleep     func(context.Context, time.Duration)
	logger    *slog.Logger
}

var _ ports.DisclosureSource = (*TdnetCollector)(nil)

// NewTdnetCollector wires a fetcher with listing options.
func NewTdnetCollector(fetcher ports.Fetcher, opts CollectorOptions, log *slog.Logger) *TdnetCollector {
	return &TdnetCollector{
		fetcher:   fetcher,
		baseURL:   opts.BaseURL,
		encoding:  opts.Encoding,
		pageDelay: opts.PageDelay,
		sleep:     pause,
		logger:    logging.OrDiscard(log),
	}
}

// Collect returns accepted records in page then row order. It never fails:
// problems end the walk early and keep what was already gathered.
func (c *TdnetCollector) Collect(ctx context.Context, day time.Time) []domain.Disclosure {
	return c.CollectWithStats(ctx, day).Records
}

// CollectWithStats is Collect plus per-row accounting.
func (c *TdnetCollector) CollectWithStats(ctx context.Context, day time.Time) domain.Collection {
	date := day.Format("20060102")
	publishedDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var result domain.Collection
	stats := &result.Stats

	c.logger.Info("collect start", "date", day.Format("2006-01-02"))

	for page := 1; ; page++ {
		if page > 1 {
			c.sleep(ctx, c.pageDelay)
		}

		if ctx.Err() != nil {
			c.terminate(stats, domain.TerminationCancelled, page)
			c.logger.Warn("collection cancelled", "page", page, "error", ctx.Err())
			break
		}

		pageURL := buildPageURL(c.baseURL, page, date)
		c.logger.Info("fetch page", "page", page, "url", pageURL)

		body, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				if page == 1 {
					c.terminate(stats, domain.TerminationNoData, page)
					c.logger.Info("no data for date", "date", date)
				} else {
					c.terminate(stats, domain.TerminationEndOfPages, page)
					c.logger.Info("end of pagination", "page", page)
				}
				break
			}
			c.terminate(stats, domain.TerminationTransport, page)
			c.logger.Error("page request failed", "page", page, "error", err)
			break
		}

		doc, err := parsePage(body, c.encoding)
		if err != nil {
			c.terminate(stats, domain.TerminationParse, page)
			c.logger.Error("page parse failed", "page", page, "error", err)
			break
		}

		table := doc.Find(resultsTableSelector).First()
		if table.Length() == 0 {
			c.terminate(stats, domain.TerminationNoTable, page)
			if page == 1 {
				c.logger.Warn("results table missing on first page", "date", date)
			} else {
				c.logger.Info("results table missing, end of data", "page", page)
			}
			break
		}

		rows := table.Find("tr")
		if rows.Length() == 0 {
			c.terminate(stats, domain.TerminationEmptyPage, page)
			c.logger.Info("page has no rows", "page", page)
			break
		}

		stats.Pages++
		c.logger.Info("process rows", "page", page, "rows", rows.Length())

		rows.Each(func(_ int, row *goquery.Selection) {
			stats.Rows++
			if record, ok := c.extractRow(row, pageURL, publishedDate, stats); ok {
				result.Records = append(result.Records, record)
				stats.Accepted++
			}
		})
	}

	c.logger.Info("collect done",
		"date", date,
		"pages", stats.Pages,
		"accepted", stats.Accepted,
		"excluded_name", stats.ExcludedByName,
		"excluded_title", stats.ExcludedByTitle,
		"termination", stats.Termination)

	return result
}

func (c *TdnetCollector) extractRow(row *goquery.Selection, pageURL string, publishedDate time.Time, stats *domain.CollectStats) (domain.Disclosure, bool) {
	cells := row.Find("td")
	if cells.Length() < minCells {
		stats.Malformed++
		return domain.Disclosure{}, false
	}

	timeText := cellText(cells, 0)
	code := cellText(cells, 1)
	company := cellText(cells, 2)
	title := cellText(cells, 3)

	if prefix, excluded := excludedByName(company); excluded {
		stats.ExcludedByName++
		c.logger.Info("skip row: excluded by company", "company", company, "prefix", prefix)
		return domain.Disclosure{}, false
	}

	if marker, excluded := excludedByTitle(title); excluded {
		stats.ExcludedByTitle++
		c.logger.Info("skip row: excluded by title", "title", title, "marker", marker)
		return domain.Disclosure{}, false
	}

	href, ok := cells.Eq(3).Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		stats.MissingLink++
		c.logger.Debug("skip row: no document link", "code", code, "title", title)
		return domain.Disclosure{}, false
	}

	documentURL, err := resolveLink(pageURL, href)
	if err != nil {
		stats.Unresolvable++
		c.logger.Warn("skip row: unresolvable document link", "code", code, "href", href, "error", err)
		return domain.Disclosure{}, false
	}

	return domain.Disclosure{
		PublishedDate: publishedDate,
		PublishedTime: strings.ReplaceAll(timeText, ":", ""),
		SecurityCode:  code,
		CompanyName:   company,
		Title:         title,
		DocumentURL:   documentURL,
	}, true
}

func (c *TdnetCollector) terminate(stats *domain.CollectStats, reason domain.Termination, page int) {
	stats.Termination = reason
	stats.TerminatedAt = page
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

func pause(ctx context.Context, d time.Duration) {
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
