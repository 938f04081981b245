// Package metrics exports run statistics in the Prometheus text format so a
// node_exporter textfile collector can pick them up after each run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/ports"
)

const namespace = "tdnet"

// Recorder implements ports.MetricsRecorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	pagesTotal     prometheus.Counter
	rowsTotal      *prometheus.CounterVec
	downloadsTotal *prometheus.CounterVec
	bytesTotal     prometheus.Counter
	lastRun        prometheus.Gauge
	lastRecords    prometheus.Gauge

	now func() time.Time
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

// New registers the collectors. textfile may be empty to keep metrics in
// memory only.
func New(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		now:      time.Now,
	}

	r.pagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_pages_total",
		Help:      "Listing pages fetched and parsed.",
	})
	r.rowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_rows_total",
		Help:      "Listing rows by verdict.",
	}, []string{"verdict"})
	r.downloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Document materialization outcomes by status.",
	}, []string{"status"})
	r.bytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Bytes written to disk.",
	})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run.",
	})
	r.lastRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_records",
		Help:      "Accepted records in the last run.",
	})

	r.registry.MustRegister(r.pagesTotal, r.rowsTotal, r.downloadsTotal, r.bytesTotal, r.lastRun, r.lastRecords)
	return r
}

// ObserveCollection records page and row verdict counters.
func (r *Recorder) ObserveCollection(stats domain.CollectStats) {
	r.pagesTotal.Add(float64(stats.Pages))
	r.rowsTotal.WithLabelValues("accepted").Add(float64(stats.Accepted))
	r.rowsTotal.WithLabelValues("excluded_name").Add(float64(stats.ExcludedByName))
	r.rowsTotal.WithLabelValues("excluded_title").Add(float64(stats.ExcludedByTitle))
	r.rowsTotal.WithLabelValues("malformed").Add(float64(stats.Malformed))
	r.rowsTotal.WithLabelValues("missing_link").Add(float64(stats.MissingLink))
	r.rowsTotal.WithLabelValues("unresolvable").Add(float64(stats.Unresolvable))
	r.lastRecords.Set(float64(stats.Accepted))
}

// ObserveReport records per-outcome counters and the run timestamp.
func (r *Recorder) ObserveReport(report domain.Report) {
	for _, o := range report.Outcomes {
		r.downloadsTotal.WithLabelValues(string(o.Status)).Inc()
		if o.Status == domain.StatusWritten {
			r.bytesTotal.Add(float64(o.Bytes))
		}
	}
	r.lastRun.Set(float64(r.now().Unix()))
}

// Flush writes the textfile when configured.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
