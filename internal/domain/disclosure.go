package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by fetchers when the remote resource does not exist.
// For listing pages it is the normal end-of-pagination signal.
var ErrNotFound = errors.New("not found")

// Disclosure is one accepted announcement from the listing.
type Disclosure struct {
	PublishedDate time.Time
	// PublishedTime keeps the source formatting minus colons ("15:30" -> "1530").
	PublishedTime string
	SecurityCode  string
	CompanyName   string
	Title         string
	DocumentURL   string
}

// Termination tells why the pagination loop stopped.
type Termination string

const (
	TerminationNoData     Termination = "no-data"
	TerminationEndOfPages Termination = "end-of-pages"
	TerminationNoTable    Termination = "no-table"
	TerminationEmptyPage  Termination = "empty-page"
	TerminationTransport  Termination = "transport-error"
	TerminationParse      Termination = "parse-error"
	TerminationCancelled  Termination = "cancelled"
)

// CollectStats counts what happened to the rows of every fetched page.
type CollectStats struct {
	Pages           int
	Rows            int
	Accepted        int
	Malformed       int
	ExcludedByName  int
	ExcludedByTitle int
	MissingLink     int
	Unresolvable    int
	Termination     Termination
	TerminatedAt    int
}

// Collection is the ordered result of one collection run.
type Collection struct {
	Records []Disclosure
	Stats   CollectStats
}

// OutcomeStatus enumerates per-record materialization results.
type OutcomeStatus string

const (
	StatusWritten         OutcomeStatus = "written"
	StatusSkippedExisting OutcomeStatus = "skipped-existing"
	StatusFailed          OutcomeStatus = "failed"
)

// Outcome describes what happened to a single record.
type Outcome struct {
	Record   Disclosure
	FileName string
	Status   OutcomeStatus
	Bytes    int
	Err      error
}

// Report aggregates the outcomes of a materialization batch in record order.
type Report struct {
	Date      time.Time
	Directory string
	Outcomes  []Outcome
}

// Count returns the number of outcomes with the given status.
func (r Report) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Written lists the file names that were downloaded in this batch.
func (r Report) Written() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Status == StatusWritten {
			names = append(names, o.FileName)
		}
	}
	return names
}
