package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"TdnetDownloader/internal/domain"
)

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("GET %s: %w", url, domain.ErrNotFound)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type brokenStore struct{}

func (brokenStore) EnsureDir(string) error { return errors.New("read-only file system") }
func (brokenStore) Exists(string, string) (bool, error) { return false, nil }
func (brokenStore) Write(string, string, []byte) error { return nil }
func (brokenStore) Path(dir, name string) string { return dir + "/" + name }

type staticSource struct {
	collection domain.Collection
	days       []time.Time
}

func (s *staticSource) CollectWithStats(_ context.Context, day time.Time) domain.Collection {
	s.days = append(s.days, day)
	return s.collection
}

type recordingLedger struct {
	runIDs  []string
	reports []domain.Report
	err     error
}

func (l *recordingLedger) SaveReport(_ context.Context, runID string, report domain.Report) error {
	l.runIDs = append(l.runIDs, runID)
	l.reports = append(l.reports, report)
	return l.err
}

type recordingMetrics struct {
	stats   []domain.CollectStats
	reports []domain.Report
	flushes int
	err     error
}

func (m *recordingMetrics) ObserveCollection(stats domain.CollectStats) { m.stats = append(m.stats, stats) }
func (m *recordingMetrics) ObserveReport(report domain.Report) { m.reports = append(m.reports, report) }
func (m *recordingMetrics) Flush() error {
	m.flushes++
	return m.err
}

type recordingNotifier struct {
	digests []string
	err     error
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return n.err
}

func disclosure(tm, code, company, title, url string) domain.Disclosure {
	return domain.Disclosure{
		PublishedDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		PublishedTime: tm,
		SecurityCode:  code,
		CompanyName:   company,
		Title:         title,
		DocumentURL:   url,
	}
}

type unreadableStore struct{}

func (unreadableStore) EnsureDir(string) error { return nil }
func (unreadableStore) Exists(_, name string) (bool, error) {
	return false, fmt.Errorf("stat %s: %w", name, fs.ErrPermission)
}
func (unreadableStore) Write(string, string, []byte) error { return nil }
func (unreadableStore) Path(dir, name string) string { return dir + "/" + name }
