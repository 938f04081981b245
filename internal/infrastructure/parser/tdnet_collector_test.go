package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"

	"TdnetDownloader/internal/config"
	"TdnetDownloader/internal/domain"
	"TdnetDownloader/internal/infrastructure/fetch"
	"TdnetDownloader/internal/logging"
)

const testBase = "https://www.release.tdnet.info"

var testDay = time.Date(2024, time.January, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*60*60))

type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.calls = append(s.calls, url)
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	if body, ok := s.pages[url]; ok {
		return []byte(body), nil
	}
	return nil, fmt.Errorf("GET %s: %w", url, domain.ErrNotFound)
}

func listRow(clock, code, company, title, href string) string {
	link := title
	if href != "" {
		link = fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, href, title)
	}
	return fmt.Sprintf(`
	<tr>
	  <td class="kjTime"> %s </td>
	  <td class="kjCode">%s</td>
	  <td class="kjName">%s
	  </td>
	  <td class="kjTitle">%s</td>
	  <td class="kjXbrl"></td>
	  <td class="kjPlace">東</td>
	  <td class="kjHistroy"></td>
	</tr>`, clock, code, company, link)
}

func listPage(rows ...string) string {
	return `<html><head><meta charset="utf-8"></head><body>
	<table id="main-list-table">` + strings.Join(rows, "") + `</table>
	</body></html>`
}

func pageURL(page int) string {
	return buildPageURL(testBase, page, "20240101")
}

func newTestCollector(f *stubFetcher, logBuf *bytes.Buffer) *TdnetCollector {
	var c *TdnetCollector
	if logBuf != nil {
		c = NewTdnetCollector(f, CollectorOptions{BaseURL: testBase, Encoding: "utf-8"}, logging.NewWithWriter(logBuf, "debug"))
	} else {
		c = NewTdnetCollector(f, CollectorOptions{BaseURL: testBase, Encoding: "utf-8"}, nil)
	}
	c.sleep = func(context.Context, time.Duration) {}
	return c
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	got := buildPageURL("https://www.release.tdnet.info/", 7, "20240101")
	want := "https://www.release.tdnet.info/inbs/I_list_007_20240101.html"
	if got != want {
		t.Fatalf("unexpected url: %s", got)
	}

	if got := buildPageURL(testBase, 123, "20241231"); !strings.HasSuffix(got, "/inbs/I_list_123_20241231.html") {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestResolveLinkJoinsAgainstPagePath(t *testing.T) {
	t.Parallel()

	got, err := resolveLink(testBase+"/inbs/I_list_001_20240101.html", "20240101/doc.pdf")
	if err != nil {
		t.Fatalf("resolveLink error: %v", err)
	}
	if got != testBase+"/inbs/20240101/doc.pdf" {
		t.Fatalf("unexpected resolved url: %s", got)
	}

	got, err = resolveLink(testBase+"/inbs/I_list_001_20240101.html", "https://cdn.example.org/x.pdf")
	if err != nil || got != "https://cdn.example.org/x.pdf" {
		t.Fatalf("absolute link should be kept, got %s (%v)", got, err)
	}

	if _, err := resolveLink("not a url", "doc.pdf"); err == nil {
		t.Fatalf("expected error for relative base")
	}
}

func TestExcludedByName(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Ｅ－サンプル":     true,
		"Ｐ－インフラ投資法人": true,
		"Ｒ－リート投資法人":  true,
		"トヨタ自動車":     false,
		"サンプルＥ－":     false,
		"E-ascii":     false,
	}
	for name, want := range cases {
		if _, got := excludedByName(name); got != want {
			t.Fatalf("excludedByName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestExcludedByTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"上場投信の収益分配金のお知らせ":    true,
		"ＥＴＦの受益権口数等に関するお知らせ": true,
		"ETF daily report":   true,
		"etf monthly":        true,
		"上場ETN(発行者情報)":       true,
		"（訂正）決算短信の一部訂正について":  true,
		"2024年3月期 決算短信":      false,
		"Notice of dividends": false,
	}
	for title, want := range cases {
		if _, got := excludedByTitle(title); got != want {
			t.Fatalf("excludedByTitle(%q) = %v, want %v", title, got, want)
		}
	}
}

func TestCollectNoPagesForDate(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	f := &stubFetcher{}
	c := newTestCollector(f, &logs)

	got := c.CollectWithStats(context.Background(), testDay)
	if len(got.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(got.Records))
	}
	if len(f.calls) != 1 || f.calls[0] != pageURL(1) {
		t.Fatalf("expected a single fetch of page 1, got %v", f.calls)
	}
	if got.Stats.Termination != domain.TerminationNoData {
		t.Fatalf("unexpected termination: %s", got.Stats.Termination)
	}
	if !strings.Contains(logs.String(), "no data for date") {
		t.Fatalf("expected no-data log line, got:\n%s", logs.String())
	}
	if strings.Contains(logs.String(), "level=ERROR") {
		t.Fatalf("no-data must not be logged as an error:\n%s", logs.String())
	}
}

func TestCollectFiltersAndOrdersRows(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{pages: map[string]string{
		pageURL(1): listPage(
			listRow("15:30", "13010", "極洋", "2024年3月期 決算短信", "140120240101500001.pdf"),
			listRow("15:30", "13760", "Ｅ－サンプル", "決算短信", "140120240101500002.pdf"),
			listRow("15:00", "14140", "ショーボンド", "ＥＴＦの分配金", "140120240101500003.pdf"),
			listRow("14:00", "17210", "コムシス", "（訂正）配当予想", "140120240101500004.pdf"),
			`<tr><td>13:00</td><td>1</td><td>four cells</td><td><a href="x.pdf">t</a></td></tr>`,
			listRow("12:00", "18010", "大成建設", "リンクなし", ""),
			listRow("11:00", "18020", "大林組", "自己株式の取得", "20240101/doc.pdf"),
		),
		pageURL(2): listPage(
			listRow("10:00", "18030", "清水建設", "業績予想の修正", "140120240101500009.pdf"),
		),
	}}
	c := newTestCollector(f, nil)

	got := c.CollectWithStats(context.Background(), testDay)

	if len(got.Records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got.Records), got.Records)
	}

	first := got.Records[0]
	if first.PublishedTime != "1530" || first.SecurityCode != "13010" || first.CompanyName != "極洋" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Title != "2024年3月期 決算短信" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.DocumentURL != testBase+"/inbs/140120240101500001.pdf" {
		t.Fatalf("unexpected document url: %s", first.DocumentURL)
	}
	if y, m, d := first.PublishedDate.Date(); y != 2024 || m != time.January || d != 1 {
		t.Fatalf("unexpected published date: %v", first.PublishedDate)
	}

	if got.Records[1].DocumentURL != testBase+"/inbs/20240101/doc.pdf" {
		t.Fatalf("relative link not joined against page path: %s", got.Records[1].DocumentURL)
	}
	if got.Records[2].SecurityCode != "18030" {
		t.Fatalf("page 2 record should come last, got %+v", got.Records[2])
	}

	s := got.Stats
	if s.Pages != 2 || s.Rows != 8 || s.Accepted != 3 {
		t.Fatalf("unexpected page/row stats: %+v", s)
	}
	if s.ExcludedByName != 1 || s.ExcludedByTitle != 2 {
		t.Fatalf("unexpected exclusion stats: %+v", s)
	}
	if s.Malformed != 1 || s.MissingLink != 1 {
		t.Fatalf("four-cell row and missing link must not count as exclusions: %+v", s)
	}
	if s.Termination != domain.TerminationEndOfPages || s.TerminatedAt != 3 {
		t.Fatalf("unexpected termination: %s at %d", s.Termination, s.TerminatedAt)
	}
}

func TestCollectStopsOnTransportErrorKeepingRecords(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{
		pages: map[string]string{
			pageURL(1): listPage(listRow("09:00", "72030", "トヨタ自動車", "決算短信", "a.pdf")),
			pageURL(3): listPage(listRow("09:00", "67580", "ソニー", "決算短信", "b.pdf")),
		},
		errs: map[string]error{pageURL(2): errors.New("connection reset")},
	}
	c := newTestCollector(f, nil)

	got := c.CollectWithStats(context.Background(), testDay)
	if len(got.Records) != 1 || got.Records[0].SecurityCode != "72030" {
		t.Fatalf("expected page 1 record only, got %+v", got.Records)
	}
	if got.Stats.Termination != domain.TerminationTransport {
		t.Fatalf("unexpected termination: %s", got.Stats.Termination)
	}
	if len(f.calls) != 2 {
		t.Fatalf("page 3 must not be fetched, calls: %v", f.calls)
	}
}

func TestCollectStopsWhenTableMissingOrEmpty(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{pages: map[string]string{
		pageURL(1): `<html><body><p>メンテナンス中</p></body></html>`,
	}}
	got := newTestCollector(f, nil).CollectWithStats(context.Background(), testDay)
	if len(got.Records) != 0 || got.Stats.Termination != domain.TerminationNoTable {
		t.Fatalf("unexpected result: %+v", got)
	}

	f = &stubFetcher{pages: map[string]string{
		pageURL(1): listPage(listRow("09:00", "72030", "トヨタ自動車", "決算短信", "a.pdf")),
		pageURL(2): listPage(),
	}}
	got = newTestCollector(f, nil).CollectWithStats(context.Background(), testDay)
	if len(got.Records) != 1 || got.Stats.Termination != domain.TerminationEmptyPage {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCollectDecodesShiftJIS(t *testing.T) {
	t.Parallel()

	html := `<html><body><table id="main-list-table">` +
		listRow("16:00", "13010", "極洋", "決算短信", "a.pdf") +
		`</table></body></html>`
	encoded, err := japanese.ShiftJIS.NewEncoder().String(html)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	f := &stubFetcher{pages: map[string]string{pageURL(1): encoded}}
	c := NewTdnetCollector(f, CollectorOptions{BaseURL: testBase, Encoding: "ms932"}, nil)
	c.sleep = func(context.Context, time.Duration) {}

	records := c.Collect(context.Background(), testDay)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CompanyName != "極洋" || records[0].Title != "決算短信" {
		t.Fatalf("shift_jis text not decoded: %+v", records[0])
	}
}

func shiftJISPageWithoutMeta(t *testing.T) string {
	t.Helper()
	html := `<html><body><table id="main-list-table">` +
		listRow("15:00", "25935", "Ｅ－サンプル", "分配金のお知らせ", "e.pdf") +
		listRow("16:00", "13010", "極洋", "決算短信", "a.pdf") +
		`</table></body></html>`
	encoded, err := japanese.ShiftJIS.NewEncoder().String(html)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return encoded
}

func TestCollectDefaultEncodingReadsShiftJISWithoutMeta(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{config.Default().Source.Encoding, "auto"} {
		f := &stubFetcher{pages: map[string]string{pageURL(1): shiftJISPageWithoutMeta(t)}}
		c := NewTdnetCollector(f, CollectorOptions{BaseURL: testBase, Encoding: enc}, nil)
		c.sleep = func(context.Context, time.Duration) {}

		got := c.CollectWithStats(context.Background(), testDay)
		if len(got.Records) != 1 {
			t.Fatalf("encoding %q: expected 1 record, got %+v", enc, got.Records)
		}
		if got.Records[0].CompanyName != "極洋" {
			t.Fatalf("encoding %q: company not decoded: %q", enc, got.Records[0].CompanyName)
		}
		if got.Stats.ExcludedByName != 1 {
			t.Fatalf("encoding %q: expected the Ｅ－ issuer to be excluded, stats %+v", enc, got.Stats)
		}
	}
}

func TestSniffEncodingHonoursMetaCharset(t *testing.T) {
	t.Parallel()

	utf8Page := []byte(`<html><head><meta charset="utf-8"></head><body>極洋</body></html>`)
	r, err := decodeBody(utf8Page, "auto")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(buf.String(), "極洋") {
		t.Fatalf("utf-8 page altered: %q", buf.String())
	}
}

func TestCollectPausesBetweenPages(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{pages: map[string]string{
		pageURL(1): listPage(listRow("09:00", "72030", "トヨタ自動車", "決算短信", "a.pdf")),
		pageURL(2): listPage(listRow("09:00", "67580", "ソニー", "決算短信", "b.pdf")),
	}}
	c := NewTdnetCollector(f, CollectorOptions{BaseURL: testBase, Encoding: "utf-8", PageDelay: 250 * time.Millisecond}, nil)

	var pauses []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) { pauses = append(pauses, d) }

	c.Collect(context.Background(), testDay)
	if len(pauses) != 2 {
		t.Fatalf("expected a pause before pages 2 and 3, got %v", pauses)
	}
	for _, p := range pauses {
		if p != 250*time.Millisecond {
			t.Fatalf("unexpected pause %s", p)
		}
	}
}

func TestTdnetCollectorOverHTTP(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		hits []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		if r.URL.Path != "/inbs/I_list_001_20240101.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listPage(
			listRow("15:30", "13010", "極洋", "決算短信", "140120240101500001.pdf"),
			listRow("15:30", "13020", "日本水産", "上場投信の分配", "140120240101500002.pdf"),
		)))
	}))
	defer server.Close()

	client := fetch.NewClient(fetch.Options{Timeout: time.Second})
	c := NewTdnetCollector(client, CollectorOptions{BaseURL: server.URL, Encoding: "auto"}, nil)
	c.sleep = func(context.Context, time.Duration) {}

	records := c.Collect(context.Background(), testDay)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].DocumentURL != server.URL+"/inbs/140120240101500001.pdf" {
		t.Fatalf("unexpected document url: %s", records[0].DocumentURL)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 {
		t.Fatalf("expected page 1 and page 2 requests, got %v", hits)
	}
}
