package console

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"TdnetDownloader/internal/domain"
)

// RenderSummary prints the outcome of a run as a table in download order.
func RenderSummary(w io.Writer, report domain.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("TDnet %s -> %s", report.Date.Format("2006-01-02"), report.Directory))
	t.AppendHeader(table.Row{"#", "Status", "File", "Detail"})

	for i, o := range report.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		} else if o.Status == domain.StatusWritten {
			detail = fmt.Sprintf("%d bytes", o.Bytes)
		}
		t.AppendRow(table.Row{i + 1, string(o.Status), o.FileName, detail})
	}

	t.AppendFooter(table.Row{
		"",
		"total",
		fmt.Sprintf("written %d / skipped %d / failed %d",
			report.Count(domain.StatusWritten),
			report.Count(domain.StatusSkippedExisting),
			report.Count(domain.StatusFailed)),
		"",
	})
	t.Render()
}
