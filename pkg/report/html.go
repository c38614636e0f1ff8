package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"time"

	"digital.vasic.automation/pkg/challenge"
)

// HTMLReporter renders summaries as standalone HTML pages.
type HTMLReporter struct{}

// NewHTMLReporter creates an HTML reporter.
func NewHTMLReporter() *HTMLReporter {
	return &HTMLReporter{}
}

// Generate renders the summary as an HTML document.
func (r *HTMLReporter) Generate(
	s Summary,
) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the summary to the given writer.
func (r *HTMLReporter) Write(
	w io.Writer,
	s Summary,
) error {
	r.writeHeader(w)

	fmt.Fprintln(w, "<h1>Challenge Run Report</h1>")
	if s.RunID != "" {
		fmt.Fprintf(
			w,
			"<p><strong>Run ID:</strong> %s</p>\n",
			html.EscapeString(s.RunID),
		)
	}
	fmt.Fprintf(
		w,
		"<p><strong>Generated:</strong> %s</p>\n",
		s.GeneratedAt.Format(time.RFC3339),
	)

	r.writeProgressTable(w, s)
	r.writeChallengeTable(w, s)

	fmt.Fprintln(w, "</body>\n</html>")
	return nil
}

func (r *HTMLReporter) writeHeader(w io.Writer) {
	fmt.Fprintln(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Challenge Run Report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; }
th { background: #f0f0f0; text-align: left; }
.status-completed { color: #207520; }
.status-failed, .status-error { color: #b02020; }
.status-running { color: #205a90; }
</style>
</head>
<body>`)
}

func (r *HTMLReporter) writeProgressTable(
	w io.Writer,
	s Summary,
) {
	fmt.Fprintln(w, "<h2>Overall Progress</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(
		w,
		"<tr><td>Completed</td><td>%d of %d "+
			"(%.1f%%)</td></tr>\n",
		s.Progress.Completed, s.Progress.Total,
		s.Progress.Percentage,
	)
	fmt.Fprintf(
		w,
		"<tr><td>Next Level</td><td>%d</td></tr>\n",
		s.Progress.NextLevel,
	)
	fmt.Fprintln(w, "</table>")
}

func (r *HTMLReporter) writeChallengeTable(
	w io.Writer,
	s Summary,
) {
	fmt.Fprintln(w, "<h2>Challenges</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w,
		"<tr><th>Level</th><th>Name</th><th>Status</th>"+
			"<th>Progress</th><th>Runs</th>"+
			"<th>Duration</th><th>Last Error</th></tr>")

	for _, c := range s.Challenges {
		fmt.Fprintf(
			w,
			"<tr><td>%d</td><td>%s</td>"+
				"<td class=\"status-%s\">%s</td>"+
				"<td>%.0f%%</td><td>%d / %d</td>"+
				"<td>%v</td><td>%s</td></tr>\n",
			c.Level,
			html.EscapeString(c.Name),
			c.Status, c.Status,
			c.Progress*100,
			c.SuccessCount,
			c.SuccessCount+c.FailureCount,
			c.ExecutionTime.Round(time.Millisecond),
			html.EscapeString(errorCell(c)),
		)
	}
	fmt.Fprintln(w, "</table>")
}

func errorCell(c challenge.Snapshot) string {
	if c.LastError == "" {
		return "-"
	}
	return c.LastError
}
