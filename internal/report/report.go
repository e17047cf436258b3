// Package report summarises archived findings.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/jobsweep/internal/storage"
)

// Summary aggregates a set of findings.
type Summary struct {
	TotalFindings int
	DistinctLinks int
	ByKeyword     map[string]int
	ByQuery       map[string]int
	ByHost        map[string]int
	StartTime     time.Time
	EndTime       time.Time
	Span          time.Duration
	// Recent holds up to recentLimit findings in input order.
	Recent []*storage.Finding
}

const recentLimit = 20

// GenerateSummary aggregates findings. Querier results arrive newest first,
// which is the order Recent preserves.
func GenerateSummary(findings []*storage.Finding) Summary {
	s := Summary{
		ByKeyword: make(map[string]int),
		ByQuery:   make(map[string]int),
		ByHost:    make(map[string]int),
	}
	if len(findings) == 0 {
		return s
	}

	s.StartTime = findings[0].RetrievedAt
	s.EndTime = findings[0].RetrievedAt
	links := make(map[string]struct{}, len(findings))

	for _, f := range findings {
		s.TotalFindings++
		s.ByKeyword[f.FoundKeyword]++
		s.ByQuery[f.SourceQuery]++
		s.ByHost[host(f.Link)]++
		links[f.Link] = struct{}{}

		if f.RetrievedAt.Before(s.StartTime) {
			s.StartTime = f.RetrievedAt
		}
		if f.RetrievedAt.After(s.EndTime) {
			s.EndTime = f.RetrievedAt
		}
		if len(s.Recent) < recentLimit {
			s.Recent = append(s.Recent, f)
		}
	}

	s.DistinctLinks = len(links)
	s.Span = s.EndTime.Sub(s.StartTime)
	return s
}

func host(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Jobsweep Findings Summary
-------------------------
Time:            {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Span:            {{.Span}}
Total Findings:  {{.TotalFindings}}
Distinct Links:  {{.DistinctLinks}}

By Keyword:
{{- range $kw, $count := .ByKeyword}}
  {{$kw}}: {{$count}}
{{- else}}
  None
{{- end}}

By Query:
{{- range $q, $count := .ByQuery}}
  {{$q}}: {{$count}}
{{- else}}
  None
{{- end}}

By Host:
{{- range $h, $count := .ByHost}}
  {{$h}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

// WriteHTML writes a basic HTML report to the provided writer. Titles and
// snippets come from third-party pages and are escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Jobsweep Findings Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Jobsweep Findings Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Span}})</p>

  <div class="stat-card">
    <div>Findings</div>
    <div class="stat-val">{{.TotalFindings}}</div>
  </div>
  <div class="stat-card">
    <div>Distinct Links</div>
    <div class="stat-val">{{.DistinctLinks}}</div>
  </div>

  <h3>By Keyword</h3>
  <table>
    <tr><th>Keyword</th><th>Count</th></tr>
    {{- range $kw, $count := .ByKeyword}}
    <tr><td>{{$kw}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>By Query</h3>
  <table>
    <tr><th>Query</th><th>Count</th></tr>
    {{- range $q, $count := .ByQuery}}
    <tr><td>{{$q}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Recent Findings</h3>
  <table>
    <tr><th>Retrieved</th><th>Keyword</th><th>Title</th><th>Snippet</th></tr>
    {{- range .Recent}}
    <tr><td>{{.RetrievedAt.Format "2006-01-02 15:04"}}</td><td>{{.FoundKeyword}}</td><td><a href="{{.Link}}">{{.JobTitle}}</a></td><td>{{.Snippet}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
