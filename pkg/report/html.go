package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file (default: <reportDir>/report.html)
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Scenario Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Scenario Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(reportDir, index, flows, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Flows         []FlowHTMLData
	TotalDuration string
	PassRate      float64
	JSONData      template.JS // Raw data for scripting against the page
}

// FlowHTMLData contains scenario data formatted for HTML.
type FlowHTMLData struct {
	FlowDetail
	Entry       FlowEntry
	StatusClass string
	DurationStr string
	DurationPct float64
	Screenshot  template.URL // base64 or path
	Steps       []StepHTMLData
}

// StepHTMLData contains step data formatted for HTML.
type StepHTMLData struct {
	Step
	StatusClass string
	DurationStr string
	Screenshot  template.URL
}

func buildHTMLData(reportDir string, index *Index, flows []FlowDetail, cfg HTMLConfig) HTMLData {
	var maxDuration int64
	for _, entry := range index.Flows {
		if entry.Duration != nil && *entry.Duration > maxDuration {
			maxDuration = *entry.Duration
		}
	}

	asset := func(rel string) template.URL {
		if rel == "" || !cfg.EmbedAssets {
			return template.URL(filepath.ToSlash(rel))
		}
		return template.URL(loadAsBase64(filepath.Join(reportDir, rel)))
	}

	flowsData := make([]FlowHTMLData, len(flows))
	for i, f := range flows {
		entry := index.Flows[i]

		steps := make([]StepHTMLData, len(f.Steps))
		for j, s := range f.Steps {
			steps[j] = StepHTMLData{
				Step:        s,
				StatusClass: string(s.Status),
				DurationStr: formatDuration(s.Duration),
				Screenshot:  asset(s.Artifacts.Screenshot),
			}
		}

		var pct float64
		if entry.Duration != nil && maxDuration > 0 {
			pct = float64(*entry.Duration) / float64(maxDuration) * 100
		}

		flowsData[i] = FlowHTMLData{
			FlowDetail:  f,
			Entry:       entry,
			StatusClass: string(entry.Status),
			DurationStr: formatDuration(entry.Duration),
			DurationPct: pct,
			Screenshot:  asset(f.Artifacts.Screenshot),
			Steps:       steps,
		}
	}

	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	var totalMs int64
	if index.EndTime != nil {
		totalMs = index.EndTime.Sub(index.StartTime).Milliseconds()
	}

	jsonBytes, _ := json.Marshal(map[string]interface{}{
		"index": index,
		"flows": flows,
	})

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Flows:         flowsData,
		TotalDuration: formatDuration(&totalMs),
		PassRate:      passRate,
		JSONData:      template.JS(jsonBytes),
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	mimeType := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --failed-bg: rgba(239, 68, 68, 0.08);
            --skipped: #eab308;
            --warned: #f97316;
            --running: #06b6d4;
            --pending: #6b7280;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header-title { font-size: 18px; font-weight: 600; }
        .header-sub { font-size: 12px; color: var(--text-muted); }
        .env { display: flex; gap: 24px; margin-top: 12px; font-size: 13px; }
        .env-label { color: var(--text-muted); margin-right: 4px; }
        .legend { display: flex; gap: 16px; margin-top: 12px; font-size: 13px; }
        main { padding: 16px 24px; }
        .flow { border: 1px solid var(--border-color); border-radius: 6px; margin-bottom: 12px; }
        .flow.failed { background: var(--failed-bg); }
        .flow summary { display: flex; gap: 12px; align-items: center; padding: 10px 14px; cursor: pointer; }
        .flow-name { font-weight: 600; flex: 1; }
        .duration-bar { width: 120px; height: 6px; background: var(--border-color); border-radius: 3px; }
        .duration-fill { height: 6px; background: var(--running); border-radius: 3px; }
        .status-dot { width: 10px; height: 10px; border-radius: 50%; display: inline-block; }
        .status-dot.passed { background: var(--passed); }
        .status-dot.failed { background: var(--failed); }
        .status-dot.skipped { background: var(--skipped); }
        .status-dot.warned { background: var(--warned); }
        .status-dot.running { background: var(--running); }
        .status-dot.pending { background: var(--pending); }
        .badge { font-size: 11px; padding: 1px 6px; border-radius: 4px; border: 1px solid var(--border-color); }
        .steps { list-style: none; padding: 0 14px 12px; }
        .step { display: flex; gap: 10px; align-items: baseline; padding: 4px 0; font-size: 13px; }
        .step-desc { flex: 1; font-family: ui-monospace, SFMono-Regular, Menlo, monospace; }
        .step-duration { color: var(--text-muted); }
        .error { margin: 4px 0 8px 20px; padding: 8px; border-left: 3px solid var(--failed); font-size: 12px; white-space: pre-wrap; }
        .error-type { font-weight: 600; }
        .screenshot { max-width: 360px; border: 1px solid var(--border-color); margin: 8px 14px; }
    </style>
</head>
<body>
    <header class="header">
        <div class="header-title">{{.Title}}</div>
        <div class="header-sub">{{.GeneratedAt}} &middot; run {{.Index.RunID}}</div>
        <div class="env">
            <span><span class="env-label">Base URL</span>{{.Index.BaseURL}}</span>
            <span><span class="env-label">Browser</span>{{.Index.Browser.Name}}{{if .Index.Browser.Version}} {{.Index.Browser.Version}}{{end}}{{if .Index.Browser.Headless}} (headless){{end}}</span>
            <span><span class="env-label">Driver</span>{{.Index.Runner.Driver}}</span>
            <span><span class="env-label">Duration</span>{{.TotalDuration}}</span>
        </div>
        <div class="legend">
            <span><span class="status-dot {{.Index.Status}}"></span> {{.Index.Status}}</span>
            <span>{{.Index.Summary.Passed}} passed</span>
            <span>{{.Index.Summary.Failed}} failed</span>
            {{if .Index.Summary.Skipped}}<span>{{.Index.Summary.Skipped}} skipped</span>{{end}}
            {{if .Index.Summary.Flaky}}<span>{{.Index.Summary.Flaky}} flaky</span>{{end}}
            <span>{{printf "%.0f" .PassRate}}% pass rate</span>
        </div>
    </header>
    <main>
        {{range $fi, $flow := .Flows}}
        <details class="flow {{$flow.StatusClass}}" data-status="{{$flow.StatusClass}}"{{if eq $flow.StatusClass "failed"}} open{{end}}>
            <summary>
                <span class="status-dot {{$flow.StatusClass}}"></span>
                <span class="flow-name">{{$flow.Name}}</span>
                {{if $flow.Entry.Flaky}}<span class="badge">flaky</span>{{end}}
                {{if gt $flow.Entry.Attempts 1}}<span class="badge">{{$flow.Entry.Attempts}} attempts</span>{{end}}
                {{if $flow.Entry.ErrorType}}<span class="badge">{{$flow.Entry.ErrorType}}</span>{{end}}
                <span>{{len $flow.Steps}} steps</span>
                <div class="duration-bar"><div class="duration-fill" style="width: {{printf "%.1f" $flow.DurationPct}}%"></div></div>
                <span>{{$flow.DurationStr}}</span>
            </summary>
            {{if $flow.Entry.Error}}{{if not $flow.Entry.FailedStep}}<div class="error">{{$flow.Entry.Error}}</div>{{end}}{{end}}
            <ol class="steps">
                {{range $flow.Steps}}
                <li>
                    <div class="step">
                        <span class="status-dot {{.StatusClass}}"></span>
                        <span class="step-desc">{{if .Label}}{{.Label}}{{else}}{{.Describe}}{{end}}</span>
                        <span class="step-duration">{{.DurationStr}}</span>
                    </div>
                    {{with .Error}}
                    <div class="error"><span class="error-type">{{.Type}}</span>: {{.Message}}{{if .Expected}}
expected: {{.Expected}}{{end}}{{if .Actual}}
actual:   {{.Actual}}{{end}}{{if .Details}}
{{.Details}}{{end}}</div>
                    {{end}}
                    {{if .Screenshot}}<img class="screenshot" src="{{.Screenshot}}" alt="step screenshot">{{end}}
                </li>
                {{end}}
            </ol>
            {{if $flow.Screenshot}}<img class="screenshot" src="{{$flow.Screenshot}}" alt="failure screenshot">{{end}}
            {{if $flow.Artifacts.Page}}<p style="padding: 0 14px 12px; font-size: 12px;"><a href="{{$flow.Artifacts.Page}}">page snapshot</a></p>{{end}}
        </details>
        {{end}}
    </main>
    <script>
        const reportData = {{.JSONData}};
    </script>
</body>
</html>
`
