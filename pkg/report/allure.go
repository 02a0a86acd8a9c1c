package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Links         []AllureLink        `json:"links,omitempty"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureLink points a result at the page it exercised.
type AllureLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	TraceRegex      string   `json:"traceRegex,omitempty"`
	MessageRegex    string   `json:"messageRegex,omitempty"`
}

// AllureExecutor describes the tool that produced the results.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	BuildName  string `json:"buildName,omitempty"`
	ReportName string `json:"reportName"`
}

// AllureDir is the results directory inside a report directory.
const AllureDir = "allure-results"

// GenerateAllure writes Allure result files for a report directory into
// <reportDir>/allure-results/, copying screenshots alongside.
func GenerateAllure(reportDir string) error {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, AllureDir)
	if err := ensureDir(allureDir); err != nil {
		return err
	}

	// One result file per scenario
	for i := range index.Flows {
		entry := &index.Flows[i]
		result := buildAllureResult(entry, &flows[i], index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}
		resultPath := filepath.Join(allureDir, entry.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}
	copyAllureAttachments(reportDir, allureDir, flows)

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return err
	}
	return writeAllureExecutor(allureDir, index)
}

// buildAllureResult builds an AllureResult from a scenario entry and its detail.
func buildAllureResult(entry *FlowEntry, detail *FlowDetail, index *Index) AllureResult {
	startMs, stopMs := allureTimes(entry.StartTime, entry.EndTime, entry.Duration)

	labels := []AllureLabel{
		{Name: "suite", Value: filepath.Base(filepath.Dir(entry.SourceFile))},
		{Name: "subSuite", Value: filepath.Base(entry.SourceFile)},
		{Name: "framework", Value: "scenario-runner"},
		{Name: "host", Value: index.Browser.Name},
		{Name: "severity", Value: "normal"},
	}
	for _, tag := range detail.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}
	if entry.Flaky {
		labels = append(labels, AllureLabel{Name: "flaky", Value: "true"})
	}

	var links []AllureLink
	if detail.URL != "" {
		links = append(links, AllureLink{Name: "page", URL: resolveLink(index.BaseURL, detail.URL), Type: "link"})
	}

	return AllureResult{
		UUID:          index.RunID + "-" + entry.ID,
		HistoryID:     fnv32aHash(entry.Name + ":" + entry.SourceFile),
		FullName:      entry.SourceFile + ": " + entry.Name,
		Name:          entry.Name,
		Description:   detail.Description,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Links:         links,
		StatusDetails: flowStatusDetails(entry, detail),
		Steps:         buildAllureSteps(detail),
		Attachments:   flowAttachments(detail),
	}
}

// flowStatusDetails puts the error type at the head of the trace, which the
// categories match on.
func flowStatusDetails(entry *FlowEntry, detail *FlowDetail) AllureStatusDetails {
	var d AllureStatusDetails
	if entry.Error != nil {
		d.Message = *entry.Error
	}
	if entry.ErrorType == "" {
		return d
	}

	var b strings.Builder
	b.WriteString(entry.ErrorType)
	if entry.FailedStep != nil && *entry.FailedStep < len(detail.Steps) {
		step := detail.Steps[*entry.FailedStep]
		fmt.Fprintf(&b, "\nstep %d: %s", step.Index+1, stepName(step))
		if step.Error != nil {
			if step.Error.Expected != "" {
				fmt.Fprintf(&b, "\nexpected: %s", step.Error.Expected)
			}
			if step.Error.Actual != "" {
				fmt.Fprintf(&b, "\nactual:   %s", step.Error.Actual)
			}
		}
	}
	d.Trace = b.String()
	return d
}

func buildAllureSteps(detail *FlowDetail) []AllureStep {
	steps := make([]AllureStep, 0, len(detail.Steps))
	for _, s := range detail.Steps {
		startMs, stopMs := allureTimes(s.StartTime, s.EndTime, s.Duration)

		var details AllureStatusDetails
		if s.Error != nil {
			details.Message = s.Error.Message
			details.Trace = s.Error.Type
		}
		var attachments []AllureAttachment
		if s.Artifacts.Screenshot != "" {
			attachments = append(attachments, AllureAttachment{
				Name:   "Screenshot",
				Source: attachmentName(detail.ID, s.Artifacts.Screenshot),
				Type:   "image/png",
			})
		}

		steps = append(steps, AllureStep{
			Name:          stepName(s),
			Status:        mapAllureStatus(s.Status),
			Stage:         "finished",
			Start:         startMs,
			Stop:          stopMs,
			StatusDetails: details,
			Steps:         []AllureStep{},
			Attachments:   attachments,
		})
	}
	return steps
}

func stepName(s Step) string {
	switch {
	case s.Label != "":
		return s.Label
	case s.Describe != "":
		return s.Describe
	default:
		return s.Type
	}
}

// flowAttachments lists the scenario-level artifacts.
func flowAttachments(detail *FlowDetail) []AllureAttachment {
	var attachments []AllureAttachment
	if detail.Artifacts.Screenshot != "" {
		attachments = append(attachments, AllureAttachment{
			Name:   "Screenshot",
			Source: attachmentName(detail.ID, detail.Artifacts.Screenshot),
			Type:   "image/png",
		})
	}
	if detail.Artifacts.Page != "" {
		attachments = append(attachments, AllureAttachment{
			Name:   "Page",
			Source: attachmentName(detail.ID, detail.Artifacts.Page),
			Type:   "text/html",
		})
	}
	return attachments
}

// attachmentName flattens assets/<flow>/<file> into one directory without
// collisions between scenarios.
func attachmentName(flowID, path string) string {
	return flowID + "-" + filepath.Base(path)
}

// copyAllureAttachments copies artifacts into allure-results/ flat.
func copyAllureAttachments(reportDir, allureDir string, flows []FlowDetail) {
	for _, fd := range flows {
		paths := []string{fd.Artifacts.Screenshot, fd.Artifacts.Page}
		for _, s := range fd.Steps {
			paths = append(paths, s.Artifacts.Screenshot)
		}
		for _, path := range paths {
			if path == "" {
				continue
			}
			copyFile(filepath.Join(reportDir, path), filepath.Join(allureDir, attachmentName(fd.ID, path)))
		}
	}
}

// copyFile copies src to dst. A missing src is ignored: artifacts are only
// captured for some scenarios.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		logger.Warn("failed to create %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

func allureTimes(start, end *time.Time, duration *int64) (int64, int64) {
	var startMs, stopMs int64
	if start != nil {
		startMs = start.UnixMilli()
	}
	switch {
	case end != nil:
		stopMs = end.UnixMilli()
	case start != nil && duration != nil:
		stopMs = startMs + *duration
	}
	return startMs, stopMs
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed, StatusWarned:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func resolveLink(baseURL, url string) string {
	if strings.Contains(url, "://") || baseURL == "" {
		return url
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(url, "/")
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json, one category per error type.
func writeAllureCategories(allureDir string) error {
	failed := []string{"failed"}
	categories := []AllureCategory{
		{Name: "Navigation Error", MatchedStatuses: failed, TraceRegex: "(?s)^NavigationError.*"},
		{Name: "Locator Timeout", MatchedStatuses: failed, TraceRegex: "(?s)^LocatorTimeoutError.*"},
		{Name: "Action Error", MatchedStatuses: failed, TraceRegex: "(?s)^ActionError.*"},
		{Name: "Assertion Failed", MatchedStatuses: failed, TraceRegex: "(?s)^AssertionError.*"},
		{Name: "Scenario Timeout", MatchedStatuses: failed, TraceRegex: "(?s)^TimeoutError.*"},
		{Name: "Script Error", MatchedStatuses: failed, TraceRegex: "(?s)^ScriptError.*"},
		{Name: "Interrupted", MatchedStatuses: failed, MessageRegex: "(?i).*interrupted.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "categories.json"), data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with browser and runner metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=scenario-runner\n")
	writeProperty(&b, "base.url", index.BaseURL)
	writeProperty(&b, "browser.name", index.Browser.Name)
	writeProperty(&b, "browser.version", index.Browser.Version)
	writeProperty(&b, "browser.headless", fmt.Sprintf("%v", index.Browser.Headless))
	writeProperty(&b, "runner.version", index.Runner.Version)
	writeProperty(&b, "runner.driver", index.Runner.Driver)

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

func writeProperty(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	fmt.Fprintf(b, "%s=%s\n", key, value)
}

// writeAllureExecutor writes executor.json naming the run.
func writeAllureExecutor(allureDir string, index *Index) error {
	executor := AllureExecutor{
		Name:       "scenario-runner",
		Type:       "scenario-runner",
		BuildName:  index.RunID,
		ReportName: "Scenario Runner",
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "executor.json"), data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}
