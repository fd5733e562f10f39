package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Move is one file that was renamed and relocated
type Move struct {
	File        string  `json:"file"`
	Destination string  `json:"destination"`
	Phase       string  `json:"phase"`
	MatchType   string  `json:"match_type"`
	Score       float64 `json:"score"`
}

// Problem is a collision or failed move for one file and destination
type Problem struct {
	File        string `json:"file"`
	Destination string `json:"destination"`
	Phase       string `json:"phase"` // phase of the last attempt
	Reason      string `json:"reason,omitempty"`
	Attempts    int    `json:"attempts"`
}

// Report represents a finished (or interrupted) run
type Report struct {
	RunID          string         `json:"run_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Root           string         `json:"root"`
	Source         string         `json:"source"`
	Records        int            `json:"records"`
	WithIdentifier int            `json:"records_with_identifier"`
	InitialFiles   int            `json:"initial_files"`
	TitlePasses    int            `json:"title_passes"`
	MovedByPhase   map[string]int `json:"moved_by_phase"`
	Moves          []Move         `json:"moves"`
	Collisions     []Problem      `json:"collisions"`
	Failures       []Problem      `json:"failures"`
	Unmatched      []string       `json:"unmatched"`
	Ignored        []string       `json:"ignored"`
	Duration       time.Duration  `json:"duration_ns"`
	Error          string         `json:"error,omitempty"`
}

// Moved is the number of relocated files
func (r Report) Moved() int { return len(r.Moves) }

// Skipped is the number of classified files left in place
func (r Report) Skipped() int { return len(r.Unmatched) }

// Collector is a sorter.Sink that assembles a Report from the event stream.
type Collector struct {
	mu         sync.Mutex
	report     Report
	collisions map[string]int // file|destination -> index into report.Collisions
	failures   map[string]int
}

// NewCollector starts a report for the given run.
func NewCollector(runID, root string) *Collector {
	return &Collector{
		report: Report{
			RunID:        runID,
			Root:         root,
			MovedByPhase: map[string]int{},
		},
		collisions: map[string]int{},
		failures:   map[string]int{},
	}
}

// Emit implements sorter.Sink.
func (c *Collector) Emit(e sorter.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &c.report
	switch e.Kind {
	case sorter.EventRecordsLoaded:
		r.Source = e.File
		r.Records = e.Count
	case sorter.EventRunStarted:
		r.Timestamp = e.Time
	case sorter.EventMoved:
		m := Move{File: e.File, Destination: e.Destination, Phase: e.Phase.String()}
		if e.Match != nil {
			m.MatchType = e.Match.Type.String()
			m.Score = e.Match.Score
		}
		r.Moves = append(r.Moves, m)
	case sorter.EventCollision:
		r.Collisions = addProblem(r.Collisions, c.collisions, e, "")
	case sorter.EventMoveFailed:
		reason := ""
		if e.Err != nil {
			reason = e.Err.Error()
		}
		r.Failures = addProblem(r.Failures, c.failures, e, reason)
	case sorter.EventSetupFailed:
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
	case sorter.EventRunComplete:
		if e.Summary == nil {
			return
		}
		s := e.Summary
		r.WithIdentifier = s.WithIdentifier
		r.InitialFiles = s.InitialFiles
		r.TitlePasses = s.TitlePasses
		r.Unmatched = append([]string(nil), s.Unmatched...)
		r.Ignored = append([]string(nil), s.Ignored...)
		r.Duration = s.Duration
		for _, p := range []sorter.Phase{sorter.PhaseIdentifier, sorter.PhaseTitle, sorter.PhaseLastResort} {
			r.MovedByPhase[p.String()] = s.MovedByPhase[p]
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = e.Time
		}
	}
}

func addProblem(list []Problem, index map[string]int, e sorter.Event, reason string) []Problem {
	key := e.File + "|" + e.Destination
	if i, ok := index[key]; ok {
		list[i].Attempts++
		list[i].Phase = e.Phase.String()
		if reason != "" {
			list[i].Reason = reason
		}
		return list
	}
	index[key] = len(list)
	return append(list, Problem{
		File:        e.File,
		Destination: e.Destination,
		Phase:       e.Phase.String(),
		Reason:      reason,
		Attempts:    1,
	})
}

// SetError records a run-level error, e.g. an interrupted run.
func (c *Collector) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil && c.report.Error == "" {
		c.report.Error = err.Error()
	}
}

// Report returns a snapshot of the collected report.
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.report
	r.Moves = append([]Move(nil), r.Moves...)
	r.Collisions = append([]Problem(nil), r.Collisions...)
	r.Failures = append([]Problem(nil), r.Failures...)
	r.MovedByPhase = make(map[string]int, len(c.report.MovedByPhase))
	for k, v := range c.report.MovedByPhase {
		r.MovedByPhase[k] = v
	}
	return r
}

// Save writes <timestamp>_report.json and <timestamp>_summary.txt into dir
// and returns both paths.
func Save(report Report, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}

	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := filepath.Join(dir, ts.Format("20060102_150405"))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode report: %w", err)
	}
	jsonPath := prefix + "_report.json"
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	summaryPath := prefix + "_summary.txt"
	if err := os.WriteFile(summaryPath, []byte(buildReportContent(report)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write summary: %w", err)
	}

	return jsonPath, summaryPath, nil
}

// Load reads a report written by Save.
func Load(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	if r.MovedByPhase == nil {
		r.MovedByPhase = map[string]int{}
	}
	return r, nil
}

// buildReportContent generates the report text
func buildReportContent(report Report) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 80) + "\n"

	// Header
	sb.WriteString("SMARTSORTER RUN REPORT\n")
	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Generated: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Directory: %s\n", report.Root))
	sb.WriteString(fmt.Sprintf("Metadata: %s (%d records, %d with identifier)\n", report.Source, report.Records, report.WithIdentifier))
	if report.Error != "" {
		sb.WriteString(fmt.Sprintf("Error: %s\n", report.Error))
	}
	sb.WriteString("\n")

	// Summary
	sb.WriteString("SUMMARY\n")
	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Files at start: %d\n", report.InitialFiles))
	sb.WriteString(fmt.Sprintf("Total Renamed & Moved: %d file(s)\n", report.Moved()))
	sb.WriteString(fmt.Sprintf("  Identifier matching: %d\n", report.MovedByPhase[sorter.PhaseIdentifier.String()]))
	sb.WriteString(fmt.Sprintf("  Title matching: %d (%d passes)\n", report.MovedByPhase[sorter.PhaseTitle.String()], report.TitlePasses))
	sb.WriteString(fmt.Sprintf("  Last resort: %d\n", report.MovedByPhase[sorter.PhaseLastResort.String()]))
	sb.WriteString(fmt.Sprintf("Skipped (unmatched): %d file(s)\n", report.Skipped()))
	sb.WriteString(fmt.Sprintf("Collisions: %d\n", len(report.Collisions)))
	sb.WriteString(fmt.Sprintf("Failures: %d\n", len(report.Failures)))
	sb.WriteString(fmt.Sprintf("Ignored (unknown type): %d\n", len(report.Ignored)))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", report.Duration.Round(time.Millisecond)))
	sb.WriteString("\n")

	if len(report.Moves) > 0 {
		sb.WriteString("MOVED FILES\n")
		sb.WriteString(rule)
		for i, m := range report.Moves {
			sb.WriteString(fmt.Sprintf("%d. [%s %.2f] %s\n", i+1, m.MatchType, m.Score, m.File))
			sb.WriteString(fmt.Sprintf("   -> %s\n", m.Destination))
		}
		sb.WriteString("\n")
	}

	if len(report.Failures) > 0 {
		sb.WriteString("FAILED MOVES\n")
		sb.WriteString(rule)
		for i, p := range report.Failures {
			sb.WriteString(fmt.Sprintf("%d. %s -> %s\n", i+1, p.File, p.Destination))
			sb.WriteString(fmt.Sprintf("   Reason: %s (%d attempt(s))\n", p.Reason, p.Attempts))
		}
		sb.WriteString("\n")
	}

	if len(report.Collisions) > 0 {
		sb.WriteString("COLLISIONS\n")
		sb.WriteString(rule)
		for i, p := range report.Collisions {
			sb.WriteString(fmt.Sprintf("%d. %s -> %s (taken, %d attempt(s))\n", i+1, p.File, p.Destination, p.Attempts))
		}
		sb.WriteString("\n")
	}

	// Machine-readable footer
	sb.WriteString(rule)
	sb.WriteString("UNMATCHED FILES\n")
	sb.WriteString(rule)
	for _, name := range report.Unmatched {
		sb.WriteString(name + "\n")
	}

	return sb.String()
}
