package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Nomadcxx/smartsorter/internal/config"
	"github.com/Nomadcxx/smartsorter/internal/fsops"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
	"github.com/Nomadcxx/smartsorter/internal/ui"
)

// renderTable draws a rounded table. rightAligned lists 1-based column
// numbers to right-align.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, row := range rows {
		tw.AppendRow(toRow(row))
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, n := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// printRunSummary writes the end-of-run table and where the reports went
func printRunSummary(w io.Writer, result runResult) {
	r := result.Report
	count := func(n int) string { return fmt.Sprintf("%d", n) }

	rows := [][]string{
		{"Files at start", count(r.InitialFiles)},
		{"Renamed & moved", count(r.Moved())},
		{"  by identifier", count(r.MovedByPhase[sorter.PhaseIdentifier.String()])},
		{"  by title", fmt.Sprintf("%d (%d passes)", r.MovedByPhase[sorter.PhaseTitle.String()], r.TitlePasses)},
		{"  last resort", count(r.MovedByPhase[sorter.PhaseLastResort.String()])},
		{"Skipped (unmatched)", count(r.Skipped())},
		{"Collisions", count(len(r.Collisions))},
		{"Failures", count(len(r.Failures))},
		{"Ignored (unknown type)", count(len(r.Ignored))},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(w, renderTable([]string{"Result", "Files"}, rows, 2))

	if result.ReportPath != "" {
		fmt.Fprintf(w, "\n%s\n  %s\n  %s\n", ui.FormatStatusOK("Report saved to:"), result.ReportPath, result.SummaryPath)
		fmt.Fprintf(w, "\nView report with: smartsorter view %s\n", result.ReportPath)
	}
	if result.LogPath != "" {
		fmt.Fprintf(w, "Run log: %s\n", result.LogPath)
	}
}

// filterOperations keeps moves from runID (all runs when empty) and the
// newest limit entries (all when limit <= 0), oldest first
func filterOperations(ops []fsops.Operation, runID string, limit int) []fsops.Operation {
	var kept []fsops.Operation
	for _, op := range ops {
		if runID != "" && op.RunID != runID {
			continue
		}
		kept = append(kept, op)
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

func renderHistory(ops []fsops.Operation) string {
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []string{
			op.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortRunID(op.RunID),
			op.Source,
			op.Destination,
		})
	}
	return renderTable([]string{"Time", "Run", "From", "To"}, rows)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// describeConfig renders the effective configuration for `smartsorter config`
func describeConfig(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString(renderTable([]string{"Setting", "Value"}, [][]string{
		{"Video folder", cfg.Library.VideoDir},
		{"Thumbnail folder", cfg.Library.ThumbnailDir},
		{"Video extensions", strings.Join(cfg.Library.VideoExtensions, " ")},
		{"Thumbnail extensions", strings.Join(cfg.Library.ThumbnailExtensions, " ")},
		{"Algorithm", cfg.Matching.Algorithm},
		{"Identifier threshold", fmt.Sprintf("%.2f", cfg.Matching.IdentifierThreshold)},
		{"Title thresholds", fmt.Sprintf("%.2f -> %.2f step %.2f", cfg.Matching.TitleStartThreshold, cfg.Matching.TitleMinThreshold, cfg.Matching.TitleStep)},
		{"Last resort floor", fmt.Sprintf("%.2f", cfg.Matching.LastResortFloor)},
		{"CSV columns", fmt.Sprintf("%s, %s, %s", cfg.Metadata.TitleColumn, cfg.Metadata.IndexColumn, cfg.Metadata.LocatorColumn)},
		{"Reports", cfg.Output.ReportDir},
		{"Operation log", cfg.Output.OperationLog},
		{"Log level", cfg.Output.LogLevel},
	}))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nNoise patterns (%d):\n", len(cfg.Matching.NoisePatterns))
	for _, p := range cfg.Matching.NoisePatterns {
		fmt.Fprintf(&sb, "  - %s\n", p)
	}
	return sb.String()
}
