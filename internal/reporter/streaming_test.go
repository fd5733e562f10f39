package reporter

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

func TestTranscriptBasic(t *testing.T) {
	tr, err := NewTranscript(t.TempDir(), "run-1", "/library")
	if err != nil {
		t.Fatalf("Failed to create transcript: %v", err)
	}
	defer tr.Close()

	at := time.Date(2024, 5, 1, 9, 15, 0, 0, time.Local)
	tr.Emit(sorter.Event{Kind: sorter.EventPhaseStarted, Phase: sorter.PhaseTitle, Time: at})
	tr.Emit(sorter.Event{Kind: sorter.EventMoved, Time: at})

	if err := tr.Finalize(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}

	if tr.Lines() != 2 {
		t.Errorf("Expected 2 lines, got %d", tr.Lines())
	}

	content, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("Failed to read transcript: %v", err)
	}
	text := string(content)

	if !strings.HasPrefix(text, "SmartSorter Run Log\n") {
		t.Error("Transcript should start with its header")
	}
	if !strings.Contains(text, "Run ID: run-1") {
		t.Error("Transcript should name the run")
	}
	if !strings.Contains(text, "[09:15:00] --- Starting Phase 1: High-Confidence Title Matching (for remaining files) ---\n") {
		t.Errorf("Transcript missing phase banner:\n%s", text)
	}
	if !strings.Contains(text, "[09:15:00]   -> RENAMED & MOVED\n") {
		t.Errorf("Transcript missing move line:\n%s", text)
	}
	if !strings.HasSuffix(tr.Path(), "_log.txt") {
		t.Errorf("Unexpected transcript name %s", tr.Path())
	}
}

func TestTranscriptEmitAfterClose(t *testing.T) {
	tr, err := NewTranscript(t.TempDir(), "run-1", "/library")
	if err != nil {
		t.Fatalf("Failed to create transcript: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}

	tr.Emit(sorter.Event{Kind: sorter.EventMoved})
	if tr.Lines() != 0 {
		t.Errorf("Expected no lines after close, got %d", tr.Lines())
	}
	if err := tr.Finalize(); err != nil {
		t.Errorf("Finalize after close: %v", err)
	}
}
