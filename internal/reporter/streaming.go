package reporter

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Transcript writes the human-readable run log incrementally, one line per
// event, so a long run never holds the whole log in memory.
type Transcript struct {
	mu        sync.Mutex
	timestamp time.Time
	path      string
	file      *os.File
	writer    *bufio.Writer
	lines     int
	err       error
}

// NewTranscript creates <timestamp>_log.txt in dir and writes its header.
func NewTranscript(dir, runID, root string) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := time.Now()
	path := filepath.Join(dir, timestamp.Format("20060102_150405")+"_log.txt")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	t := &Transcript{
		timestamp: timestamp,
		path:      path,
		file:      f,
		writer:    bufio.NewWriter(f),
	}

	header := "SmartSorter Run Log\n"
	header += fmt.Sprintf("Generated: %s\n", timestamp.Format(time.RFC1123))
	header += fmt.Sprintf("Run ID: %s\n", runID)
	header += fmt.Sprintf("Directory: %s\n\n", root)

	if _, err := t.writer.WriteString(header); err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to write transcript header: %w", err)
	}

	return t, nil
}

// Emit implements sorter.Sink. The first write error is kept and returned by
// Finalize.
func (t *Transcript) Emit(e sorter.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil || t.writer == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", e.Time.Format("15:04:05"), e.String())
	if _, err := t.writer.WriteString(line); err != nil {
		t.err = fmt.Errorf("failed to write transcript: %w", err)
		return
	}
	t.lines++
}

// Lines returns the number of event lines written so far.
func (t *Transcript) Lines() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}

// Finalize flushes buffered lines.
func (t *Transcript) Finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}
	if t.writer == nil {
		return nil
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush transcript: %w", err)
	}
	return nil
}

// Close closes the file handle. Call Finalize first to keep buffered lines.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	t.writer = nil
	if err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	return nil
}

// Path returns the transcript file path.
func (t *Transcript) Path() string {
	return t.path
}
