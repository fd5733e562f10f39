package fsops

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Operation is one completed filesystem change
type Operation struct {
	Timestamp   time.Time
	RunID       string
	Type        string // "move"
	Source      string
	Destination string
}

// Journal appends completed operations to a pipe-delimited log:
//
//	RFC3339|run-id|type|source|destination
//
// Field text is backslash-escaped, so names may contain '|' or newlines.
type Journal struct {
	mu    sync.Mutex
	f     *os.File
	runID string
	err   error
	count int
	now   func() time.Time
}

// OpenJournal opens (or creates) the log at path in append mode with
// user-only permissions.
func OpenJournal(path, runID string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f, runID: runID, now: time.Now}, nil
}

// Record appends one line. A write failure never undoes the operation; the
// first one is kept and reported by Err.
func (j *Journal) Record(opType, src, dst string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return
	}

	line := fmt.Sprintf("%s|%s|%s|%s|%s\n",
		j.now().Format(time.RFC3339),
		escapeField(j.runID),
		escapeField(opType),
		escapeField(src),
		escapeField(dst))

	if _, err := j.f.WriteString(line); err != nil {
		if j.err == nil {
			j.err = fmt.Errorf("failed to write operation log: %w", err)
		}
		return
	}
	j.count++
}

// Count returns the number of lines written by this journal.
func (j *Journal) Count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close flushes and closes the log file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

// ReadJournal parses every well-formed line of the log at path. Malformed
// lines are skipped.
func ReadJournal(path string) ([]Operation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ops []Operation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		op, ok := parseOperation(scanner.Text())
		if !ok {
			continue
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return ops, err
	}
	return ops, nil
}

var fieldEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`, "\n", `\n`)

func escapeField(s string) string {
	return fieldEscaper.Replace(s)
}

// splitFields splits line on unescaped '|' and unescapes each field
func splitFields(line string) []string {
	var fields []string
	var sb strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			if r == 'n' {
				r = '\n'
			}
			sb.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			fields = append(fields, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	return append(fields, sb.String())
}

// parseOperation decodes one journal line
func parseOperation(line string) (Operation, bool) {
	parts := splitFields(line)
	if len(parts) != 5 {
		return Operation{}, false
	}
	ts, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return Operation{}, false
	}
	return Operation{
		Timestamp:   ts,
		RunID:       parts[1],
		Type:        parts[2],
		Source:      parts[3],
		Destination: parts[4],
	}, true
}
