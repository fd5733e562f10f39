package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, closer, err := New(Options{Level: "loud", Console: &bytes.Buffer{}})
	assert.Error(t, err)
	assert.NotNil(t, closer)
}

func TestEventLoggerWritesStructuredFields(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "smartsorter.log")

	logger, closer, err := New(Options{Level: "info", File: path, Console: &console})
	require.NoError(t, err)

	sink := EventLogger{Logger: logger}
	sink.Emit(sorter.Event{
		Kind:        sorter.EventMatch,
		Phase:       sorter.PhaseIdentifier,
		File:        "dQw4w9WgXcQ.jpg",
		Destination: "Thumbnails/7 - Never Gonna.jpg",
		Match:       &sorter.MatchResult{Score: 1, Type: sorter.ExactIdentifier},
	})
	sink.Emit(sorter.Event{Kind: sorter.EventMoveFailed, Phase: sorter.PhaseTitle, File: "a.mp4", Err: errors.New("denied")})
	// Pass banners are debug level and filtered out here
	sink.Emit(sorter.Event{Kind: sorter.EventPassStarted, Phase: sorter.PhaseTitle, Pass: 1, Threshold: 0.6})
	require.NoError(t, closer.Close())

	lines := readJSONLines(t, path)
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "match", first["event"])
	assert.Equal(t, "identifier", first["phase"])
	assert.Equal(t, "Exact ID", first["match_type"])
	assert.Equal(t, 1.0, first["score"])
	assert.Equal(t, "MATCH (Exact ID): 'dQw4w9WgXcQ.jpg' -> 'Thumbnails/7 - Never Gonna.jpg' (Score: 1.00)", first["message"])

	second := lines[1]
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "denied", second["error"])

	assert.Contains(t, console.String(), "Could not move/rename. Reason: denied")
	assert.NotContains(t, console.String(), "Starting Pass")
}

func TestConsoleWithoutTerminalHasNoColor(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := New(Options{Console: &console})
	require.NoError(t, err)

	EventLogger{Logger: logger}.Emit(sorter.Event{Kind: sorter.EventRunComplete, Summary: &sorter.Summary{Moved: 2}})

	out := console.String()
	assert.Contains(t, out, "Process Complete. Total Renamed & Moved: 2 file(s).")
	assert.False(t, strings.Contains(out, "\x1b["), "expected no ANSI escapes in %q", out)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
