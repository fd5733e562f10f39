// Package logging builds the zerolog logger and renders engine events through it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Options configures New
type Options struct {
	Level   string    // debug, info, warn, error; empty means info
	File    string    // JSON lines appended here when set
	Console io.Writer // human-readable output; nil means os.Stderr
	NoColor bool
}

// New returns a logger writing to the console and, optionally, a log file.
// The returned closer releases the file and is never nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    opts.NoColor || !IsTerminal(console),
		TimeFormat: time.TimeOnly,
	}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// EventLogger writes every engine event as one structured log line.
type EventLogger struct {
	Logger zerolog.Logger
}

// Emit implements sorter.Sink.
func (l EventLogger) Emit(e sorter.Event) {
	var ev *zerolog.Event
	switch e.Severity() {
	case "error":
		ev = l.Logger.Error()
	case "warn":
		ev = l.Logger.Warn()
	default:
		if e.Kind == sorter.EventPassComplete || e.Kind == sorter.EventPassStarted {
			ev = l.Logger.Debug()
		} else {
			ev = l.Logger.Info()
		}
	}

	ev = ev.Str("event", e.Kind.String())

	switch e.Kind {
	case sorter.EventPhaseStarted, sorter.EventPhaseSkipped, sorter.EventPhaseComplete,
		sorter.EventMatch, sorter.EventMoved, sorter.EventMoveFailed, sorter.EventCollision:
		ev = ev.Str("phase", e.Phase.String())
	case sorter.EventPassStarted, sorter.EventPassComplete:
		ev = ev.Str("phase", e.Phase.String()).Int("pass", e.Pass).Float64("threshold", e.Threshold)
	}

	if e.File != "" {
		ev = ev.Str("file", e.File)
	}
	if e.Destination != "" {
		ev = ev.Str("destination", e.Destination)
	}
	if e.Match != nil {
		ev = ev.Float64("score", e.Match.Score).Str("match_type", e.Match.Type.String())
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	if e.Summary != nil {
		ev = ev.Int("moved", e.Summary.Moved).
			Int("skipped", e.Summary.Skipped()).
			Int("collisions", e.Summary.Collisions).
			Int("failures", e.Summary.Failures).
			Dur("duration", e.Summary.Duration)
	}

	ev.Msg(e.String())
}
