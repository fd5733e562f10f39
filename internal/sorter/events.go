package sorter

import (
	"fmt"
	"sync"
	"time"
)

// EventKind enumerates the progress events a run emits
type EventKind int

const (
	EventInfo EventKind = iota
	EventRecordsLoaded
	EventSetupFailed
	EventDeclined
	EventRunStarted
	EventPhaseStarted
	EventPhaseSkipped
	EventPassStarted
	EventPassComplete
	EventMatch
	EventMoved
	EventMoveFailed
	EventCollision
	EventPhaseComplete
	EventRunComplete
)

var eventKindNames = map[EventKind]string{
	EventInfo:          "info",
	EventRecordsLoaded: "records_loaded",
	EventSetupFailed:   "setup_failed",
	EventDeclined:      "declined",
	EventRunStarted:    "run_started",
	EventPhaseStarted:  "phase_started",
	EventPhaseSkipped:  "phase_skipped",
	EventPassStarted:   "pass_started",
	EventPassComplete:  "pass_complete",
	EventMatch:         "match",
	EventMoved:         "moved",
	EventMoveFailed:    "move_failed",
	EventCollision:     "collision",
	EventPhaseComplete: "phase_complete",
	EventRunComplete:   "run_complete",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one entry of the ordered progress stream
type Event struct {
	Kind        EventKind
	Time        time.Time
	Phase       Phase
	Pass        int
	Threshold   float64
	File        string
	Destination string // relative to the run root when possible
	Match       *MatchResult
	Count       int
	Err         error
	Message     string
	Summary     *Summary
}

// Severity is a coarse level for renderers: "info", "warn" or "error".
func (e Event) Severity() string {
	switch e.Kind {
	case EventMoveFailed, EventSetupFailed:
		return "error"
	case EventCollision, EventDeclined:
		return "warn"
	default:
		return "info"
	}
}

// String renders the event as one human-readable log line.
func (e Event) String() string {
	switch e.Kind {
	case EventRecordsLoaded:
		return fmt.Sprintf("--- Successfully loaded %d rows from %s.", e.Count, e.File)
	case EventSetupFailed:
		return fmt.Sprintf("--- ERROR: %v", e.Err)
	case EventDeclined:
		return "--- Run declined. No files were changed."
	case EventRunStarted:
		return "*** LIVE MODE IS ON. FILES WILL BE RENAMED AND MOVED. ***"
	case EventPhaseStarted:
		return phaseBanner(e.Phase)
	case EventPhaseSkipped:
		if e.Message != "" {
			return "--- " + e.Message + " ---"
		}
		return fmt.Sprintf("--- Skipping %s phase. ---", e.Phase)
	case EventPassStarted:
		return fmt.Sprintf("--- Starting Pass #%d (Threshold: %.2f) ---", e.Pass, e.Threshold)
	case EventPassComplete:
		if e.Count == 0 {
			return "--- No new high-confidence matches found in this pass. ---"
		}
		return fmt.Sprintf("--- Pass #%d moved %d file(s). ---", e.Pass, e.Count)
	case EventMatch:
		if e.Match == nil {
			return fmt.Sprintf("MATCH: '%s' -> '%s'", e.File, e.Destination)
		}
		return fmt.Sprintf("MATCH (%s): '%s' -> '%s' (Score: %.2f)", matchLabel(e.Phase, e.Match.Type), e.File, e.Destination, e.Match.Score)
	case EventMoved:
		return "  -> RENAMED & MOVED"
	case EventMoveFailed:
		return fmt.Sprintf("  -> ERROR: Could not move/rename. Reason: %v", e.Err)
	case EventCollision:
		switch e.Phase {
		case PhaseIdentifier:
			return fmt.Sprintf("INFO: Destination for '%s' already exists: '%s'. Skipped.", e.File, e.Destination)
		case PhaseTitle:
			return fmt.Sprintf("INFO: Best match for '%s' is taken. Will retry in last resort pass.", e.File)
		default:
			return fmt.Sprintf("INFO: Destination '%s' for '%s' is taken. Trying next match.", e.Destination, e.File)
		}
	case EventPhaseComplete:
		return phaseFooter(e.Phase, e.Count)
	case EventRunComplete:
		if e.Summary == nil {
			return "Process Complete."
		}
		return fmt.Sprintf("Process Complete. Total Renamed & Moved: %d file(s). Skipped (unmatched): %d file(s).",
			e.Summary.Moved, e.Summary.Skipped())
	default:
		return e.Message
	}
}

func matchLabel(p Phase, t MatchType) string {
	if p == PhaseLastResort {
		return "Last Resort"
	}
	return t.String()
}

func phaseBanner(p Phase) string {
	switch p {
	case PhaseIdentifier:
		return "--- Starting Phase 0: Identifier Matching ---"
	case PhaseTitle:
		return "--- Starting Phase 1: High-Confidence Title Matching (for remaining files) ---"
	default:
		return "--- Starting Phase 2: Last Resort Title Matching (for remaining files) ---"
	}
}

func phaseFooter(p Phase, moved int) string {
	switch p {
	case PhaseIdentifier:
		return fmt.Sprintf("--- Processed %d file(s) based on identifier match. ---", moved)
	case PhaseTitle:
		return fmt.Sprintf("--- Title matching moved %d file(s). ---", moved)
	default:
		if moved > 0 {
			return fmt.Sprintf("--- Found %d matches in last resort pass. ---", moved)
		}
		return "--- No new matches found in last resort pass. ---"
	}
}

// Sink consumes events. Emit must not block the caller for long and must not
// retain the event past the call unless it copies it.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Fanout delivers every event to each sink in order
type Fanout []Sink

// Emit implements Sink.
func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Stream is an order-preserving Sink whose Emit never blocks. Events are
// queued without bound and forwarded to Events() by a dedicated goroutine.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	out    chan Event
}

// NewStream starts the forwarding goroutine.
func NewStream() *Stream {
	s := &Stream{out: make(chan Event)}
	s.cond = sync.NewCond(&s.mu)
	go s.forward()
	return s
}

// Emit implements Sink. Events emitted after Close are dropped.
func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, e)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// Events returns the receive side. It is closed once Close was called and
// every queued event has been delivered.
func (s *Stream) Events() <-chan Event {
	return s.out
}

// Close stops accepting events. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Stream) forward() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			s.out <- e
		}
	}
}
