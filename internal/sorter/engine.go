package sorter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/Nomadcxx/smartsorter/internal/matcher"
)

// Deps are the collaborators a Sorter drives
type Deps struct {
	Records  RecordSource
	Lister   Lister
	Executor Executor
	Gate     Gate
	Sink     Sink
}

// Sorter reconciles the files in Settings.Root against metadata records.
// A Sorter holds no mutable state between runs; Run may be called again to
// re-process whatever is left in the directory.
type Sorter struct {
	settings   Settings
	deps       Deps
	planner    *Planner
	thresholds []float64
}

// New validates settings and collaborators.
func New(settings Settings, deps Deps) (*Sorter, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if deps.Records == nil || deps.Lister == nil || deps.Executor == nil || deps.Gate == nil {
		return nil, errors.New("records, lister, executor and gate are required")
	}
	if deps.Sink == nil {
		deps.Sink = Discard
	}

	return &Sorter{
		settings:   settings,
		deps:       deps,
		planner:    NewPlanner(settings.VideoRoot(), settings.ThumbnailRoot(), deps.Executor),
		thresholds: settings.TitleThresholds(),
	}, nil
}

// scoredRecord pairs a record with its precomputed comparison title
type scoredRecord struct {
	record Record
	title  string
}

// run carries per-run book-keeping
type run struct {
	records []scoredRecord
	summary Summary
}

// Run executes setup, confirmation and the three matching phases. Setup
// failures return a *SetupError and leave the filesystem untouched. A declined
// confirmation returns ErrDeclined. Context cancellation stops the run at the
// next candidate boundary and returns the partial summary.
func (s *Sorter) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	set, err := s.deps.Records.Load(ctx)
	if err != nil {
		return Summary{}, s.setupFailed("load metadata", err)
	}

	r := &run{records: make([]scoredRecord, 0, len(set.Records))}
	for _, rec := range set.Records {
		r.records = append(r.records, scoredRecord{record: rec, title: s.settings.Normalizer.NormalizeTitle(rec.Title)})
		if rec.SourceID != "" {
			r.summary.WithIdentifier++
		}
	}
	r.summary.Records = len(set.Records)

	if set.HasLocator {
		s.info("--- Found locator column. Will prioritize identifier matching.")
	} else {
		s.info("--- No locator column found. Proceeding with title matching only.")
	}
	s.emit(Event{Kind: EventRecordsLoaded, File: set.Source, Count: len(set.Records)})

	if len(set.Records) == 0 {
		return Summary{}, s.setupFailed("load metadata", errors.New("no records found"))
	}

	initial, _, err := s.candidates()
	if err != nil {
		return Summary{}, s.setupFailed("list directory", err)
	}
	r.summary.InitialFiles = len(initial)

	ok, err := s.deps.Gate.Confirm(ctx, ConfirmRequest{
		Root:       s.settings.Root,
		Source:     set.Source,
		Records:    len(set.Records),
		Candidates: len(initial),
	})
	if err != nil {
		return Summary{}, s.setupFailed("confirm", err)
	}
	if !ok {
		s.emit(Event{Kind: EventDeclined})
		return Summary{}, ErrDeclined
	}

	for _, dir := range []string{s.settings.VideoRoot(), s.settings.ThumbnailRoot()} {
		if err := s.deps.Executor.EnsureDir(dir); err != nil {
			return Summary{}, s.setupFailed("create target directory", err)
		}
	}

	s.emit(Event{Kind: EventRunStarted})

	err = s.phases(ctx, r)

	// The closing report is produced even for an interrupted run
	if unmatched, ignored, listErr := s.remaining(); listErr == nil {
		r.summary.Unmatched = unmatched
		r.summary.Ignored = ignored
	} else if err == nil {
		err = listErr
	}
	r.summary.Duration = time.Since(start)

	summary := r.summary
	s.emit(Event{Kind: EventRunComplete, Summary: &summary})
	return summary, err
}

func (s *Sorter) phases(ctx context.Context, r *run) error {
	if err := s.identifierPhase(ctx, r); err != nil {
		return err
	}
	if err := s.titlePhase(ctx, r); err != nil {
		return err
	}
	return s.lastResortPhase(ctx, r)
}

// identifierPhase matches candidates whose filename carries a source identifier.
func (s *Sorter) identifierPhase(ctx context.Context, r *run) error {
	s.emit(Event{Kind: EventPhaseStarted, Phase: PhaseIdentifier})

	// Ordered by first appearance; a repeated identifier keeps the last record
	var keys []string
	byID := make(map[string]Record)
	for _, sr := range r.records {
		id := sr.record.SourceID
		if id == "" {
			continue
		}
		if _, seen := byID[id]; !seen {
			keys = append(keys, id)
		}
		byID[id] = sr.record
	}

	if len(keys) == 0 {
		s.emit(Event{Kind: EventPhaseSkipped, Phase: PhaseIdentifier, Message: "No valid identifiers found in metadata. Skipping this phase."})
		return nil
	}

	pool, _, err := s.candidates()
	if err != nil {
		return err
	}

	moved := 0
	for _, c := range pool {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, ok := matcher.ExtractFilenameIdentifier(c.Name)
		if !ok {
			continue
		}

		var match *MatchResult
		if rec, exact := byID[id]; exact {
			match = &MatchResult{Record: rec, Score: 1.0, Type: ExactIdentifier}
		} else {
			bestScore := 0.0
			var best Record
			for _, key := range keys {
				if score := s.settings.Scorer.Score(id, key); score > bestScore {
					bestScore = score
					best = byID[key]
				}
			}
			if bestScore >= s.settings.IdentifierThreshold {
				match = &MatchResult{Record: best, Score: bestScore, Type: FuzzyIdentifier}
			}
		}

		if match == nil {
			continue
		}
		if s.attempt(PhaseIdentifier, c, *match, r) == PlanMoved {
			moved++
		}
	}

	r.summary.MovedByPhase[PhaseIdentifier] += moved
	s.emit(Event{Kind: EventPhaseComplete, Phase: PhaseIdentifier, Count: moved})
	return nil
}

// titlePhase runs the decaying-threshold passes.
func (s *Sorter) titlePhase(ctx context.Context, r *run) error {
	s.emit(Event{Kind: EventPhaseStarted, Phase: PhaseTitle})

	total := 0
	for i, threshold := range s.thresholds {
		pool, _, err := s.candidates()
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			break
		}

		pass := i + 1
		r.summary.TitlePasses = pass
		s.emit(Event{Kind: EventPassStarted, Phase: PhaseTitle, Pass: pass, Threshold: threshold})

		moved := 0
		for _, c := range pool {
			if err := ctx.Err(); err != nil {
				return err
			}

			best, ok := s.bestTitleMatch(c, r.records)
			if !ok || best.Score < threshold {
				continue
			}
			if s.attempt(PhaseTitle, c, best, r) == PlanMoved {
				moved++
			}
		}

		total += moved
		s.emit(Event{Kind: EventPassComplete, Phase: PhaseTitle, Pass: pass, Threshold: threshold, Count: moved})
	}

	r.summary.MovedByPhase[PhaseTitle] += total
	s.emit(Event{Kind: EventPhaseComplete, Phase: PhaseTitle, Count: total})
	return nil
}

// lastResortPhase walks every candidate's ranked records until one move lands.
func (s *Sorter) lastResortPhase(ctx context.Context, r *run) error {
	s.emit(Event{Kind: EventPhaseStarted, Phase: PhaseLastResort})

	pool, _, err := s.candidates()
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		s.emit(Event{Kind: EventPhaseSkipped, Phase: PhaseLastResort, Message: "No remaining files to process."})
		return nil
	}

	moved := 0
	for _, c := range pool {
		if err := ctx.Err(); err != nil {
			return err
		}

	ranked:
		for _, m := range s.rankTitleMatches(c, r.records) {
			if m.Score < s.settings.LastResortFloor {
				break
			}
			switch s.attempt(PhaseLastResort, c, m, r) {
			case PlanMoved:
				moved++
				break ranked
			case PlanFailed, PlanDeclined:
				break ranked
			}
		}
	}

	r.summary.MovedByPhase[PhaseLastResort] += moved
	s.emit(Event{Kind: EventPhaseComplete, Phase: PhaseLastResort, Count: moved})
	return nil
}

// bestTitleMatch keeps the first record with the strictly highest score.
func (s *Sorter) bestTitleMatch(c Candidate, records []scoredRecord) (MatchResult, bool) {
	cleaned := s.settings.Normalizer.Normalize(c.Name)

	var best MatchResult
	found := false
	for _, sr := range records {
		score := s.settings.Scorer.Score(cleaned, sr.title)
		if score > best.Score {
			best = MatchResult{Record: sr.record, Score: score, Type: Title}
			found = true
		}
	}
	return best, found
}

// rankTitleMatches scores every record, highest first; ties keep record order.
func (s *Sorter) rankTitleMatches(c Candidate, records []scoredRecord) []MatchResult {
	cleaned := s.settings.Normalizer.Normalize(c.Name)

	out := make([]MatchResult, 0, len(records))
	for _, sr := range records {
		out = append(out, MatchResult{
			Record: sr.record,
			Score:  s.settings.Scorer.Score(cleaned, sr.title),
			Type:   Title,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// attempt runs the planner and reports the outcome on the event stream.
func (s *Sorter) attempt(phase Phase, c Candidate, m MatchResult, r *run) Outcome {
	res := s.planner.Apply(c, m)
	dest := s.relative(res.Destination)

	switch res.Outcome {
	case PlanMoved:
		r.summary.Moved++
		s.emit(Event{Kind: EventMatch, Phase: phase, File: c.Name, Destination: dest, Match: &m})
		s.emit(Event{Kind: EventMoved, Phase: phase, File: c.Name, Destination: dest, Match: &m})
	case PlanFailed:
		r.summary.Failures++
		s.emit(Event{Kind: EventMatch, Phase: phase, File: c.Name, Destination: dest, Match: &m})
		s.emit(Event{Kind: EventMoveFailed, Phase: phase, File: c.Name, Destination: dest, Match: &m, Err: res.Err})
	case PlanCollision:
		r.summary.Collisions++
		s.emit(Event{Kind: EventCollision, Phase: phase, File: c.Name, Destination: dest, Match: &m})
	}
	return res.Outcome
}

// candidates lists the classified files currently in the root directory,
// sorted by name. Unclassified names are returned separately.
func (s *Sorter) candidates() ([]Candidate, []string, error) {
	names, err := s.deps.Lister.ListFiles(s.settings.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", s.settings.Root, err)
	}
	sort.Strings(names)

	pool := make([]Candidate, 0, len(names))
	var ignored []string
	for _, name := range names {
		ext := filepath.Ext(name)
		cat := s.settings.Classify(ext)
		if cat == Unclassified {
			ignored = append(ignored, name)
			continue
		}
		pool = append(pool, Candidate{
			Name:     name,
			Path:     filepath.Join(s.settings.Root, name),
			Ext:      ext,
			Category: cat,
		})
	}
	return pool, ignored, nil
}

// remaining returns the unmatched and ignored names left in the root.
func (s *Sorter) remaining() ([]string, []string, error) {
	pool, ignored, err := s.candidates()
	if err != nil {
		return nil, nil, err
	}
	unmatched := make([]string, 0, len(pool))
	for _, c := range pool {
		unmatched = append(unmatched, c.Name)
	}
	return unmatched, ignored, nil
}

func (s *Sorter) relative(path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(s.settings.Root, path); err == nil {
		return rel
	}
	return path
}

func (s *Sorter) setupFailed(op string, err error) error {
	se := &SetupError{Op: op, Err: err}
	s.emit(Event{Kind: EventSetupFailed, Err: se})
	return se
}

func (s *Sorter) info(msg string) {
	s.emit(Event{Kind: EventInfo, Message: msg})
}

func (s *Sorter) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.deps.Sink.Emit(e)
}
