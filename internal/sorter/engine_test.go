package sorter_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Nomadcxx/smartsorter/internal/fsops"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
	"github.com/Nomadcxx/smartsorter/internal/sorter/mocks"
)

type staticSource struct {
	set sorter.RecordSet
	err error
}

func (s staticSource) Load(context.Context) (sorter.RecordSet, error) {
	return s.set, s.err
}

func records(recs ...sorter.Record) staticSource {
	hasLocator := false
	for _, r := range recs {
		if r.SourceID != "" {
			hasLocator = true
		}
	}
	return staticSource{set: sorter.RecordSet{Source: "videos.csv", Records: recs, HasLocator: hasLocator}}
}

type eventLog struct {
	mu     sync.Mutex
	events []sorter.Event
}

func (l *eventLog) Emit(e sorter.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofKind(kind sorter.EventKind) []sorter.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sorter.Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// makeTree creates the named files (relative paths) under a fresh directory
func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}
	return root
}

// listTree returns every file under root as a sorted relative path
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func newSorter(t *testing.T, root string, src sorter.RecordSource, sink sorter.Sink) *sorter.Sorter {
	t.Helper()
	local := fsops.NewLocal(nil)
	s, err := sorter.New(sorter.DefaultSettings(root), sorter.Deps{
		Records:  src,
		Lister:   local,
		Executor: local,
		Gate:     sorter.AutoConfirm(true),
		Sink:     sink,
	})
	require.NoError(t, err)
	return s
}

func TestRunTitleMatchStripsNoise(t *testing.T) {
	root := makeTree(t, "MyVideo (1920p_30fps_H264-128kbit_AAC).mp4")
	log := &eventLog{}

	summary, err := newSorter(t, root, records(sorter.Record{Title: "MyVideo", Index: "12"}), log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseTitle])
	assert.Empty(t, summary.Unmatched)
	assert.FileExists(t, filepath.Join(root, "Videos", "12 - MyVideo.mp4"))

	matches := log.ofKind(sorter.EventMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, sorter.Title, matches[0].Match.Type)
	assert.InDelta(t, 1.0, matches[0].Match.Score, 1e-9)
	assert.Equal(t, filepath.Join("Videos", "12 - MyVideo.mp4"), matches[0].Destination)
}

func TestRunExactIdentifierToThumbnails(t *testing.T) {
	root := makeTree(t, "dQw4w9WgXcQ.jpg")
	src := records(sorter.Record{Title: "Never Gonna", Index: "7", SourceID: "dQw4w9WgXcQ"})
	log := &eventLog{}

	summary, err := newSorter(t, root, src, log).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseIdentifier])
	assert.FileExists(t, filepath.Join(root, "Thumbnails", "7 - Never Gonna.jpg"))

	matches := log.ofKind(sorter.EventMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, sorter.ExactIdentifier, matches[0].Match.Type)
	assert.Equal(t, sorter.PhaseIdentifier, matches[0].Phase)
}

func TestRunIdentifierPreemptsTitle(t *testing.T) {
	root := makeTree(t, "Some Title [dQw4w9WgXcQ].mp4")
	src := records(
		sorter.Record{Title: "Some Title", Index: "1"},
		sorter.Record{Title: "Other", Index: "2", SourceID: "dQw4w9WgXcQ"},
	)

	summary, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseIdentifier])
	assert.Equal(t, 0, summary.MovedByPhase[sorter.PhaseTitle])
	assert.FileExists(t, filepath.Join(root, "Videos", "2 - Other.mp4"))
}

func TestRunFuzzyIdentifier(t *testing.T) {
	root := makeTree(t, "dQw4w9WgXcR.mp4")
	src := records(sorter.Record{Title: "Rick", Index: "1", SourceID: "dQw4w9WgXcQ"})
	log := &eventLog{}

	_, err := newSorter(t, root, src, log).Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "Videos", "1 - Rick.mp4"))
	matches := log.ofKind(sorter.EventMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, sorter.FuzzyIdentifier, matches[0].Match.Type)
	assert.InDelta(t, 0.9090909090909091, matches[0].Match.Score, 1e-9)
}

func TestRunDuplicateIdentifierLastRecordWins(t *testing.T) {
	root := makeTree(t, "dQw4w9WgXcQ.mp4")
	src := records(
		sorter.Record{Title: "First", Index: "1", SourceID: "dQw4w9WgXcQ"},
		sorter.Record{Title: "Second", Index: "2", SourceID: "dQw4w9WgXcQ"},
	)

	_, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "Videos", "2 - Second.mp4"))
}

func TestRunCollisionLeavesSecondFileUnmatched(t *testing.T) {
	root := makeTree(t, "MyVideo (BQ).mp4", "MyVideo (HQ).mp4")
	log := &eventLog{}

	summary, err := newSorter(t, root, records(sorter.Record{Title: "MyVideo", Index: "12"}), log).Run(context.Background())
	require.NoError(t, err)

	// Sorted order: (BQ) is processed first and wins
	data, err := os.ReadFile(filepath.Join(root, "Videos", "12 - MyVideo.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "MyVideo (BQ).mp4", string(data))

	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, []string{"MyVideo (HQ).mp4"}, summary.Unmatched)
	assert.GreaterOrEqual(t, summary.Collisions, 2)
	assert.FileExists(t, filepath.Join(root, "MyVideo (HQ).mp4"))

	var lastResort int
	for _, e := range log.ofKind(sorter.EventCollision) {
		assert.Equal(t, "MyVideo (HQ).mp4", e.File)
		if e.Phase == sorter.PhaseLastResort {
			lastResort++
		}
	}
	assert.Equal(t, 1, lastResort)
}

func TestRunThresholdDecay(t *testing.T) {
	root := makeTree(t, "Tiger.mp4")
	log := &eventLog{}

	summary, err := newSorter(t, root, records(sorter.Record{Title: "Tigers at Night", Index: "3"}), log).Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "Videos", "3 - Tigers at Night.mp4"))
	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseTitle])
	assert.Equal(t, 3, summary.TitlePasses)

	passes := log.ofKind(sorter.EventPassStarted)
	require.Len(t, passes, 3)
	assert.InDelta(t, 0.60, passes[0].Threshold, 1e-9)
	assert.InDelta(t, 0.55, passes[1].Threshold, 1e-9)
	assert.InDelta(t, 0.50, passes[2].Threshold, 1e-9)

	moved := log.ofKind(sorter.EventMoved)
	require.Len(t, moved, 1)
	assert.InDelta(t, 0.5, moved[0].Match.Score, 1e-9)
}

func TestRunGreedyFirstRecordWinsTies(t *testing.T) {
	root := makeTree(t, "Lion.mp4")
	src := records(
		sorter.Record{Title: "Lion", Index: "1"},
		sorter.Record{Title: "Lion", Index: "2"},
	)

	_, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "Videos", "1 - Lion.mp4"))
	assert.NoFileExists(t, filepath.Join(root, "Videos", "2 - Lion.mp4"))
}

func TestRunLastResortTriesNextRecordOnCollision(t *testing.T) {
	root := makeTree(t, "Elephant Bath.mp4", "Videos/1 - Elephant Bath Time.mp4")
	src := records(
		sorter.Record{Title: "Elephant Bath Time", Index: "1"},
		sorter.Record{Title: "Crocodile River", Index: "2"},
	)

	summary, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseLastResort])
	assert.FileExists(t, filepath.Join(root, "Videos", "2 - Crocodile River.mp4"))

	data, err := os.ReadFile(filepath.Join(root, "Videos", "1 - Elephant Bath Time.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "Videos/1 - Elephant Bath Time.mp4", string(data), "existing destination must not be overwritten")
}

func TestRunLeavesUnrelatedAndUnclassifiedFiles(t *testing.T) {
	root := makeTree(t, "zzz.mp4", "notes.txt")

	summary, err := newSorter(t, root, records(sorter.Record{Title: "Lion", Index: "1"}), nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Moved)
	assert.Equal(t, []string{"zzz.mp4"}, summary.Unmatched)
	assert.Equal(t, []string{"notes.txt"}, summary.Ignored)
	assert.Equal(t, 1, summary.Skipped())
	assert.FileExists(t, filepath.Join(root, "zzz.mp4"))
	assert.FileExists(t, filepath.Join(root, "notes.txt"))
}

func TestRunKeepsExtensionCaseAndSanitizesTitle(t *testing.T) {
	root := makeTree(t, "What Now Yes.MP4")

	_, err := newSorter(t, root, records(sorter.Record{Title: `What? Now: "Yes"`, Index: "4"}), nil).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "Videos", "4 - What Now Yes.MP4"))
}

func TestRunIsIdempotent(t *testing.T) {
	root := makeTree(t, "MyVideo (HQ).mp4", "dQw4w9WgXcQ.jpg", "zzz.mp4", "notes.txt")
	src := records(
		sorter.Record{Title: "MyVideo", Index: "1"},
		sorter.Record{Title: "Thumb", Index: "2", SourceID: "dQw4w9WgXcQ"},
	)

	first, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Moved)
	after := listTree(t, root)

	second, err := newSorter(t, root, src, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Moved)
	assert.Equal(t, after, listTree(t, root))
}

func TestRunIsDeterministic(t *testing.T) {
	files := []string{"Lion Cubs Playing.mp4", "Lion Cubs Play.jpg", "Tiger.mp4", "Zebra.png", "Wild Zebra.mp4"}
	src := records(
		sorter.Record{Title: "Lion Cubs Play", Index: "1"},
		sorter.Record{Title: "Tigers at Night", Index: "2"},
		sorter.Record{Title: "Wild Zebra Run", Index: "3"},
	)

	var trees [][]string
	for i := 0; i < 2; i++ {
		root := makeTree(t, files...)
		_, err := newSorter(t, root, src, nil).Run(context.Background())
		require.NoError(t, err)
		trees = append(trees, listTree(t, root))
	}
	assert.Equal(t, trees[0], trees[1])
}

func TestRunSetupFailureTouchesNothing(t *testing.T) {
	tests := []struct {
		name string
		src  staticSource
	}{
		{"source error", staticSource{err: errors.New(`missing required column "index"`)}},
		{"no records", records()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeTree(t, "MyVideo.mp4")
			before := listTree(t, root)
			log := &eventLog{}

			_, err := newSorter(t, root, tt.src, log).Run(context.Background())
			require.Error(t, err)
			assert.True(t, sorter.IsSetupError(err))
			assert.Equal(t, before, listTree(t, root))
			assert.Len(t, log.ofKind(sorter.EventSetupFailed), 1)
			assert.Empty(t, log.ofKind(sorter.EventRunStarted))
		})
	}
}

func TestRunMissingDirectoryIsSetupError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")
	_, err := newSorter(t, root, records(sorter.Record{Title: "A", Index: "1"}), nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, sorter.IsSetupError(err))
	assert.NoDirExists(t, root)
}

func TestRunDeclinedTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := makeTree(t, "MyVideo.mp4", "notes.txt")
	before := listTree(t, root)

	gate := mocks.NewMockGate(ctrl)
	gate.EXPECT().
		Confirm(gomock.Any(), sorter.ConfirmRequest{Root: root, Source: "videos.csv", Records: 1, Candidates: 1}).
		Return(false, nil)

	local := fsops.NewLocal(nil)
	s, err := sorter.New(sorter.DefaultSettings(root), sorter.Deps{
		Records:  records(sorter.Record{Title: "MyVideo", Index: "1"}),
		Lister:   local,
		Executor: local,
		Gate:     gate,
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, sorter.ErrDeclined)
	assert.Equal(t, before, listTree(t, root))
}

func TestRunMoveFailureKeepsGoing(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := "/library"

	lister := mocks.NewMockLister(ctrl)
	lister.EXPECT().ListFiles(root).Return([]string{"Lion.mp4", "Tiger.mp4"}, nil).AnyTimes()

	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().EnsureDir(gomock.Any()).Return(nil).Times(2)
	exec.EXPECT().Exists(gomock.Any()).Return(false, nil).AnyTimes()
	exec.EXPECT().Move("/library/Lion.mp4", "/library/Videos/1 - Lion.mp4").Return(errors.New("permission denied")).AnyTimes()
	exec.EXPECT().Move("/library/Tiger.mp4", "/library/Videos/2 - Tiger.mp4").Return(nil).AnyTimes()

	log := &eventLog{}
	s, err := sorter.New(sorter.DefaultSettings(root), sorter.Deps{
		Records:  records(sorter.Record{Title: "Lion", Index: "1"}, sorter.Record{Title: "Tiger", Index: "2"}),
		Lister:   lister,
		Executor: exec,
		Gate:     sorter.AutoConfirm(true),
		Sink:     log,
	})
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, summary.Failures)
	failed := log.ofKind(sorter.EventMoveFailed)
	require.NotEmpty(t, failed)
	assert.Equal(t, "Lion.mp4", failed[0].File)
	assert.EqualError(t, failed[0].Err, "permission denied")
	assert.Equal(t, "Tiger.mp4", log.ofKind(sorter.EventMoved)[0].File)
}

// rankedScorer scores a record by the first key its title contains
type rankedScorer map[string]float64

func (r rankedScorer) Score(_, record string) float64 {
	for key, score := range r {
		if strings.Contains(strings.ToLower(record), key) {
			return score
		}
	}
	return 0
}

func TestRunLastResortBelowTitleFloor(t *testing.T) {
	root := makeTree(t, "Lion.mp4")
	settings := sorter.DefaultSettings(root)
	settings.Scorer = rankedScorer{"alpha": 0.03}

	local := fsops.NewLocal(nil)
	log := &eventLog{}
	s, err := sorter.New(settings, sorter.Deps{
		Records:  records(sorter.Record{Title: "Alpha", Index: "1"}),
		Lister:   local,
		Executor: local,
		Gate:     sorter.AutoConfirm(true),
		Sink:     log,
	})
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	// Every title pass runs and rejects the file
	assert.Equal(t, 12, summary.TitlePasses)
	assert.Len(t, log.ofKind(sorter.EventPassStarted), 12)
	assert.Equal(t, 0, summary.MovedByPhase[sorter.PhaseTitle])

	assert.Equal(t, 1, summary.MovedByPhase[sorter.PhaseLastResort])
	assert.FileExists(t, filepath.Join(root, "Videos", "1 - Alpha.mp4"))
	assert.Empty(t, summary.Unmatched)

	moved := log.ofKind(sorter.EventMoved)
	require.Len(t, moved, 1)
	assert.Equal(t, sorter.PhaseLastResort, moved[0].Phase)
	assert.InDelta(t, 0.03, moved[0].Match.Score, 1e-9)
}

func TestRunLastResortStopsAfterMoveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := "/library"

	lister := mocks.NewMockLister(ctrl)
	lister.EXPECT().ListFiles(root).Return([]string{"Lion.mp4"}, nil).AnyTimes()

	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().EnsureDir(gomock.Any()).Return(nil).Times(2)
	exec.EXPECT().Exists(gomock.Any()).Return(false, nil).AnyTimes()
	// Only the best-ranked record is tried; a call for "2 - Beta" fails the test
	exec.EXPECT().Move("/library/Lion.mp4", "/library/Videos/1 - Alpha.mp4").Return(errors.New("read-only file system")).Times(1)

	settings := sorter.DefaultSettings(root)
	settings.Scorer = rankedScorer{"alpha": 0.04, "beta": 0.03}

	log := &eventLog{}
	s, err := sorter.New(settings, sorter.Deps{
		Records:  records(sorter.Record{Title: "Alpha", Index: "1"}, sorter.Record{Title: "Beta", Index: "2"}),
		Lister:   lister,
		Executor: exec,
		Gate:     sorter.AutoConfirm(true),
		Sink:     log,
	})
	require.NoError(t, err)

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 0, summary.Moved)
	assert.Equal(t, []string{"Lion.mp4"}, summary.Unmatched)

	failed := log.ofKind(sorter.EventMoveFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, sorter.PhaseLastResort, failed[0].Phase)
	assert.Equal(t, "Lion.mp4", failed[0].File)
	assert.EqualError(t, failed[0].Err, "read-only file system")
}

func TestRunCancelledContext(t *testing.T) {
	root := makeTree(t, "Lion.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := &eventLog{}
	summary, err := newSorter(t, root, records(sorter.Record{Title: "Lion", Index: "1"}), log).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Moved)
	assert.Equal(t, []string{"Lion.mp4"}, summary.Unmatched)
	assert.FileExists(t, filepath.Join(root, "Lion.mp4"))
	assert.Len(t, log.ofKind(sorter.EventRunComplete), 1)
}

func TestRunEventOrder(t *testing.T) {
	root := makeTree(t, "Lion.mp4")
	log := &eventLog{}

	_, err := newSorter(t, root, records(sorter.Record{Title: "Lion", Index: "1"}), log).Run(context.Background())
	require.NoError(t, err)

	var kinds []sorter.EventKind
	for _, e := range log.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []sorter.EventKind{
		sorter.EventInfo,
		sorter.EventRecordsLoaded,
		sorter.EventRunStarted,
		sorter.EventPhaseStarted,
		sorter.EventPhaseSkipped,
		sorter.EventPhaseStarted,
		sorter.EventPassStarted,
		sorter.EventMatch,
		sorter.EventMoved,
		sorter.EventPassComplete,
		sorter.EventPhaseComplete,
		sorter.EventPhaseStarted,
		sorter.EventPhaseSkipped,
		sorter.EventRunComplete,
	}, kinds)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := sorter.New(sorter.DefaultSettings("/x"), sorter.Deps{})
	assert.Error(t, err)

	local := fsops.NewLocal(nil)
	_, err = sorter.New(sorter.Settings{}, sorter.Deps{
		Records: records(), Lister: local, Executor: local, Gate: sorter.AutoConfirm(true),
	})
	assert.Error(t, err)
}
