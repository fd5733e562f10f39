package sorter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeExec is an in-memory Executor
type fakeExec struct {
	existing  map[string]bool
	existsErr error
	moveErr   error
	moves     [][2]string
}

func (f *fakeExec) Exists(path string) (bool, error) { return f.existing[path], f.existsErr }
func (f *fakeExec) EnsureDir(string) error           { return nil }
func (f *fakeExec) Move(src, dst string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, [2]string{src, dst})
	return nil
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Plain Title", "Plain Title"},
		{`What? Now: "Yes"`, "What Now Yes"},
		{`a\b/c*d<e>f|g`, "abcdefg"},
		{"Café ¦ Night", "Café ¦ Night"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.input); got != tt.expected {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPlannerDestination(t *testing.T) {
	p := NewPlanner("/lib/Videos", "/lib/Thumbnails", &fakeExec{})
	rec := Record{Title: "Lion: Cubs?", Index: "12"}

	tests := []struct {
		name     string
		cand     Candidate
		expected string
		ok       bool
	}{
		{"video", Candidate{Name: "a.mp4", Ext: ".mp4", Category: Video}, "/lib/Videos/12 - Lion Cubs.mp4", true},
		{"thumbnail keeps ext case", Candidate{Name: "a.JPG", Ext: ".JPG", Category: Thumbnail}, "/lib/Thumbnails/12 - Lion Cubs.JPG", true},
		{"unclassified", Candidate{Name: "a.txt", Ext: ".txt", Category: Unclassified}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Destination(tt.cand, rec)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, filepath.FromSlash(tt.expected), got)
		})
	}
}

func TestPlannerApply(t *testing.T) {
	cand := Candidate{Name: "in.mp4", Path: "/lib/in.mp4", Ext: ".mp4", Category: Video}
	match := MatchResult{Record: Record{Title: "Lion", Index: "1"}, Score: 1, Type: Title}
	dst := filepath.FromSlash("/lib/Videos/1 - Lion.mp4")

	t.Run("moved", func(t *testing.T) {
		exec := &fakeExec{}
		res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(cand, match)
		assert.Equal(t, PlanMoved, res.Outcome)
		assert.Equal(t, dst, res.Destination)
		assert.Equal(t, [][2]string{{"/lib/in.mp4", dst}}, exec.moves)
	})

	t.Run("existing destination is a collision", func(t *testing.T) {
		exec := &fakeExec{existing: map[string]bool{dst: true}}
		res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(cand, match)
		assert.Equal(t, PlanCollision, res.Outcome)
		assert.Empty(t, exec.moves)
	})

	t.Run("lost no-replace race is a collision", func(t *testing.T) {
		exec := &fakeExec{moveErr: &os.LinkError{Op: "rename", Old: cand.Path, New: dst, Err: fs.ErrExist}}
		res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(cand, match)
		assert.Equal(t, PlanCollision, res.Outcome)
		assert.NoError(t, res.Err)
	})

	t.Run("move error is a failure", func(t *testing.T) {
		exec := &fakeExec{moveErr: errors.New("read-only file system")}
		res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(cand, match)
		assert.Equal(t, PlanFailed, res.Outcome)
		assert.EqualError(t, res.Err, "read-only file system")
	})

	t.Run("unclassified is declined", func(t *testing.T) {
		exec := &fakeExec{}
		c := cand
		c.Category = Unclassified
		res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(c, match)
		assert.Equal(t, PlanDeclined, res.Outcome)
		assert.Empty(t, exec.moves)
	})
}

func TestPlannerApplyExistsError(t *testing.T) {
	exec := &fakeExec{existsErr: errors.New("permission denied")}

	res := NewPlanner("/lib/Videos", "/lib/Thumbnails", exec).Apply(
		Candidate{Name: "in.mp4", Path: "/lib/in.mp4", Ext: ".mp4", Category: Video},
		MatchResult{Record: Record{Title: "Lion", Index: "1"}},
	)
	assert.Equal(t, PlanFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "check destination")
	assert.Empty(t, exec.moves)
}
