package sorter

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
)

// Characters that are illegal in filenames on at least one supported platform
var illegalFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Sanitize removes characters disallowed in filenames from a title.
func Sanitize(title string) string {
	return illegalFilenameChars.ReplaceAllString(title, "")
}

// Outcome is the result class of a planning attempt
type Outcome int

const (
	PlanMoved Outcome = iota
	PlanCollision
	PlanFailed
	PlanDeclined
)

func (o Outcome) String() string {
	switch o {
	case PlanMoved:
		return "moved"
	case PlanCollision:
		return "collision"
	case PlanFailed:
		return "failed"
	default:
		return "declined"
	}
}

// PlanResult is returned by Planner.Apply
type PlanResult struct {
	Outcome     Outcome
	Destination string // absolute
	Err         error  // set for PlanFailed
}

// Planner turns an accepted match into a collision-safe move
type Planner struct {
	roots map[Category]string
	exec  Executor
}

// NewPlanner builds a planner writing videos under videoRoot and thumbnails
// under thumbnailRoot.
func NewPlanner(videoRoot, thumbnailRoot string, exec Executor) *Planner {
	return &Planner{
		roots: map[Category]string{
			Video:     videoRoot,
			Thumbnail: thumbnailRoot,
		},
		exec: exec,
	}
}

// Destination computes "<root>/<index> - <title><ext>" for the candidate's
// category. It reports false for unclassified candidates.
func (p *Planner) Destination(c Candidate, r Record) (string, bool) {
	root, ok := p.roots[c.Category]
	if !ok {
		return "", false
	}
	name := fmt.Sprintf("%s - %s%s", r.Index, Sanitize(r.Title), c.Ext)
	return filepath.Join(root, name), true
}

// Apply plans and executes the move for an accepted match. A destination that
// already exists is a collision and nothing is touched.
func (p *Planner) Apply(c Candidate, m MatchResult) PlanResult {
	dst, ok := p.Destination(c, m.Record)
	if !ok {
		return PlanResult{Outcome: PlanDeclined}
	}

	exists, err := p.exec.Exists(dst)
	if err != nil {
		return PlanResult{Outcome: PlanFailed, Destination: dst, Err: fmt.Errorf("check destination: %w", err)}
	}
	if exists {
		return PlanResult{Outcome: PlanCollision, Destination: dst}
	}

	if err := p.exec.Move(c.Path, dst); err != nil {
		// Lost a race against a no-replace rename: still a collision
		if errors.Is(err, fs.ErrExist) {
			return PlanResult{Outcome: PlanCollision, Destination: dst}
		}
		return PlanResult{Outcome: PlanFailed, Destination: dst, Err: err}
	}

	return PlanResult{Outcome: PlanMoved, Destination: dst}
}
