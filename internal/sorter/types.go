package sorter

//go:generate mockgen -source=types.go -destination=mocks/mock_sorter.go -package=mocks

import (
	"context"
	"fmt"
	"time"
)

// Category is the destination class of a candidate file
type Category int

const (
	Unclassified Category = iota
	Video
	Thumbnail
)

func (c Category) String() string {
	switch c {
	case Video:
		return "video"
	case Thumbnail:
		return "thumbnail"
	default:
		return "unclassified"
	}
}

// Record is one canonical metadata entry. Records are read-only for a run.
type Record struct {
	Title    string `json:"title"`
	Index    string `json:"index"`
	SourceID string `json:"source_id,omitempty"` // empty when the row had no usable locator
}

// RecordSet is what a RecordSource produces
type RecordSet struct {
	Source     string
	Records    []Record
	HasLocator bool // the source carried a locator column
}

// Candidate is a file in the target directory eligible for matching
type Candidate struct {
	Name     string
	Path     string
	Ext      string // original case, with leading dot
	Category Category
}

// MatchType tells which strategy accepted a match
type MatchType int

const (
	ExactIdentifier MatchType = iota
	FuzzyIdentifier
	Title
)

func (t MatchType) String() string {
	switch t {
	case ExactIdentifier:
		return "Exact ID"
	case FuzzyIdentifier:
		return "Fuzzy ID"
	case Title:
		return "Title"
	default:
		return fmt.Sprintf("MatchType(%d)", int(t))
	}
}

// MatchResult is an accepted pairing of a candidate with a record
type MatchResult struct {
	Record Record
	Score  float64
	Type   MatchType
}

// Phase identifies one of the three matching strategies
type Phase int

const (
	PhaseIdentifier Phase = iota
	PhaseTitle
	PhaseLastResort
)

func (p Phase) String() string {
	switch p {
	case PhaseIdentifier:
		return "identifier"
	case PhaseTitle:
		return "title"
	case PhaseLastResort:
		return "last-resort"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Summary is the outcome of a run
type Summary struct {
	Moved          int
	MovedByPhase   [3]int
	Collisions     int
	Failures       int
	TitlePasses    int
	Unmatched      []string
	Ignored        []string
	Duration       time.Duration
	Records        int
	WithIdentifier int // records carrying a source identifier
	InitialFiles   int
}

// Skipped is the number of classified files left unmatched
func (s Summary) Skipped() int {
	return len(s.Unmatched)
}

// RecordSource loads the metadata records for a run
type RecordSource interface {
	Load(ctx context.Context) (RecordSet, error)
}

// Lister returns the names of the regular files directly inside dir
type Lister interface {
	ListFiles(dir string) ([]string, error)
}

// Executor performs filesystem mutations on behalf of the planner
type Executor interface {
	Exists(path string) (bool, error)
	Move(src, dst string) error
	EnsureDir(dir string) error
}

// ConfirmRequest describes the run awaiting confirmation
type ConfirmRequest struct {
	Root       string
	Source     string
	Records    int
	Candidates int
}

// Gate is the yes/no checkpoint before any destructive step
type Gate interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// AutoConfirm is a Gate that always answers the same
type AutoConfirm bool

// Confirm implements Gate.
func (a AutoConfirm) Confirm(context.Context, ConfirmRequest) (bool, error) {
	return bool(a), nil
}
