// Package metadata loads the canonical records a run reconciles against.
package metadata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/Nomadcxx/smartsorter/internal/matcher"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Default header names, matched case-insensitively
const (
	DefaultTitleColumn   = "title"
	DefaultIndexColumn   = "index"
	DefaultLocatorColumn = "url"
)

// MissingColumnError reports a required header absent from the file
type MissingColumnError struct {
	Path   string
	Column string
}

func (e *MissingColumnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("missing required column %q (case-insensitive)", e.Column)
	}
	return fmt.Sprintf("%s: missing required column %q (case-insensitive)", e.Path, e.Column)
}

// CSVSource reads records from a CSV file with a header row.
type CSVSource struct {
	Path          string
	TitleColumn   string
	IndexColumn   string
	LocatorColumn string // optional; empty disables identifier extraction
}

// NewCSVSource returns a source using the default column names.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{
		Path:          path,
		TitleColumn:   DefaultTitleColumn,
		IndexColumn:   DefaultIndexColumn,
		LocatorColumn: DefaultLocatorColumn,
	}
}

// Load implements sorter.RecordSource.
func (s *CSVSource) Load(ctx context.Context) (sorter.RecordSet, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sorter.RecordSet{}, fmt.Errorf("metadata file not found: %w", err)
		}
		return sorter.RecordSet{}, fmt.Errorf("could not read metadata file: %w", err)
	}
	defer f.Close()

	set, err := Parse(ctx, f, s.columns())
	if err != nil {
		var mc *MissingColumnError
		if errors.As(err, &mc) {
			mc.Path = s.Path
		}
		return sorter.RecordSet{}, err
	}
	set.Source = s.Path
	return set, nil
}

func (s *CSVSource) columns() Columns {
	c := Columns{Title: s.TitleColumn, Index: s.IndexColumn, Locator: s.LocatorColumn}
	if c.Title == "" {
		c.Title = DefaultTitleColumn
	}
	if c.Index == "" {
		c.Index = DefaultIndexColumn
	}
	return c
}

// Columns names the headers Parse looks for
type Columns struct {
	Title   string
	Index   string
	Locator string
}

// Parse reads CSV records from r. Input is UTF-8 with an optional byte order
// mark; ill-formed bytes are dropped. Title and index values are kept verbatim.
func Parse(ctx context.Context, r io.Reader, cols Columns) (sorter.RecordSet, error) {
	decoded := transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == '\uFFFD' })),
	))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return sorter.RecordSet{}, &MissingColumnError{Column: cols.Title}
	}
	if err != nil {
		return sorter.RecordSet{}, fmt.Errorf("could not read metadata header: %w", err)
	}

	titleIdx := findColumn(header, cols.Title)
	if titleIdx < 0 {
		return sorter.RecordSet{}, &MissingColumnError{Column: cols.Title}
	}
	indexIdx := findColumn(header, cols.Index)
	if indexIdx < 0 {
		return sorter.RecordSet{}, &MissingColumnError{Column: cols.Index}
	}
	locatorIdx := -1
	if cols.Locator != "" {
		locatorIdx = findColumn(header, cols.Locator)
	}

	set := sorter.RecordSet{HasLocator: locatorIdx >= 0}
	for {
		if err := ctx.Err(); err != nil {
			return sorter.RecordSet{}, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sorter.RecordSet{}, fmt.Errorf("could not read metadata row: %w", err)
		}

		rec := sorter.Record{
			Title: field(row, titleIdx),
			Index: field(row, indexIdx),
		}
		if locator := field(row, locatorIdx); locator != "" {
			if id, ok := matcher.ExtractIdentifier(locator); ok {
				rec.SourceID = id
			}
		}
		set.Records = append(set.Records, rec)
	}

	return set, nil
}

// findColumn returns the first header equal to name ignoring case, or -1.
func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
