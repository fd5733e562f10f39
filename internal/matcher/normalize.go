package matcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultNoisePatterns are the encoding and quality tags removed from filenames.
// Applied case-insensitively in order.
var DefaultNoisePatterns = []string{
	`\s*\(\d{3,4}p_\d{2,3}fps_[A-Za-z0-9]+-\d+kbit_[A-Za-z0-9]+\)`, // (1920p_30fps_H264-128kbit_AAC)
	`\s*\(BQ\)`,
	`\s*\(HQ\)`,
	`\s*¦\s*#shorts`,
	`\s*#shorts`,
}

// DefaultBoilerplate holds literal phrases stripped from every filename.
var DefaultBoilerplate = []string{
	"Leo the Wildlife Ranger",
}

// DefaultSeparatorAliases are decorative separators collapsed to a plain '|'.
var DefaultSeparatorAliases = []string{"¦"}

// NormalizerOptions configures a Normalizer.
type NormalizerOptions struct {
	NoisePatterns    []string
	Boilerplate      []string
	SeparatorAliases []string
	UnicodeNFC       bool
}

// Normalizer turns filenames and record titles into comparable title fragments.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	patterns   []*regexp.Regexp
	separators []string
	nfc        bool
}

// NewNormalizer compiles the configured patterns. Regular expressions come first,
// literal boilerplate after them, both case-insensitive.
func NewNormalizer(opts NormalizerOptions) (*Normalizer, error) {
	n := &Normalizer{
		patterns:   make([]*regexp.Regexp, 0, len(opts.NoisePatterns)+len(opts.Boilerplate)),
		separators: append([]string(nil), opts.SeparatorAliases...),
		nfc:        opts.UnicodeNFC,
	}

	for _, p := range opts.NoisePatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		n.patterns = append(n.patterns, re)
	}

	for _, phrase := range opts.Boilerplate {
		if phrase == "" {
			continue
		}
		n.patterns = append(n.patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)))
	}

	return n, nil
}

// DefaultNormalizer returns a Normalizer using the built-in pattern set.
func DefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(NormalizerOptions{
		NoisePatterns:    DefaultNoisePatterns,
		Boilerplate:      DefaultBoilerplate,
		SeparatorAliases: DefaultSeparatorAliases,
		UnicodeNFC:       true,
	})
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize strips the extension and every noise pattern from a filename.
// Example: "MyVideo (1920p_30fps_H264-128kbit_AAC).mp4" -> "MyVideo"
func (n *Normalizer) Normalize(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if n.nfc {
		name = norm.NFC.String(name)
	}

	for _, re := range n.patterns {
		name = re.ReplaceAllString(name, "")
	}

	for _, sep := range n.separators {
		name = strings.ReplaceAll(name, sep, "|")
	}

	return strings.TrimSpace(name)
}

// NormalizeTitle prepares a record title for comparison: pipes removed, trimmed.
func (n *Normalizer) NormalizeTitle(title string) string {
	if n.nfc {
		title = norm.NFC.String(title)
	}
	return strings.TrimSpace(strings.ReplaceAll(title, "|", ""))
}
