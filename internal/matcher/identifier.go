package matcher

import (
	"path/filepath"
	"regexp"
)

// IdentifierLength is the fixed length of a source identifier token.
const IdentifierLength = 11

// Pre-compiled identifier patterns
var (
	// Locator markers followed by the token. A bare 11-character run is never
	// accepted from free text because arbitrary filenames are full of them.
	locatorRegex = regexp.MustCompile(`(?:watch\?v=|youtu\.be/|embed/|shorts/)([A-Za-z0-9_-]{11})`)

	// Downloader style "Title [dQw4w9WgXcQ].mp4"
	bracketRegex = regexp.MustCompile(`\[([A-Za-z0-9_-]{11})\]`)

	// Filename stem consisting of exactly one token
	bareTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractIdentifier returns the token following the first locator marker in text
// (watch?v=, youtu.be/, embed/, shorts/).
func ExtractIdentifier(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	m := locatorRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// ExtractFilenameIdentifier extracts an identifier from a candidate filename.
// Order: locator markers, a bracketed token, then a stem that is exactly one token.
func ExtractFilenameIdentifier(name string) (string, bool) {
	if id, ok := ExtractIdentifier(name); ok {
		return id, true
	}

	if m := bracketRegex.FindStringSubmatch(name); len(m) == 2 {
		return m[1], true
	}

	stem := name[:len(name)-len(filepath.Ext(name))]
	if bareTokenRegex.MatchString(stem) {
		return stem, true
	}

	return "", false
}
