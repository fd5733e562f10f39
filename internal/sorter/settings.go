package sorter

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Nomadcxx/smartsorter/internal/matcher"
)

// Phase 1 limits. Thresholds live on a basis-point grid, so a step under
// MinTitleStep would round to zero.
const (
	TitleFloor   = 0.05
	MinTitleStep = 0.0001
)

// Settings is the immutable configuration of a run
type Settings struct {
	Root         string
	VideoDir     string // relative to Root unless absolute
	ThumbnailDir string

	VideoExtensions     []string
	ThumbnailExtensions []string

	IdentifierThreshold float64
	TitleStartThreshold float64
	TitleMinThreshold   float64
	TitleStep           float64
	LastResortFloor     float64

	Normalizer *matcher.Normalizer
	Scorer     matcher.Scorer
}

// DefaultSettings returns the stock thresholds and extension sets for root.
func DefaultSettings(root string) Settings {
	return Settings{
		Root:                root,
		VideoDir:            "Videos",
		ThumbnailDir:        "Thumbnails",
		VideoExtensions:     []string{".mp4", ".mkv", ".mov", ".avi", ".wmv", ".webm"},
		ThumbnailExtensions: []string{".jpg", ".jpeg", ".png", ".webp", ".gif"},
		IdentifierThreshold: 0.8,
		TitleStartThreshold: 0.6,
		TitleMinThreshold:   0.05,
		TitleStep:           0.05,
		LastResortFloor:     0.01,
		Normalizer:          matcher.DefaultNormalizer(),
		Scorer:              matcher.Ratcliff{},
	}
}

// Validate checks the settings before a run starts
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Root) == "" {
		return fmt.Errorf("root directory is required")
	}
	if len(s.VideoExtensions) == 0 || len(s.ThumbnailExtensions) == 0 {
		return fmt.Errorf("both video and thumbnail extension sets must be non-empty")
	}
	if s.TitleStep < MinTitleStep {
		return fmt.Errorf("title step must be at least %g, got %g", MinTitleStep, s.TitleStep)
	}
	if toBasisPoints(s.TitleMinThreshold) < toBasisPoints(TitleFloor) {
		return fmt.Errorf("title min threshold %.2f is below the floor of %.2f", s.TitleMinThreshold, TitleFloor)
	}
	if s.TitleMinThreshold > s.TitleStartThreshold {
		return fmt.Errorf("title min threshold %.2f exceeds start threshold %.2f", s.TitleMinThreshold, s.TitleStartThreshold)
	}
	if s.Normalizer == nil || s.Scorer == nil {
		return fmt.Errorf("normalizer and scorer are required")
	}
	return nil
}

// TitleThresholds returns the Phase 1 thresholds, strictly decreasing, none
// below TitleMinThreshold. Values sit on a basis-point grid so accumulated
// float error never adds or drops a pass.
func (s Settings) TitleThresholds() []float64 {
	start := toBasisPoints(s.TitleStartThreshold)
	floor := toBasisPoints(s.TitleMinThreshold)
	step := toBasisPoints(s.TitleStep)
	if step <= 0 {
		return nil
	}

	var out []float64
	for bp := start; bp >= floor; bp -= step {
		out = append(out, float64(bp)/10000)
	}
	return out
}

func toBasisPoints(v float64) int {
	return int(math.Round(v * 10000))
}

// categoryRoot resolves a configured directory against Root
func (s Settings) categoryRoot(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(s.Root, dir)
}

// VideoRoot is the absolute destination directory for videos
func (s Settings) VideoRoot() string {
	return s.categoryRoot(s.VideoDir)
}

// ThumbnailRoot is the absolute destination directory for thumbnails
func (s Settings) ThumbnailRoot() string {
	return s.categoryRoot(s.ThumbnailDir)
}

// Classify returns the category for a file extension (any case).
func (s Settings) Classify(ext string) Category {
	ext = strings.ToLower(ext)
	for _, v := range s.VideoExtensions {
		if strings.ToLower(v) == ext {
			return Video
		}
	}
	for _, t := range s.ThumbnailExtensions {
		if strings.ToLower(t) == ext {
			return Thumbnail
		}
	}
	return Unclassified
}
