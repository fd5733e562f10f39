package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Nomadcxx/smartsorter/internal/matcher"
	"github.com/Nomadcxx/smartsorter/internal/metadata"
	"github.com/Nomadcxx/smartsorter/internal/sorter"
)

// Config holds all smartsorter configuration
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Matching MatchingConfig `toml:"matching"`
	Metadata MetadataConfig `toml:"metadata"`
	Output   OutputConfig   `toml:"output"`
}

// LibraryConfig defines destination folders and file classes
type LibraryConfig struct {
	VideoDir            string   `toml:"video_dir"`     // relative to the sorted directory unless absolute
	ThumbnailDir        string   `toml:"thumbnail_dir"` // relative to the sorted directory unless absolute
	VideoExtensions     []string `toml:"video_extensions"`
	ThumbnailExtensions []string `toml:"thumbnail_extensions"`
}

// MatchingConfig tunes the three matching phases
type MatchingConfig struct {
	Algorithm           string   `toml:"algorithm"` // ratcliff, jaro-winkler, levenshtein
	IdentifierThreshold float64  `toml:"identifier_threshold"`
	TitleStartThreshold float64  `toml:"title_start_threshold"`
	TitleMinThreshold   float64  `toml:"title_min_threshold"`
	TitleStep           float64  `toml:"title_step"`
	LastResortFloor     float64  `toml:"last_resort_floor"`
	NoisePatterns       []string `toml:"noise_patterns"` // regular expressions, case-insensitive
	Boilerplate         []string `toml:"boilerplate"`    // literal phrases, case-insensitive
	SeparatorAliases    []string `toml:"separator_aliases"`
	UnicodeNFC          bool     `toml:"unicode_nfc"`
}

// MetadataConfig names the CSV headers (matched case-insensitively)
type MetadataConfig struct {
	TitleColumn   string `toml:"title_column"`
	IndexColumn   string `toml:"index_column"`
	LocatorColumn string `toml:"locator_column"`
}

// OutputConfig controls reports and logs
type OutputConfig struct {
	ReportDir    string `toml:"report_dir"`
	OperationLog string `toml:"operation_log"`
	LogLevel     string `toml:"log_level"` // debug, info, warn, error
	LogFile      string `toml:"log_file"`  // empty disables file logging
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	d := sorter.DefaultSettings("")
	dataDir := DataDir()

	return &Config{
		Library: LibraryConfig{
			VideoDir:            d.VideoDir,
			ThumbnailDir:        d.ThumbnailDir,
			VideoExtensions:     d.VideoExtensions,
			ThumbnailExtensions: d.ThumbnailExtensions,
		},
		Matching: MatchingConfig{
			Algorithm:           matcher.AlgorithmRatcliff,
			IdentifierThreshold: d.IdentifierThreshold,
			TitleStartThreshold: d.TitleStartThreshold,
			TitleMinThreshold:   d.TitleMinThreshold,
			TitleStep:           d.TitleStep,
			LastResortFloor:     d.LastResortFloor,
			NoisePatterns:       append([]string(nil), matcher.DefaultNoisePatterns...),
			Boilerplate:         append([]string(nil), matcher.DefaultBoilerplate...),
			SeparatorAliases:    append([]string(nil), matcher.DefaultSeparatorAliases...),
			UnicodeNFC:          true,
		},
		Metadata: MetadataConfig{
			TitleColumn:   metadata.DefaultTitleColumn,
			IndexColumn:   metadata.DefaultIndexColumn,
			LocatorColumn: metadata.DefaultLocatorColumn,
		},
		Output: OutputConfig{
			ReportDir:    filepath.Join(dataDir, "reports"),
			OperationLog: filepath.Join(dataDir, "operations.log"),
			LogLevel:     "info",
		},
	}
}

// DataDir is where reports and the operation log live by default
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "smartsorter")
	}
	return filepath.Join(home, ".local/share/smartsorter")
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	return filepath.Join(configDir, "smartsorter", "config.toml"), nil
}

// Load reads the default config file, creating it with defaults if it doesn't exist
func Load() (*Config, error) {
	configFile, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configFile)
}

// LoadFrom reads the config at path, creating it with defaults if it doesn't
// exist. Keys missing from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveTo(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the default location
func Save(cfg *Config) error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, configFile)
}

// SaveTo writes the config to path
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	lib := c.Library
	if len(lib.VideoExtensions) == 0 || len(lib.ThumbnailExtensions) == 0 {
		return fmt.Errorf("video_extensions and thumbnail_extensions must not be empty")
	}

	seen := make(map[string]string)
	for class, exts := range map[string][]string{"video": lib.VideoExtensions, "thumbnail": lib.ThumbnailExtensions} {
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
				return fmt.Errorf("invalid %s extension %q (must start with a dot)", class, ext)
			}
			key := strings.ToLower(ext)
			if other, dup := seen[key]; dup && other != class {
				return fmt.Errorf("extension %s is listed as both video and thumbnail", ext)
			}
			seen[key] = class
		}
	}

	if strings.TrimSpace(lib.VideoDir) == "" || strings.TrimSpace(lib.ThumbnailDir) == "" {
		return fmt.Errorf("video_dir and thumbnail_dir must not be empty")
	}

	m := c.Matching
	if _, err := matcher.NewScorer(m.Algorithm); err != nil {
		return err
	}

	thresholds := map[string]float64{
		"identifier_threshold":  m.IdentifierThreshold,
		"title_start_threshold": m.TitleStartThreshold,
		"title_min_threshold":   m.TitleMinThreshold,
		"title_step":            m.TitleStep,
		"last_resort_floor":     m.LastResortFloor,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %.2f", name, v)
		}
	}
	if m.TitleStep < sorter.MinTitleStep {
		return fmt.Errorf("title_step must be at least %g, got %g", sorter.MinTitleStep, m.TitleStep)
	}
	if m.TitleMinThreshold < sorter.TitleFloor {
		return fmt.Errorf("title_min_threshold must be at least %.2f, got %.2f", sorter.TitleFloor, m.TitleMinThreshold)
	}
	if m.TitleMinThreshold > m.TitleStartThreshold {
		return fmt.Errorf("title_min_threshold (%.2f) exceeds title_start_threshold (%.2f)", m.TitleMinThreshold, m.TitleStartThreshold)
	}

	for _, p := range m.NoisePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
	}

	if strings.TrimSpace(c.Metadata.TitleColumn) == "" || strings.TrimSpace(c.Metadata.IndexColumn) == "" {
		return fmt.Errorf("title_column and index_column must not be empty")
	}

	if !validLogLevels[c.Output.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Output.LogLevel)
	}

	return nil
}

// Settings converts the config into the engine's immutable settings for root.
func (c *Config) Settings(root string) (sorter.Settings, error) {
	normalizer, err := matcher.NewNormalizer(matcher.NormalizerOptions{
		NoisePatterns:    c.Matching.NoisePatterns,
		Boilerplate:      c.Matching.Boilerplate,
		SeparatorAliases: c.Matching.SeparatorAliases,
		UnicodeNFC:       c.Matching.UnicodeNFC,
	})
	if err != nil {
		return sorter.Settings{}, err
	}

	scorer, err := matcher.NewScorer(c.Matching.Algorithm)
	if err != nil {
		return sorter.Settings{}, err
	}

	s := sorter.Settings{
		Root:                root,
		VideoDir:            c.Library.VideoDir,
		ThumbnailDir:        c.Library.ThumbnailDir,
		VideoExtensions:     append([]string(nil), c.Library.VideoExtensions...),
		ThumbnailExtensions: append([]string(nil), c.Library.ThumbnailExtensions...),
		IdentifierThreshold: c.Matching.IdentifierThreshold,
		TitleStartThreshold: c.Matching.TitleStartThreshold,
		TitleMinThreshold:   c.Matching.TitleMinThreshold,
		TitleStep:           c.Matching.TitleStep,
		LastResortFloor:     c.Matching.LastResortFloor,
		Normalizer:          normalizer,
		Scorer:              scorer,
	}
	return s, s.Validate()
}

// Source returns the metadata source for the CSV at path using the configured columns.
func (c *Config) Source(path string) *metadata.CSVSource {
	return &metadata.CSVSource{
		Path:          path,
		TitleColumn:   c.Metadata.TitleColumn,
		IndexColumn:   c.Metadata.IndexColumn,
		LocatorColumn: c.Metadata.LocatorColumn,
	}
}

// AddNoisePattern adds a filename noise pattern
func (c *Config) AddNoisePattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid noise pattern: %w", err)
	}

	for _, existing := range c.Matching.NoisePatterns {
		if existing == pattern {
			return fmt.Errorf("pattern already configured: %s", pattern)
		}
	}

	c.Matching.NoisePatterns = append(c.Matching.NoisePatterns, pattern)
	return nil
}

// RemoveNoisePattern removes a filename noise pattern
func (c *Config) RemoveNoisePattern(pattern string) error {
	for i, existing := range c.Matching.NoisePatterns {
		if existing == pattern {
			c.Matching.NoisePatterns = append(c.Matching.NoisePatterns[:i], c.Matching.NoisePatterns[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pattern not found: %s", pattern)
}
