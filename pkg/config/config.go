// Package config loads and validates augur configuration from TOML, YAML,
// or JSON files layered over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid marks configuration that must abort the run before any file is
// scanned.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for augur.
type Config struct {
	Duplicates DuplicatesConfig `koanf:"duplicates" toml:"duplicates"`
	Nesting    NestingConfig    `koanf:"nesting" toml:"nesting"`
	Magic      MagicConfig      `koanf:"magic_numbers" toml:"magic_numbers"`
	Classes    ClassesConfig    `koanf:"classes" toml:"classes"`
	Exclude    ExcludeConfig    `koanf:"exclude" toml:"exclude"`
	Cache      CacheConfig      `koanf:"cache" toml:"cache"`
	Output     OutputConfig     `koanf:"output" toml:"output"`

	// Workers is the analysis pool size; 0 means available parallelism.
	Workers int `koanf:"workers" toml:"workers"`
	// Strict makes warnings (skipped files) fail the run alongside
	// violations.
	Strict bool `koanf:"strict" toml:"strict"`
}

// DuplicatesConfig controls the duplicate-code engine.
type DuplicatesConfig struct {
	MinLines             int   `koanf:"min_lines" toml:"min_lines"`
	MinTokens            int   `koanf:"min_tokens" toml:"min_tokens"`
	NormalizeIdentifiers bool  `koanf:"normalize_identifiers" toml:"normalize_identifiers"`
	NormalizeLiterals    bool  `koanf:"normalize_literals" toml:"normalize_literals"`
	MaxFileSize          int64 `koanf:"max_file_size" toml:"max_file_size"`
}

// NestingConfig controls the nesting-depth rule.
type NestingConfig struct {
	MaxDepth int `koanf:"max_depth" toml:"max_depth"`
}

// MagicConfig controls the magic-number rule.
type MagicConfig struct {
	// Allowed literals that never count as magic.
	Allowed []string `koanf:"allowed" toml:"allowed"`
}

// ClassesConfig controls the oversized-class rule.
type ClassesConfig struct {
	MaxMethods int `koanf:"max_methods" toml:"max_methods"`
	MaxLines   int `koanf:"max_lines" toml:"max_lines"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls the duplicate engine's persistent cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Duplicates: DuplicatesConfig{
			MinLines:  6,
			MinTokens: 40,
		},
		Nesting: NestingConfig{MaxDepth: 4},
		Magic: MagicConfig{
			Allowed: []string{"0", "1", "-1", "2", "10", "100", "0.5", "1.0"},
		},
		Classes: ClassesConfig{
			MaxMethods: 20,
			MaxLines:   400,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".augur",
				"dist",
				"build",
				"__pycache__",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(".augur", "cache"),
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file, validating it against the embedded
// schema before unmarshalling.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		parser = ktoml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault tries standard locations, falling back to defaults. A
// present-but-invalid config is an error, never silently ignored.
func LoadOrDefault() (*Config, error) {
	names := []string{
		"augur.toml", "augur.yaml", "augur.yml", "augur.json",
		".augur.toml", ".augur.yaml", ".augur.yml", ".augur.json",
	}
	for _, dir := range []string{".", ".augur"} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}
	}
	return DefaultConfig(), nil
}

// Validate rejects threshold values that make no sense. These are fatal:
// they abort before any file is scanned.
func (c *Config) Validate() error {
	if c.Duplicates.MinLines <= 0 {
		return fmt.Errorf("%w: duplicates.min_lines must be positive, got %d", ErrInvalid, c.Duplicates.MinLines)
	}
	if c.Duplicates.MinTokens <= 0 {
		return fmt.Errorf("%w: duplicates.min_tokens must be positive, got %d", ErrInvalid, c.Duplicates.MinTokens)
	}
	if c.Nesting.MaxDepth <= 0 {
		return fmt.Errorf("%w: nesting.max_depth must be positive, got %d", ErrInvalid, c.Nesting.MaxDepth)
	}
	if c.Classes.MaxMethods <= 0 || c.Classes.MaxLines <= 0 {
		return fmt.Errorf("%w: classes thresholds must be positive", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
