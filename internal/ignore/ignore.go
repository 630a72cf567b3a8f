// Package ignore resolves multi-level suppression — repo-wide patterns,
// whole files, marker-delimited blocks, and single lines — into per-file
// line sets consumed by analyzers before final violation checks.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"gopkg.in/yaml.v3"
)

// RepoFile is the repo-wide suppression file searched at the scan root.
const RepoFile = ".augur-ignore.yml"

// Source markers. A start marker suppresses everything through the matching
// end marker; the file marker suppresses the entire file.
const (
	markerLine       = "augur:ignore"
	markerBlockStart = "augur:ignore-start"
	markerBlockEnd   = "augur:ignore-end"
	markerFile       = "augur:ignore-file"
)

// fileSuppression is the resolved state for one file.
type fileSuppression struct {
	whole bool
	lines *roaring.Bitmap
}

// Resolved holds suppression decisions for a scan.
type Resolved struct {
	files map[string]*fileSuppression
}

// NewResolved returns an empty suppression set.
func NewResolved() *Resolved {
	return &Resolved{files: make(map[string]*fileSuppression)}
}

// SuppressFile marks an entire file as suppressed.
func (r *Resolved) SuppressFile(path string) {
	s := r.state(path)
	s.whole = true
}

// SuppressLines marks an inclusive line range as suppressed.
func (r *Resolved) SuppressLines(path string, start, end int) {
	if start < 1 || end < start {
		return
	}
	s := r.state(path)
	s.lines.AddRange(uint64(start), uint64(end)+1)
}

// Covers reports whether the whole range [startLine, endLine] is
// suppressed. Partial overlap does not suppress: an occurrence must lie
// entirely inside a suppressed region to be filtered.
func (r *Resolved) Covers(path string, startLine, endLine int) bool {
	if r == nil {
		return false
	}
	s, ok := r.files[path]
	if !ok {
		return false
	}
	if s.whole {
		return true
	}
	for line := startLine; line <= endLine; line++ {
		if !s.lines.Contains(uint32(line)) {
			return false
		}
	}
	return true
}

func (r *Resolved) state(path string) *fileSuppression {
	s, ok := r.files[path]
	if !ok {
		s = &fileSuppression{lines: roaring.New()}
		r.files[path] = s
	}
	return s
}

// repoConfig is the YAML shape of the repo-wide suppression file.
type repoConfig struct {
	// Paths are gitignore-style patterns; matching files are fully
	// suppressed.
	Paths []string `yaml:"paths"`
	// Lines maps a path to suppressed ranges: "12" or "10-20".
	Lines map[string][]string `yaml:"lines"`
}

// Resolver combines the repo file with in-source markers.
type Resolver struct {
	root     string
	matcher  gitignore.Matcher
	lineSpec map[string][]string
}

// NewResolver loads the repo suppression file under root, if present. A
// missing file yields an empty resolver; a malformed one is an error so
// suppressions never silently vanish.
func NewResolver(root string) (*Resolver, error) {
	rv := &Resolver{root: root, lineSpec: map[string][]string{}}

	data, err := os.ReadFile(filepath.Join(root, RepoFile))
	if os.IsNotExist(err) {
		return rv, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg repoConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", RepoFile, err)
	}

	var patterns []gitignore.Pattern
	for _, p := range cfg.Paths {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	if len(patterns) > 0 {
		rv.matcher = gitignore.NewMatcher(patterns)
	}
	rv.lineSpec = cfg.Lines
	return rv, nil
}

// Resolve reads every file once and produces the final suppression set.
// Unreadable files resolve as unsuppressed; the analyzers will surface
// their own read warnings.
func (rv *Resolver) Resolve(files []string) *Resolved {
	res := NewResolved()

	for _, path := range files {
		if rv.matchesRepoPattern(path) {
			res.SuppressFile(path)
			continue
		}
		for _, spec := range rv.lineSpec[rv.relPath(path)] {
			start, end, err := parseRange(spec)
			if err == nil {
				res.SuppressLines(path, start, end)
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		resolveMarkers(res, path, string(data))
	}
	return res
}

// resolveMarkers scans one file's text for suppression markers.
func resolveMarkers(res *Resolved, path, content string) {
	lines := strings.Split(content, "\n")
	blockStart := 0

	for i, line := range lines {
		n := i + 1
		switch {
		case strings.Contains(line, markerFile):
			res.SuppressFile(path)
			return
		case strings.Contains(line, markerBlockStart):
			if blockStart == 0 {
				blockStart = n
			}
		case strings.Contains(line, markerBlockEnd):
			if blockStart > 0 {
				res.SuppressLines(path, blockStart, n)
				blockStart = 0
			}
		case strings.Contains(line, markerLine):
			res.SuppressLines(path, n, n)
		}
	}
	// Unclosed block suppresses through end of file.
	if blockStart > 0 {
		res.SuppressLines(path, blockStart, len(lines))
	}
}

func (rv *Resolver) matchesRepoPattern(path string) bool {
	if rv.matcher == nil {
		return false
	}
	rel := rv.relPath(path)
	return rv.matcher.Match(strings.Split(rel, string(filepath.Separator)), false)
}

func (rv *Resolver) relPath(path string) string {
	rel, err := filepath.Rel(rv.root, path)
	if err != nil {
		return path
	}
	return rel
}

// parseRange parses "12" or "10-20" into an inclusive line range.
func parseRange(spec string) (int, int, error) {
	spec = strings.TrimSpace(spec)
	if a, b, found := strings.Cut(spec, "-"); found {
		start, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return 0, 0, err
		}
		end, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, err
		}
		return start, end, nil
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return 0, 0, err
	}
	return n, n, nil
}
