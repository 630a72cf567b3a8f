// Package duplicates detects duplicated code blocks across a project using
// token fingerprinting with verified matching: tokenize, rolling-hash
// fingerprint, index globally, extend matches to maximal blocks.
package duplicates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/augurlabs/augur/internal/cache"
	"github.com/augurlabs/augur/internal/fileproc"
	"github.com/augurlabs/augur/internal/ignore"
	"github.com/augurlabs/augur/pkg/lexer"
	"github.com/augurlabs/augur/pkg/models"
	"github.com/augurlabs/augur/pkg/parser"
)

// ErrConfig marks fatal configuration errors, surfaced before any file is
// scanned.
var ErrConfig = errors.New("invalid configuration")

// Validate rejects thresholds that would make the engine meaningless.
func (c Config) Validate() error {
	if c.MinTokens <= 0 {
		return fmt.Errorf("%w: min_tokens must be positive, got %d", ErrConfig, c.MinTokens)
	}
	if c.MinLines <= 0 {
		return fmt.Errorf("%w: min_lines must be positive, got %d", ErrConfig, c.MinLines)
	}
	return nil
}

// modeTag identifies the matching mode inside cache entries, so switching
// normalization invalidates cached streams instead of mismatching them.
func (c Config) modeTag() string {
	switch {
	case c.NormalizeIdentifiers && c.NormalizeLiterals:
		return "norm-id-lit"
	case c.NormalizeIdentifiers:
		return "norm-id"
	case c.NormalizeLiterals:
		return "norm-lit"
	default:
		return "exact"
	}
}

// ContentSource provides file content. The default reads the filesystem;
// tests substitute in-memory sources.
type ContentSource interface {
	Read(path string) ([]byte, error)
}

type fsSource struct{}

func (fsSource) Read(path string) ([]byte, error) { return os.ReadFile(path) }

// NewFilesystemSource returns a ContentSource over the real filesystem.
func NewFilesystemSource() ContentSource { return fsSource{} }

// InputFile pairs a path with its externally detected language.
type InputFile struct {
	Path     string
	Language parser.Language
}

// Analyzer is the duplicate detection engine.
type Analyzer struct {
	config Config
	store  cache.Store
	source ContentSource
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig sets all detection configuration at once.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) { a.config = cfg }
}

// WithMinLines sets the minimum duplicated line count.
func WithMinLines(n int) Option {
	return func(a *Analyzer) { a.config.MinLines = n }
}

// WithMinTokens sets the fingerprint window size.
func WithMinTokens(n int) Option {
	return func(a *Analyzer) { a.config.MinTokens = n }
}

// WithStore injects the cache store. Defaults to an in-memory store, so an
// analyzer without a disk cache still deduplicates work within a run.
func WithStore(s cache.Store) Option {
	return func(a *Analyzer) { a.store = s }
}

// WithSource injects the content source.
func WithSource(src ContentSource) Option {
	return func(a *Analyzer) { a.source = src }
}

// WithWorkers sets the worker pool size (0 = available parallelism).
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.config.Workers = n }
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) { a.config.MaxFileSize = n }
}

// New creates a duplicate analyzer with default config.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		config: DefaultConfig(),
		store:  cache.NewMemory(),
		source: fsSource{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fileOutcome is one worker's result, handed to the single aggregator.
type fileOutcome struct {
	stream    fileStream
	hash      string
	cacheHit  bool
	lineCount int
}

// Analyze runs the full pipeline: per-file read/cache/tokenize/fingerprint
// in parallel, then a single-threaded global merge. Per-file failures become
// warnings; only configuration errors abort.
//
// The final violation list is deterministic and independent of worker
// scheduling: the merge phase sorts before reporting.
func (a *Analyzer) Analyze(ctx context.Context, files []InputFile, suppressed *ignore.Resolved, onProgress fileproc.ProgressFunc) (*Analysis, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	byPath := make(map[string]parser.Language, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		byPath[f.Path] = f.Language
		paths = append(paths, f.Path)
	}

	outcomes, errs := fileproc.MapFiles(ctx, paths, a.config.Workers,
		func(psr *parser.Parser, path string) (fileOutcome, error) {
			return a.processFile(psr, path, byPath[path])
		}, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := &Analysis{
		ContentHashes: make(map[string]string, len(outcomes)),
		Summary:       Summary{TotalFiles: len(files)},
	}
	if errs != nil {
		for _, pe := range errs.Errors {
			analysis.Warnings = append(analysis.Warnings, models.Warning{File: pe.Path, Reason: pe.Err.Error()})
		}
		sort.Slice(analysis.Warnings, func(i, j int) bool {
			return analysis.Warnings[i].File < analysis.Warnings[j].File
		})
		analysis.Summary.SkippedFiles = len(analysis.Warnings)
	}

	// Barrier: all per-file fingerprinting is done. Everything below runs
	// single-threaded over the global view.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].stream.path < outcomes[j].stream.path })

	streams := make([]fileStream, 0, len(outcomes))
	for _, o := range outcomes {
		streams = append(streams, o.stream)
		analysis.ContentHashes[o.stream.path] = o.hash
		analysis.Summary.TotalLines += o.lineCount
		if o.cacheHit {
			analysis.Summary.CacheHits++
		} else {
			analysis.Summary.CacheMisses++
		}
	}

	clusters := mergeClusters(streams, a.config.MinTokens)
	clusters = a.filterClusters(clusters, suppressed)
	analysis.Clusters = clusters
	analysis.Summary.TotalClusters = len(clusters)

	for _, c := range clusters {
		analysis.Violations = append(analysis.Violations, a.toViolation(c))
	}
	sort.Slice(analysis.Violations, func(i, j int) bool {
		return models.Less(analysis.Violations[i], analysis.Violations[j])
	})

	a.summarize(analysis)
	return analysis, nil
}

// processFile runs the per-file pipeline: read, content hash, cache lookup,
// tokenize and fingerprint on miss, cache write. The cache entry is only
// written after the full fingerprint set is computed, so cancellation never
// commits a partial entry.
func (a *Analyzer) processFile(psr *parser.Parser, path string, lang parser.Language) (fileOutcome, error) {
	if lang == parser.LangUnknown {
		return fileOutcome{}, fmt.Errorf("%w: no tokenizer registered for %s", parser.ErrUnsupportedLanguage, path)
	}

	data, err := a.source.Read(path)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("read: %w", err)
	}
	if a.config.MaxFileSize > 0 && int64(len(data)) > a.config.MaxFileSize {
		return fileOutcome{}, fmt.Errorf("file exceeds max size (%d bytes)", len(data))
	}

	hash := cache.HashBytes(data)
	lineCount := strings.Count(string(data), "\n") + 1

	if entry, ok := a.store.Get(hash); ok && a.entryUsable(entry, lang) {
		toks := entry.Stream.Tokens
		return fileOutcome{
			stream:    fileStream{path: path, tokens: toks, forms: matchForms(toks), fps: entry.Fingerprints},
			hash:      hash,
			cacheHit:  true,
			lineCount: lineCount,
		}, nil
	}

	stream, err := lexer.Lex(psr, data, lang, path, lexer.Options{
		NormalizeIdentifiers: a.config.NormalizeIdentifiers,
		NormalizeLiterals:    a.config.NormalizeLiterals,
	})
	if err != nil {
		return fileOutcome{}, err
	}

	forms := matchForms(stream.Tokens)
	fps := fingerprints(tokenHashes(forms), a.config.MinTokens)

	// Compute-first, write-if-absent: a failed cache write costs only the
	// next run's recompute.
	_ = a.store.Put(hash, &cache.Entry{
		Language:     lang,
		Mode:         a.config.modeTag(),
		WindowTokens: a.config.MinTokens,
		Stream:       stream,
		Fingerprints: fps,
	})

	return fileOutcome{
		stream:    fileStream{path: path, tokens: stream.Tokens, forms: forms, fps: fps},
		hash:      hash,
		lineCount: lineCount,
	}, nil
}

// entryUsable rejects cached entries computed under different settings.
// Those are treated as misses and rewritten.
func (a *Analyzer) entryUsable(e *cache.Entry, lang parser.Language) bool {
	if e.Stream == nil || e.Language != lang || e.Mode != a.config.modeTag() || e.WindowTokens != a.config.MinTokens {
		return false
	}
	if n := len(e.Stream.Tokens); n >= a.config.MinTokens && len(e.Fingerprints) != n-a.config.MinTokens+1 {
		return false
	}
	return true
}

// filterClusters applies ignore-range filtering, then re-checks thresholds.
// Filtering runs first so a cluster legitimately disappears once it drops
// below 2 surviving occurrences.
func (a *Analyzer) filterClusters(clusters []Cluster, suppressed *ignore.Resolved) []Cluster {
	kept := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		occs := make([]Occurrence, 0, len(c.Occurrences))
		for _, o := range c.Occurrences {
			if suppressed.Covers(o.File, o.StartLine, o.EndLine) {
				continue
			}
			occs = append(occs, o)
		}
		if len(occs) < 2 {
			continue
		}

		// Formatting can make occurrences of one cluster span different
		// line counts; threshold against the smallest span.
		minSpan := occs[0].Lines()
		for _, o := range occs[1:] {
			if o.Lines() < minSpan {
				minSpan = o.Lines()
			}
		}
		if minSpan < a.config.MinLines || c.TokenCount < a.config.MinTokens {
			continue
		}

		c.Occurrences = occs
		c.Lines = occs[0].Lines()
		kept = append(kept, c)
	}
	return kept
}

// toViolation converts a surviving cluster into a finding. Primary location
// is the earliest occurrence by path and line; all others are related.
func (a *Analyzer) toViolation(c Cluster) models.Violation {
	primary := models.Location{File: c.Occurrences[0].File, StartLine: c.Occurrences[0].StartLine, EndLine: c.Occurrences[0].EndLine}
	related := make([]models.Location, 0, len(c.Occurrences)-1)
	locs := make([]string, 0, len(c.Occurrences)-1)
	for _, o := range c.Occurrences[1:] {
		loc := models.Location{File: o.File, StartLine: o.StartLine, EndLine: o.EndLine}
		related = append(related, loc)
		locs = append(locs, loc.String())
	}

	severity := models.SeverityMedium
	if len(c.Occurrences) > 2 {
		severity = models.SeverityHigh
	}

	return models.Violation{
		RuleID:      RuleID,
		Primary:     primary,
		Related:     related,
		Lines:       c.Lines,
		Occurrences: len(c.Occurrences),
		Severity:    severity,
		Message: fmt.Sprintf("%d-line block duplicated in %d locations (also at %s)",
			c.Lines, len(c.Occurrences), strings.Join(locs, ", ")),
	}
}

// summarize fills duplication totals and cluster-size percentiles.
func (a *Analyzer) summarize(analysis *Analysis) {
	var spans []float64
	for _, c := range analysis.Clusters {
		for _, o := range c.Occurrences {
			analysis.Summary.DuplicatedLines += o.Lines()
		}
		spans = append(spans, float64(c.Lines))
	}

	if analysis.Summary.TotalLines > 0 {
		ratio := float64(analysis.Summary.DuplicatedLines) / float64(analysis.Summary.TotalLines)
		if ratio > 1.0 {
			ratio = 1.0
		}
		analysis.Summary.DuplicationRatio = ratio
	}

	if len(spans) > 0 {
		sort.Float64s(spans)
		analysis.Summary.P50ClusterLines = stat.Quantile(0.5, stat.Empirical, spans, nil)
		analysis.Summary.P95ClusterLines = stat.Quantile(0.95, stat.Empirical, spans, nil)
	}
}
