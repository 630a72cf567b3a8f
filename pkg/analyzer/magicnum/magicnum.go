// Package magicnum flags numeric literals that appear outside constant
// declarations and an allowlist of unremarkable values.
package magicnum

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/augurlabs/augur/internal/fileproc"
	"github.com/augurlabs/augur/internal/ignore"
	"github.com/augurlabs/augur/pkg/models"
	"github.com/augurlabs/augur/pkg/parser"
)

// RuleID identifies magic-number violations.
const RuleID = "magic-number"

// Config controls the magic-number rule.
type Config struct {
	// Allowed literal spellings that never count as magic.
	Allowed []string
	Workers int
}

// DefaultConfig returns the default allowlist.
func DefaultConfig() Config {
	return Config{
		Allowed: []string{"0", "1", "-1", "2", "10", "100", "0.5", "1.0"},
	}
}

// Analysis is the result of a magic-number scan.
type Analysis struct {
	Violations []models.Violation `json:"violations"`
	Warnings   []models.Warning   `json:"warnings,omitempty"`
	Summary    Summary            `json:"summary"`
}

// Summary aggregates scan-wide counts.
type Summary struct {
	TotalFiles    int `json:"total_files"`
	SkippedFiles  int `json:"skipped_files"`
	TotalLiterals int `json:"total_literals"`
}

// Analyzer runs the magic-number rule across files.
type Analyzer struct {
	config Config
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithAllowed replaces the allowlist.
func WithAllowed(values []string) Option {
	return func(a *Analyzer) { a.config.Allowed = values }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.config.Workers = n }
}

// New creates a magic-number analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{config: DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fileResult struct {
	literals   int
	violations []models.Violation
}

// Analyze scans files in parallel and reports numeric literals outside
// const contexts and the allowlist.
func (a *Analyzer) Analyze(ctx context.Context, files []string, suppressed *ignore.Resolved, onProgress fileproc.ProgressFunc) (*Analysis, error) {
	allowed := make(map[string]bool, len(a.config.Allowed))
	for _, v := range a.config.Allowed {
		allowed[v] = true
	}

	workers := a.config.Workers
	results, errs := fileproc.MapFiles(ctx, files, workers, func(psr *parser.Parser, path string) (fileResult, error) {
		return analyzeFile(psr, path, allowed)
	}, onProgress)

	analysis := &Analysis{Summary: Summary{TotalFiles: len(files)}}
	if errs != nil {
		for _, pe := range errs.Errors {
			analysis.Warnings = append(analysis.Warnings, models.Warning{File: pe.Path, Reason: pe.Err.Error()})
		}
		sort.Slice(analysis.Warnings, func(i, j int) bool {
			return analysis.Warnings[i].File < analysis.Warnings[j].File
		})
		analysis.Summary.SkippedFiles = len(analysis.Warnings)
	}

	for _, r := range results {
		analysis.Summary.TotalLiterals += r.literals
		for _, v := range r.violations {
			if suppressed.Covers(v.Primary.File, v.Primary.StartLine, v.Primary.EndLine) {
				continue
			}
			analysis.Violations = append(analysis.Violations, v)
		}
	}

	sort.Slice(analysis.Violations, func(i, j int) bool {
		return models.Less(analysis.Violations[i], analysis.Violations[j])
	})
	return analysis, nil
}

func analyzeFile(psr *parser.Parser, path string, allowed map[string]bool) (fileResult, error) {
	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		return fileResult{}, parser.ErrUnsupportedLanguage
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fileResult{}, err
	}

	result, err := psr.Parse(source, lang, path)
	if err != nil {
		return fileResult{}, err
	}
	defer result.Tree.Close()

	res := fileResult{}
	constTypes := constContextTypes(lang)

	var walk func(node *sitter.Node, inConst bool)
	walk = func(node *sitter.Node, inConst bool) {
		nodeType := node.Type()
		if constTypes[nodeType] {
			inConst = true
		}
		if isNumericLiteral(nodeType) {
			res.literals++
			text := parser.NodeText(node, source)
			if !inConst && !allowed[normalizeLiteral(text)] {
				line := int(node.StartPoint().Row) + 1
				res.violations = append(res.violations, models.Violation{
					RuleID:   RuleID,
					Primary:  models.Location{File: path, StartLine: line, EndLine: line},
					Message:  fmt.Sprintf("magic number %s; extract a named constant", text),
					Severity: models.SeverityLow,
				})
			}
			return
		}
		for i := range int(node.ChildCount()) {
			walk(node.Child(i), inConst)
		}
	}
	walk(result.Tree.RootNode(), false)

	return res, nil
}

// isNumericLiteral matches numeric literal node types across the
// supported grammars.
func isNumericLiteral(nodeType string) bool {
	switch nodeType {
	case "int_literal", "float_literal", "integer_literal",
		"decimal_integer_literal", "hex_integer_literal",
		"number", "number_literal", "integer", "float",
		"real_literal", "numeric_literal":
		return true
	}
	return false
}

// normalizeLiteral strips numeric separators and suffixes so "1_000"
// and allowlisted "1000" compare equal, and trims a leading unary minus
// captured by some grammars.
func normalizeLiteral(text string) string {
	text = strings.ReplaceAll(text, "_", "")
	text = strings.TrimSuffix(text, "f")
	text = strings.TrimSuffix(text, "F")
	text = strings.TrimSuffix(text, "L")
	return text
}

// constContextTypes returns node types whose subtree is a constant
// declaration; literals inside them are named by definition.
func constContextTypes(lang parser.Language) map[string]bool {
	var types []string
	switch lang {
	case parser.LangGo:
		types = []string{"const_declaration"}
	case parser.LangRust:
		types = []string{"const_item", "static_item"}
	case parser.LangJava:
		types = []string{"enum_declaration", "field_declaration"}
	case parser.LangCSharp:
		types = []string{"enum_member_declaration"}
	case parser.LangC, parser.LangCPP:
		types = []string{"preproc_def", "enumerator"}
	case parser.LangPHP:
		types = []string{"const_declaration", "const_element"}
	case parser.LangTypeScript, parser.LangTSX:
		types = []string{"enum_declaration", "lexical_declaration"}
	case parser.LangJavaScript:
		types = []string{"lexical_declaration"}
	case parser.LangPython:
		// Python has no const syntax; module-level ALL_CAPS assignment is
		// convention only, so nothing is exempt structurally.
		types = nil
	case parser.LangRuby:
		// Ruby constants are plain assignments to capitalized names.
		types = []string{"assignment"}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
