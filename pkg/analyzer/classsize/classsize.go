// Package classsize flags class-like declarations with too many methods
// or too many lines.
package classsize

import (
	"context"
	"fmt"
	"os"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/augurlabs/augur/internal/fileproc"
	"github.com/augurlabs/augur/internal/ignore"
	"github.com/augurlabs/augur/pkg/models"
	"github.com/augurlabs/augur/pkg/parser"
)

// RuleID identifies oversized-class violations.
const RuleID = "oversized-class"

// Config controls the class-size rule.
type Config struct {
	MaxMethods int
	MaxLines   int
	Workers    int
}

// DefaultConfig returns the default class-size thresholds.
func DefaultConfig() Config {
	return Config{MaxMethods: 20, MaxLines: 400}
}

// Analysis is the result of a class-size scan.
type Analysis struct {
	Violations []models.Violation `json:"violations"`
	Warnings   []models.Warning   `json:"warnings,omitempty"`
	Summary    Summary            `json:"summary"`
}

// Summary aggregates scan-wide counts.
type Summary struct {
	TotalFiles   int `json:"total_files"`
	SkippedFiles int `json:"skipped_files"`
	TotalClasses int `json:"total_classes"`
}

// Analyzer runs the class-size rule across files.
type Analyzer struct {
	config Config
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxMethods overrides the method-count threshold.
func WithMaxMethods(n int) Option {
	return func(a *Analyzer) { a.config.MaxMethods = n }
}

// WithMaxLines overrides the line-count threshold.
func WithMaxLines(n int) Option {
	return func(a *Analyzer) { a.config.MaxLines = n }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.config.Workers = n }
}

// New creates a class-size analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{config: DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fileResult struct {
	classes    int
	violations []models.Violation
}

// Analyze scans files in parallel and reports class-like declarations
// over the configured method or line thresholds.
func (a *Analyzer) Analyze(ctx context.Context, files []string, suppressed *ignore.Resolved, onProgress fileproc.ProgressFunc) (*Analysis, error) {
	if a.config.MaxMethods <= 0 || a.config.MaxLines <= 0 {
		return nil, fmt.Errorf("class-size thresholds must be positive")
	}

	cfg := a.config
	results, errs := fileproc.MapFiles(ctx, files, cfg.Workers, func(psr *parser.Parser, path string) (fileResult, error) {
		return analyzeFile(psr, path, cfg)
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
		analysis.Summary.TotalClasses += r.classes
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

func analyzeFile(psr *parser.Parser, path string, cfg Config) (fileResult, error) {
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
	classTypes := classNodeTypes(lang)
	methodTypes := methodNodeTypes(lang)

	parser.Walk(result.Tree.RootNode(), source, func(node *sitter.Node, nodeType string, src []byte) bool {
		if !classTypes[nodeType] {
			return true
		}
		res.classes++

		name := className(node, src)
		startLine := int(node.StartPoint().Row) + 1
		endLine := int(node.EndPoint().Row) + 1
		lines := endLine - startLine + 1
		methods := countMethods(node, methodTypes)

		var problems []string
		if methods > cfg.MaxMethods {
			problems = append(problems, fmt.Sprintf("%d methods (max %d)", methods, cfg.MaxMethods))
		}
		if lines > cfg.MaxLines {
			problems = append(problems, fmt.Sprintf("%d lines (max %d)", lines, cfg.MaxLines))
		}
		if len(problems) > 0 {
			severity := models.SeverityMedium
			if len(problems) == 2 {
				severity = models.SeverityHigh
			}
			msg := fmt.Sprintf("%s has %s", name, problems[0])
			if len(problems) == 2 {
				msg = fmt.Sprintf("%s has %s and %s", name, problems[0], problems[1])
			}
			res.violations = append(res.violations, models.Violation{
				RuleID:   RuleID,
				Primary:  models.Location{File: path, StartLine: startLine, EndLine: endLine},
				Lines:    lines,
				Message:  msg,
				Severity: severity,
			})
		}
		// Nested classes still get their own walk pass.
		return true
	})

	return res, nil
}

// countMethods counts method declarations directly inside a class body,
// without descending into nested classes.
func countMethods(class *sitter.Node, methodTypes map[string]bool) int {
	body := class.ChildByFieldName("body")
	if body == nil {
		body = class
	}
	count := 0
	for i := range int(body.ChildCount()) {
		if methodTypes[body.Child(i).Type()] {
			count++
		}
	}
	return count
}

func className(node *sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, source)
	}
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if t := child.Type(); t == "type_identifier" || t == "identifier" || t == "constant" {
			return parser.NodeText(child, source)
		}
	}
	return "(anonymous)"
}

// classNodeTypes returns node types treated as class-like containers.
// Go has no classes; its method sets attach to types, so the rule is a
// no-op there.
func classNodeTypes(lang parser.Language) map[string]bool {
	var types []string
	switch lang {
	case parser.LangPython:
		types = []string{"class_definition"}
	case parser.LangRuby:
		types = []string{"class", "module"}
	case parser.LangJava:
		types = []string{"class_declaration", "interface_declaration", "enum_declaration"}
	case parser.LangCSharp:
		types = []string{"class_declaration", "struct_declaration", "interface_declaration"}
	case parser.LangCPP:
		types = []string{"class_specifier", "struct_specifier"}
	case parser.LangPHP:
		types = []string{"class_declaration", "interface_declaration", "trait_declaration"}
	case parser.LangRust:
		types = []string{"impl_item"}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		types = []string{"class_declaration", "class"}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// methodNodeTypes returns node types counted as methods of a class body.
func methodNodeTypes(lang parser.Language) map[string]bool {
	var types []string
	switch lang {
	case parser.LangPython:
		types = []string{"function_definition", "decorated_definition"}
	case parser.LangRuby:
		types = []string{"method", "singleton_method"}
	case parser.LangJava:
		types = []string{"method_declaration", "constructor_declaration"}
	case parser.LangCSharp:
		types = []string{"method_declaration", "constructor_declaration", "property_declaration"}
	case parser.LangCPP:
		types = []string{"function_definition", "field_declaration"}
	case parser.LangPHP:
		types = []string{"method_declaration"}
	case parser.LangRust:
		types = []string{"function_item"}
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		types = []string{"method_definition"}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
