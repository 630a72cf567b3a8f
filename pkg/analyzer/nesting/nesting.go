// Package nesting flags functions whose control-flow nesting exceeds a
// configured depth.
package nesting

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

// RuleID identifies nesting-depth violations.
const RuleID = "deep-nesting"

// Config controls the nesting rule.
type Config struct {
	MaxDepth int
	Workers  int
}

// DefaultConfig returns the default nesting thresholds.
func DefaultConfig() Config {
	return Config{MaxDepth: 4}
}

// Analysis is the result of a nesting scan.
type Analysis struct {
	Violations []models.Violation `json:"violations"`
	Warnings   []models.Warning   `json:"warnings,omitempty"`
	Summary    Summary            `json:"summary"`
}

// Summary aggregates scan-wide counts.
type Summary struct {
	TotalFiles     int `json:"total_files"`
	SkippedFiles   int `json:"skipped_files"`
	TotalFunctions int `json:"total_functions"`
	MaxDepthSeen   int `json:"max_depth_seen"`
}

// Analyzer runs the nesting rule across files.
type Analyzer struct {
	config Config
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxDepth overrides the depth threshold.
func WithMaxDepth(d int) Option {
	return func(a *Analyzer) { a.config.MaxDepth = d }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.config.Workers = n }
}

// New creates a nesting analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{config: DefaultConfig()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fileResult is one file's findings before aggregation.
type fileResult struct {
	path       string
	functions  int
	deepest    int
	violations []models.Violation
}

// Analyze scans files in parallel and reports functions nested deeper
// than the configured maximum.
func (a *Analyzer) Analyze(ctx context.Context, files []string, suppressed *ignore.Resolved, onProgress fileproc.ProgressFunc) (*Analysis, error) {
	if a.config.MaxDepth <= 0 {
		return nil, fmt.Errorf("max depth must be positive, got %d", a.config.MaxDepth)
	}

	maxDepth := a.config.MaxDepth
	results, errs := fileproc.MapFiles(ctx, files, a.config.Workers, func(psr *parser.Parser, path string) (fileResult, error) {
		return analyzeFile(psr, path, maxDepth)
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
		analysis.Summary.TotalFunctions += r.functions
		if r.deepest > analysis.Summary.MaxDepthSeen {
			analysis.Summary.MaxDepthSeen = r.deepest
		}
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

func analyzeFile(psr *parser.Parser, path string, maxDepth int) (fileResult, error) {
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

	res := fileResult{path: path}
	funcTypes := functionNodeTypes(lang)
	nestTypes := nestingNodeTypes(lang)

	parser.Walk(result.Tree.RootNode(), source, func(node *sitter.Node, nodeType string, src []byte) bool {
		if !funcTypes[nodeType] {
			return true
		}
		res.functions++

		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		depth := maxNesting(body, nestTypes, 0)
		if depth > res.deepest {
			res.deepest = depth
		}
		if depth > maxDepth {
			name := functionName(node, src)
			severity := models.SeverityMedium
			if depth >= maxDepth*2 {
				severity = models.SeverityHigh
			}
			res.violations = append(res.violations, models.Violation{
				RuleID: RuleID,
				Primary: models.Location{
					File:      path,
					StartLine: int(node.StartPoint().Row) + 1,
					EndLine:   int(node.EndPoint().Row) + 1,
				},
				Message:  fmt.Sprintf("function %s reaches nesting depth %d (max %d)", name, depth, maxDepth),
				Severity: severity,
			})
		}
		// Bodies are walked by maxNesting; skipping here avoids double
		// counting nested function literals as new top-level functions.
		return false
	})

	return res, nil
}

// maxNesting returns the deepest control-flow nesting inside node.
func maxNesting(node *sitter.Node, nestTypes map[string]bool, depth int) int {
	deepest := depth
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		next := depth
		if nestTypes[child.Type()] {
			next = depth + 1
		}
		if d := maxNesting(child, nestTypes, next); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// functionName extracts a display name, falling back for anonymous
// functions.
func functionName(node *sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return parser.NodeText(nameNode, source)
	}
	return "(anonymous)"
}

// functionNodeTypes returns node types that open a function scope.
func functionNodeTypes(lang parser.Language) map[string]bool {
	var types []string
	switch lang {
	case parser.LangGo:
		types = []string{"function_declaration", "method_declaration", "func_literal"}
	case parser.LangRust:
		types = []string{"function_item", "closure_expression"}
	case parser.LangPython:
		types = []string{"function_definition", "lambda"}
	case parser.LangRuby:
		types = []string{"method", "singleton_method", "lambda", "block"}
	case parser.LangJava:
		types = []string{"method_declaration", "constructor_declaration", "lambda_expression"}
	case parser.LangCSharp:
		types = []string{"method_declaration", "constructor_declaration", "local_function_statement"}
	case parser.LangC, parser.LangCPP:
		types = []string{"function_definition"}
	case parser.LangPHP:
		types = []string{"function_definition", "method_declaration", "anonymous_function_creation_expression"}
	case parser.LangBash:
		types = []string{"function_definition"}
	default: // JavaScript, TypeScript, TSX
		types = []string{
			"function_declaration", "function_expression", "function",
			"method_definition", "arrow_function", "generator_function_declaration",
		}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// nestingNodeTypes returns control-flow node types that deepen nesting.
func nestingNodeTypes(lang parser.Language) map[string]bool {
	common := []string{
		"if_statement", "if_expression",
		"for_statement", "for_expression", "for_in_statement",
		"while_statement", "while_expression", "do_statement",
		"switch_statement", "match_expression",
		"try_statement", "with_statement",
		"conditional_expression", "ternary_expression",
	}
	switch lang {
	case parser.LangGo:
		common = append(common, "expression_switch_statement", "type_switch_statement", "select_statement")
	case parser.LangRust:
		common = append(common, "loop_expression", "if_let_expression")
	case parser.LangRuby:
		common = []string{"if", "unless", "while", "until", "for", "case", "begin", "do_block"}
	case parser.LangJava, parser.LangCSharp:
		common = append(common, "enhanced_for_statement", "foreach_statement")
	case parser.LangPHP:
		common = append(common, "foreach_statement")
	case parser.LangBash:
		common = []string{"if_statement", "for_statement", "while_statement", "case_statement", "c_style_for_statement"}
	}
	set := make(map[string]bool, len(common))
	for _, t := range common {
		set[t] = true
	}
	return set
}
