package models

import "fmt"

// Severity represents how serious a violation is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// String is required for toon serialization, which uses fmt.Stringer.
func (s Severity) String() string { return string(s) }

// Location identifies a line range within a file.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// String returns the location in file:start-end form.
func (l Location) String() string {
	if l.EndLine > l.StartLine {
		return fmt.Sprintf("%s:%d-%d", l.File, l.StartLine, l.EndLine)
	}
	return fmt.Sprintf("%s:%d", l.File, l.StartLine)
}

// Lines returns the number of lines the location spans.
func (l Location) Lines() int {
	return l.EndLine - l.StartLine + 1
}

// Violation is a single rule finding. Every rule plugin produces violations
// in this shape so formatters and CI integrations stay rule-agnostic.
type Violation struct {
	RuleID      string     `json:"rule_id"`
	Primary     Location   `json:"primary"`
	Related     []Location `json:"related,omitempty"`
	Lines       int        `json:"lines,omitempty"`
	Occurrences int        `json:"occurrences,omitempty"`
	Message     string     `json:"message"`
	Severity    Severity   `json:"severity"`
}

// Warning records a file that was skipped during analysis.
type Warning struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Less orders violations by primary file path, then start line, then rule ID.
// Used by every analyzer so output is deterministic regardless of worker
// scheduling.
func Less(a, b Violation) bool {
	if a.Primary.File != b.Primary.File {
		return a.Primary.File < b.Primary.File
	}
	if a.Primary.StartLine != b.Primary.StartLine {
		return a.Primary.StartLine < b.Primary.StartLine
	}
	return a.RuleID < b.RuleID
}
