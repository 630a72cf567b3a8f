package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/augurlabs/augur/internal/cache"
	"github.com/augurlabs/augur/pkg/analyzer/classsize"
	"github.com/augurlabs/augur/pkg/analyzer/duplicates"
	"github.com/augurlabs/augur/pkg/analyzer/magicnum"
	"github.com/augurlabs/augur/pkg/analyzer/nesting"
	"github.com/augurlabs/augur/pkg/models"
	"github.com/augurlabs/augur/pkg/parser"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Run every rule and report all violations",
		ArgsUsage: "[path...]",
		Action:    runCheck,
	}
}

// checkReport is the structured payload for json/markdown/toon output.
type checkReport struct {
	Violations []models.Violation  `json:"violations"`
	Warnings   []models.Warning    `json:"warnings,omitempty"`
	PerRule    map[string]int      `json:"per_rule"`
	Duplicates *duplicates.Summary `json:"duplicates_summary,omitempty"`
}

func runCheck(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	paths := getPaths(c)
	files, err := collectFiles(cfg, paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	suppressed, err := resolveSuppressions(paths, files)
	if err != nil {
		return err
	}

	store, err := cache.NewDisk(cfg.Cache.Dir, cfg.Cache.Enabled)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	report := checkReport{PerRule: map[string]int{}}
	seen := make(map[models.Warning]bool)
	collect := func(violations []models.Violation, warnings []models.Warning) {
		report.Violations = append(report.Violations, violations...)
		for _, v := range violations {
			report.PerRule[v.RuleID]++
		}
		for _, w := range warnings {
			if !seen[w] {
				seen[w] = true
				report.Warnings = append(report.Warnings, w)
			}
		}
	}

	// Duplicates first: it is the slow pass and warms no other rule.
	inputs := make([]duplicates.InputFile, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, duplicates.InputFile{Path: f, Language: parser.DetectLanguage(f)})
	}
	dupAnalyzer := duplicates.New(
		duplicates.WithConfig(duplicates.Config{
			MinLines:             cfg.Duplicates.MinLines,
			MinTokens:            cfg.Duplicates.MinTokens,
			NormalizeIdentifiers: cfg.Duplicates.NormalizeIdentifiers,
			NormalizeLiterals:    cfg.Duplicates.NormalizeLiterals,
			MaxFileSize:          cfg.Duplicates.MaxFileSize,
			Workers:              cfg.Workers,
		}),
		duplicates.WithStore(store),
	)
	tick, finish := maybeTracker(c, "Detecting duplicates...", len(files))
	dupAnalysis, err := dupAnalyzer.Analyze(c.Context, inputs, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("duplicate analysis failed: %w", err)
	}
	collect(dupAnalysis.Violations, dupAnalysis.Warnings)
	report.Duplicates = &dupAnalysis.Summary

	nestAnalyzer := nesting.New(nesting.WithMaxDepth(cfg.Nesting.MaxDepth), nesting.WithWorkers(cfg.Workers))
	tick, finish = maybeTracker(c, "Checking nesting...", len(files))
	nestAnalysis, err := nestAnalyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("nesting analysis failed: %w", err)
	}
	collect(nestAnalysis.Violations, nestAnalysis.Warnings)

	classAnalyzer := classsize.New(
		classsize.WithMaxMethods(cfg.Classes.MaxMethods),
		classsize.WithMaxLines(cfg.Classes.MaxLines),
		classsize.WithWorkers(cfg.Workers),
	)
	tick, finish = maybeTracker(c, "Checking classes...", len(files))
	classAnalysis, err := classAnalyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("class-size analysis failed: %w", err)
	}
	collect(classAnalysis.Violations, classAnalysis.Warnings)

	magicAnalyzer := magicnum.New(magicnum.WithAllowed(cfg.Magic.Allowed), magicnum.WithWorkers(cfg.Workers))
	tick, finish = maybeTracker(c, "Checking literals...", len(files))
	magicAnalysis, err := magicAnalyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("magic-number analysis failed: %w", err)
	}
	collect(magicAnalysis.Violations, magicAnalysis.Warnings)

	sort.Slice(report.Violations, func(i, j int) bool {
		return models.Less(report.Violations[i], report.Violations[j])
	})
	sort.Slice(report.Warnings, func(i, j int) bool {
		if report.Warnings[i].File != report.Warnings[j].File {
			return report.Warnings[i].File < report.Warnings[j].File
		}
		return report.Warnings[i].Reason < report.Warnings[j].Reason
	})

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	footer := []string{
		fmt.Sprintf("Total: %d", len(report.Violations)),
		fmt.Sprintf("%s: %d", duplicates.RuleID, report.PerRule[duplicates.RuleID]),
		fmt.Sprintf("%s: %d", nesting.RuleID, report.PerRule[nesting.RuleID]),
		fmt.Sprintf("%s: %d", classsize.RuleID, report.PerRule[classsize.RuleID]),
		fmt.Sprintf("%s: %d", magicnum.RuleID, report.PerRule[magicnum.RuleID]),
	}
	return renderResult(formatter, "All Rules", report.Violations, report.Warnings, footer, report, cfg.Strict)
}
