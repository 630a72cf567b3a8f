package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/augurlabs/augur/pkg/analyzer/classsize"
	"github.com/augurlabs/augur/pkg/analyzer/magicnum"
	"github.com/augurlabs/augur/pkg/analyzer/nesting"
)

func nestingCmd() *cli.Command {
	return &cli.Command{
		Name:      "nesting",
		Usage:     "Flag functions with excessive nesting depth",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Maximum allowed nesting depth",
			},
		},
		Action: runNesting,
	}
}

func runNesting(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("max-depth") {
		cfg.Nesting.MaxDepth = c.Int("max-depth")
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

	analyzer := nesting.New(
		nesting.WithMaxDepth(cfg.Nesting.MaxDepth),
		nesting.WithWorkers(cfg.Workers),
	)

	tick, finish := maybeTracker(c, "Checking nesting...", len(files))
	analysis, err := analyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	footer := []string{
		fmt.Sprintf("Functions: %d", analysis.Summary.TotalFunctions),
		fmt.Sprintf("Deepest: %d", analysis.Summary.MaxDepthSeen),
	}
	return renderResult(formatter, "Deep Nesting", analysis.Violations, analysis.Warnings, footer, analysis, cfg.Strict)
}

func magicCmd() *cli.Command {
	return &cli.Command{
		Name:      "magic",
		Usage:     "Flag magic numbers outside constant declarations",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "allow",
				Usage: "Additional literal values to allow",
			},
		},
		Action: runMagic,
	}
}

func runMagic(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	allowed := append(cfg.Magic.Allowed, c.StringSlice("allow")...)

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

	analyzer := magicnum.New(
		magicnum.WithAllowed(allowed),
		magicnum.WithWorkers(cfg.Workers),
	)

	tick, finish := maybeTracker(c, "Checking literals...", len(files))
	analysis, err := analyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	footer := []string{
		fmt.Sprintf("Literals: %d", analysis.Summary.TotalLiterals),
		fmt.Sprintf("Magic: %d", len(analysis.Violations)),
	}
	return renderResult(formatter, "Magic Numbers", analysis.Violations, analysis.Warnings, footer, analysis, cfg.Strict)
}

func classesCmd() *cli.Command {
	return &cli.Command{
		Name:      "classes",
		Usage:     "Flag oversized class-like declarations",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-methods",
				Usage: "Maximum methods per class",
			},
			&cli.IntFlag{
				Name:  "max-lines",
				Usage: "Maximum lines per class",
			},
		},
		Action: runClasses,
	}
}

func runClasses(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("max-methods") {
		cfg.Classes.MaxMethods = c.Int("max-methods")
	}
	if c.IsSet("max-lines") {
		cfg.Classes.MaxLines = c.Int("max-lines")
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

	analyzer := classsize.New(
		classsize.WithMaxMethods(cfg.Classes.MaxMethods),
		classsize.WithMaxLines(cfg.Classes.MaxLines),
		classsize.WithWorkers(cfg.Workers),
	)

	tick, finish := maybeTracker(c, "Checking classes...", len(files))
	analysis, err := analyzer.Analyze(c.Context, files, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	footer := []string{
		fmt.Sprintf("Classes: %d", analysis.Summary.TotalClasses),
	}
	return renderResult(formatter, "Oversized Classes", analysis.Violations, analysis.Warnings, footer, analysis, cfg.Strict)
}
