package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/augurlabs/augur/internal/cache"
	"github.com/augurlabs/augur/pkg/analyzer/duplicates"
	"github.com/augurlabs/augur/pkg/config"
	"github.com/augurlabs/augur/pkg/parser"
)

func dupCmd() *cli.Command {
	return &cli.Command{
		Name:      "dup",
		Aliases:   []string{"duplicates", "clones"},
		Usage:     "Detect duplicated code blocks",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-lines",
				Usage: "Minimum line span for a reported block",
			},
			&cli.IntFlag{
				Name:  "min-tokens",
				Usage: "Minimum token count for a reported block",
			},
			&cli.BoolFlag{
				Name:  "normalize-identifiers",
				Usage: "Match blocks that differ only in identifier names",
			},
			&cli.BoolFlag{
				Name:  "normalize-literals",
				Usage: "Match blocks that differ only in literal values",
			},
		},
		Action: runDup,
	}
}

func runDup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyDupFlags(c, cfg)

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

	analyzer := duplicates.New(
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

	inputs := make([]duplicates.InputFile, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, duplicates.InputFile{Path: f, Language: parser.DetectLanguage(f)})
	}

	tick, finish := maybeTracker(c, "Detecting duplicates...", len(files))
	analysis, err := analyzer.Analyze(c.Context, inputs, suppressed, tick)
	finish()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if cfg.Cache.Enabled {
		live := make(map[string]struct{}, len(analysis.ContentHashes))
		for _, h := range analysis.ContentHashes {
			live[h] = struct{}{}
		}
		// Best effort; stale records only waste disk.
		_ = store.Prune(live)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	footer := []string{
		fmt.Sprintf("Clusters: %d", analysis.Summary.TotalClusters),
		fmt.Sprintf("Duplication: %.1f%%", analysis.Summary.DuplicationRatio*100),
		fmt.Sprintf("Cache: %d hits / %d misses", analysis.Summary.CacheHits, analysis.Summary.CacheMisses),
	}
	return renderResult(formatter, "Duplicate Code", analysis.Violations, analysis.Warnings, footer, analysis, cfg.Strict)
}

func applyDupFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("min-lines") {
		cfg.Duplicates.MinLines = c.Int("min-lines")
	}
	if c.IsSet("min-tokens") {
		cfg.Duplicates.MinTokens = c.Int("min-tokens")
	}
	if c.Bool("normalize-identifiers") {
		cfg.Duplicates.NormalizeIdentifiers = true
	}
	if c.Bool("normalize-literals") {
		cfg.Duplicates.NormalizeLiterals = true
	}
}
