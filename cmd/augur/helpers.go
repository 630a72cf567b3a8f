package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/augurlabs/augur/internal/fileproc"
	"github.com/augurlabs/augur/internal/ignore"
	"github.com/augurlabs/augur/internal/output"
	"github.com/augurlabs/augur/internal/progress"
	"github.com/augurlabs/augur/internal/scanner"
	"github.com/augurlabs/augur/pkg/config"
	"github.com/augurlabs/augur/pkg/models"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads the config file (explicit or discovered) and applies
// global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.Bool("strict") {
		cfg.Strict = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	return cfg, nil
}

// collectFiles scans the given paths for analyzable source files.
func collectFiles(cfg *config.Config, paths []string) ([]string, error) {
	scan := scanner.New(cfg)
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", path, err)
		}
		if !info.IsDir() {
			ok, err := scan.ScanFile(path)
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, path)
			}
			continue
		}
		found, err := scan.ScanDir(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// scanRoot picks the directory whose suppression file governs the run.
func scanRoot(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	root := paths[0]
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return filepath.Dir(root)
	}
	return root
}

// resolveSuppressions loads the repo suppression file and in-source
// markers for the scanned files.
func resolveSuppressions(paths []string, files []string) (*ignore.Resolved, error) {
	rv, err := ignore.NewResolver(scanRoot(paths))
	if err != nil {
		return nil, err
	}
	return rv.Resolve(files), nil
}

// newFormatter builds the output formatter from flags and config.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	outFile := c.String("output")
	colored := cfg.Output.Color && outFile == ""
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), outFile, colored)
}

// maybeTracker returns a progress callback and finisher, or no-ops when
// progress is disabled.
func maybeTracker(c *cli.Context, label string, total int) (fileproc.ProgressFunc, func()) {
	if c.Bool("no-progress") {
		return nil, func() {}
	}
	tracker := progress.NewTracker(label, total)
	return tracker.Tick, tracker.FinishSuccess
}

// violationRows converts violations to table rows.
func violationRows(violations []models.Violation, colored bool) [][]string {
	rows := make([][]string, 0, len(violations))
	for _, v := range violations {
		sev := string(v.Severity)
		if colored {
			sev = output.SeverityColor(string(v.Severity), sev)
		}
		rows = append(rows, []string{
			v.Primary.String(),
			v.RuleID,
			sev,
			v.Message,
		})
	}
	return rows
}

// renderResult writes a violations table (or the raw analysis for
// structured formats) and converts findings into the process exit state.
func renderResult(formatter *output.Formatter, title string, violations []models.Violation, warnings []models.Warning, footer []string, data any, strict bool) error {
	if len(violations) == 0 && formatter.Format() == output.FormatText {
		formatter.Success("No violations found")
		for _, w := range warnings {
			formatter.Warning("skipped %s: %s", w.File, w.Reason)
		}
	} else {
		table := output.NewTable(title,
			[]string{"Location", "Rule", "Severity", "Message"},
			violationRows(violations, formatter.Colored()),
			footer,
			data,
		)
		if err := formatter.Output(table); err != nil {
			return err
		}
		if formatter.Format() == output.FormatText {
			for _, w := range warnings {
				formatter.Warning("skipped %s: %s", w.File, w.Reason)
			}
		}
	}

	if len(violations) > 0 {
		return errViolations
	}
	if strict && len(warnings) > 0 {
		return fmt.Errorf("%w: %d files skipped under --strict", errViolations, len(warnings))
	}
	return nil
}
