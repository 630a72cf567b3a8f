package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// errViolations signals a clean run that found violations. The process
// exits 1 so CI can gate on it; fatal errors exit 2.
var errViolations = errors.New("violations found")

func main() {
	app := &cli.App{
		Name:    "augur",
		Usage:   "Detect machine-generated code anti-patterns",
		Version: version,
		Description: `Augur scans codebases for duplicated blocks, deep nesting, oversized
classes, and magic numbers.

Supports: Go, Rust, Python, TypeScript, JavaScript, Java, C, C++, C#, Ruby, PHP, Bash`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"AUGUR_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the fingerprint cache",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress bars",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Worker pool size (0 = auto)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail when files are skipped, not only on violations",
			},
		},
		Commands: []*cli.Command{
			dupCmd(),
			nestingCmd(),
			magicCmd(),
			classesCmd(),
			checkCmd(),
			cacheCmd(),
			initCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, errViolations) {
			os.Exit(1)
		}
		color.Red("Error: %v", err)
		os.Exit(2)
	}
}
