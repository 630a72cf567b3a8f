package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/augurlabs/augur/internal/output"
	"github.com/augurlabs/augur/pkg/models"
)

func testContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args defaults to current dir", nil, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(t, tt.args)
			assert.Equal(t, tt.expected, getPaths(c))
		})
	}
}

func TestScanRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	assert.Equal(t, ".", scanRoot(nil))
	assert.Equal(t, dir, scanRoot([]string{dir}))
	assert.Equal(t, dir, scanRoot([]string{file}), "a file path resolves to its directory")
	assert.Equal(t, dir, scanRoot([]string{dir, "/elsewhere"}), "the first path wins")
}

func TestViolationRows(t *testing.T) {
	violations := []models.Violation{
		{
			RuleID:   "duplicate-code",
			Primary:  models.Location{File: "a.go", StartLine: 5, EndLine: 12},
			Message:  "duplicated block",
			Severity: models.SeverityMedium,
		},
		{
			RuleID:   "magic-number",
			Primary:  models.Location{File: "b.go", StartLine: 7, EndLine: 7},
			Message:  "magic number 30",
			Severity: models.SeverityLow,
		},
	}

	rows := violationRows(violations, false)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a.go:5-12", "duplicate-code", "medium", "duplicated block"}, rows[0])
	assert.Equal(t, []string{"b.go:7", "magic-number", "low", "magic number 30"}, rows[1])
}

func TestRenderResultExitState(t *testing.T) {
	newFileFormatter := func(t *testing.T) *output.Formatter {
		t.Helper()
		f, err := output.NewFormatter(output.FormatJSON, filepath.Join(t.TempDir(), "out.json"), false)
		require.NoError(t, err)
		t.Cleanup(func() { f.Close() })
		return f
	}

	violation := models.Violation{
		RuleID:   "deep-nesting",
		Primary:  models.Location{File: "a.go", StartLine: 1, EndLine: 2},
		Severity: models.SeverityHigh,
	}
	warning := models.Warning{File: "b.txt", Reason: "unsupported language"}

	t.Run("clean run", func(t *testing.T) {
		err := renderResult(newFileFormatter(t), "Violations", nil, nil, nil, nil, false)
		assert.NoError(t, err)
	})

	t.Run("violations fail", func(t *testing.T) {
		err := renderResult(newFileFormatter(t), "Violations", []models.Violation{violation}, nil, nil, nil, false)
		assert.ErrorIs(t, err, errViolations)
	})

	t.Run("warnings pass by default", func(t *testing.T) {
		err := renderResult(newFileFormatter(t), "Violations", nil, []models.Warning{warning}, nil, nil, false)
		assert.NoError(t, err)
	})

	t.Run("strict fails on warnings", func(t *testing.T) {
		err := renderResult(newFileFormatter(t), "Violations", nil, []models.Warning{warning}, nil, nil, true)
		assert.ErrorIs(t, err, errViolations)
	})
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(0))
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.0 KiB", formatSize(1024))
	assert.Equal(t, "1.5 KiB", formatSize(1536))
	assert.Equal(t, "2.0 MiB", formatSize(2<<20))
}

func TestErrViolationsWrapping(t *testing.T) {
	wrapped := errors.Join(errViolations, errors.New("strict"))
	assert.ErrorIs(t, wrapped, errViolations)
}
