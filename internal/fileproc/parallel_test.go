package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/augurlabs/augur/pkg/parser"
)

func TestWorkers(t *testing.T) {
	if got := Workers(4); got != 4 {
		t.Errorf("Workers(4) = %d", got)
	}
	want := runtime.NumCPU() * DefaultWorkerMultiplier
	if got := Workers(0); got != want {
		t.Errorf("Workers(0) = %d, want %d", got, want)
	}
	if got := Workers(-1); got != want {
		t.Errorf("Workers(-1) = %d, want %d", got, want)
	}
}

func TestForEachFileCollectsResults(t *testing.T) {
	files := make([]string, 20)
	for i := range files {
		files[i] = fmt.Sprintf("file%02d.go", i)
	}

	results, errs := ForEachFile(context.Background(), files, 4, func(path string) (string, error) {
		return strings.ToUpper(path), nil
	}, nil)

	if errs != nil {
		t.Fatalf("errs = %v, want nil", errs)
	}
	if len(results) != len(files) {
		t.Fatalf("results = %d, want %d", len(results), len(files))
	}
	sort.Strings(results)
	if results[0] != "FILE00.GO" {
		t.Errorf("results[0] = %q", results[0])
	}
}

func TestForEachFileCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	files := []string{"good.go", "bad.go", "fine.go"}

	results, errs := ForEachFile(context.Background(), files, 2, func(path string) (string, error) {
		if path == "bad.go" {
			return "", boom
		}
		return path, nil
	}, nil)

	if len(results) != 2 {
		t.Errorf("results = %d, want 2 successes", len(results))
	}
	if errs == nil || !errs.HasErrors() {
		t.Fatal("expected collected errors")
	}
	if len(errs.Errors) != 1 || errs.Errors[0].Path != "bad.go" {
		t.Errorf("Errors = %+v", errs.Errors)
	}
	if !errors.Is(errs.Errors[0].Err, boom) {
		t.Errorf("Err = %v, want boom", errs.Errors[0].Err)
	}
}

func TestForEachFileProgress(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go"}
	var ticks atomic.Int64

	_, _ = ForEachFile(context.Background(), files, 2, func(path string) (struct{}, error) {
		if path == "b.go" {
			return struct{}{}, errors.New("skipped")
		}
		return struct{}{}, nil
	}, func() { ticks.Add(1) })

	// Progress ticks for failures too, so bars always complete.
	if got := ticks.Load(); got != 3 {
		t.Errorf("progress ticks = %d, want 3", got)
	}
}

func TestForEachFileEmpty(t *testing.T) {
	results, errs := ForEachFile(context.Background(), nil, 2, func(path string) (int, error) {
		t.Error("fn should not be called")
		return 0, nil
	}, nil)
	if results != nil || errs != nil {
		t.Errorf("empty input = %v, %v; want nil, nil", results, errs)
	}
}

func TestForEachFileCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []string{"a.go", "b.go"}
	results, errs := ForEachFile(ctx, files, 1, func(path string) (string, error) {
		return path, nil
	}, nil)

	// A pre-cancelled context produces no results, only cancellation errors.
	if len(results) != 0 {
		t.Errorf("results = %v, want none after cancellation", results)
	}
	if errs == nil || !errs.HasErrors() {
		t.Fatal("expected cancellation errors")
	}
	for _, pe := range errs.Errors {
		if !errors.Is(pe.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", pe.Err)
		}
	}
}

func TestMapFilesProvidesParser(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go", "d.go"}

	results, errs := MapFiles(context.Background(), files, 2, func(psr *parser.Parser, path string) (int, error) {
		result, err := psr.Parse([]byte("package main\n"), parser.LangGo, path)
		if err != nil {
			return 0, err
		}
		defer result.Tree.Close()
		return int(result.Tree.RootNode().ChildCount()), nil
	}, nil)

	if errs != nil {
		t.Fatalf("errs = %v", errs)
	}
	if len(results) != len(files) {
		t.Fatalf("results = %d, want %d", len(results), len(files))
	}
	for _, n := range results {
		if n == 0 {
			t.Error("each worker should parse with its own parser")
		}
	}
}

func TestProcessingErrorsError(t *testing.T) {
	errs := &ProcessingErrors{}
	if errs.HasErrors() {
		t.Error("fresh collection should have no errors")
	}
	if got := errs.Error(); got != "no errors" {
		t.Errorf("Error() = %q", got)
	}

	errs.Add("a.go", errors.New("first"))
	if got := errs.Error(); got != "a.go: first" {
		t.Errorf("single Error() = %q", got)
	}

	errs.Add("b.go", errors.New("second"))
	if got := errs.Error(); !strings.Contains(got, "2 files failed") {
		t.Errorf("multi Error() = %q", got)
	}
}
