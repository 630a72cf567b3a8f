package duplicates

import (
	"fmt"
	"strings"
	"testing"

	"github.com/augurlabs/augur/pkg/lexer"
)

// streamOf builds a fileStream with one token per line, so token indices
// and line numbers coincide (offset by one).
func streamOf(path string, w int, forms ...string) fileStream {
	tokens := make([]lexer.Token, len(forms))
	for i, f := range forms {
		tokens[i] = lexer.Token{Text: f, StartLine: i + 1, EndLine: i + 1}
	}
	return fileStream{
		path:   path,
		tokens: tokens,
		forms:  forms,
		fps:    fingerprints(tokenHashes(forms), w),
	}
}

func seq(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i))
	}
	return out
}

func TestMergeClustersBasic(t *testing.T) {
	w := 3
	shared := []string{"if", "x", ">", "0", "{", "return", "}", ";"}

	a := streamOf("a.go", w, append(seq("a", 4), shared...)...)
	b := streamOf("b.go", w, append(shared, seq("b", 4)...)...)

	clusters := mergeClusters([]fileStream{a, b}, w)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if c.TokenCount != len(shared) {
		t.Errorf("TokenCount = %d, want %d", c.TokenCount, len(shared))
	}
	if len(c.Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(c.Occurrences))
	}
	if c.Occurrences[0].File != "a.go" || c.Occurrences[1].File != "b.go" {
		t.Errorf("occurrence files = %s, %s", c.Occurrences[0].File, c.Occurrences[1].File)
	}
	// a.go: shared starts after 4 filler tokens, so line 5.
	if c.Occurrences[0].StartLine != 5 {
		t.Errorf("a.go StartLine = %d, want 5", c.Occurrences[0].StartLine)
	}
	if c.Occurrences[1].StartLine != 1 {
		t.Errorf("b.go StartLine = %d, want 1", c.Occurrences[1].StartLine)
	}
}

func TestMergeClustersNoDuplicates(t *testing.T) {
	w := 3
	a := streamOf("a.go", w, seq("a", 10)...)
	b := streamOf("b.go", w, seq("b", 10)...)

	if clusters := mergeClusters([]fileStream{a, b}, w); len(clusters) != 0 {
		t.Errorf("clusters = %d, want 0", len(clusters))
	}
}

func TestMergeClustersMaximality(t *testing.T) {
	w := 3
	shared := seq("s", 10)
	a := streamOf("a.go", w, shared...)
	b := streamOf("b.go", w, shared...)

	clusters := mergeClusters([]fileStream{a, b}, w)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1 maximal block, got %+v", len(clusters), clusters)
	}
	if clusters[0].TokenCount != 10 {
		t.Errorf("TokenCount = %d, want the full 10-token run", clusters[0].TokenCount)
	}
}

func TestMergeClustersSubBlockWithExtraOccurrence(t *testing.T) {
	w := 3
	long := seq("s", 8)
	mid := long[2:6]

	a := streamOf("a.go", w, long...)
	b := streamOf("b.go", w, long...)
	c := streamOf("c.go", w, append(seq("c", 3), mid...)...)

	clusters := mergeClusters([]fileStream{a, b, c}, w)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2 (full block and wider sub-block)", len(clusters))
	}

	var full, sub *Cluster
	for i := range clusters {
		if clusters[i].TokenCount == 8 {
			full = &clusters[i]
		}
		if clusters[i].TokenCount == 4 {
			sub = &clusters[i]
		}
	}
	if full == nil || len(full.Occurrences) != 2 {
		t.Errorf("full block missing or wrong occurrences: %+v", clusters)
	}
	if sub == nil || len(sub.Occurrences) != 3 {
		t.Errorf("sub block with extra occurrence missing: %+v", clusters)
	}
}

func TestMergeClustersSameFileRepeat(t *testing.T) {
	w := 3
	block := seq("s", 4)
	forms := append(append(append([]string{}, block...), "gap", "gap2", "gap3"), block...)
	a := streamOf("a.go", w, forms...)

	clusters := mergeClusters([]fileStream{a}, w)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1 same-file cluster", len(clusters))
	}
	if len(clusters[0].Occurrences) != 2 {
		t.Errorf("occurrences = %d, want 2", len(clusters[0].Occurrences))
	}
	if clusters[0].Occurrences[0].File != "a.go" || clusters[0].Occurrences[1].File != "a.go" {
		t.Error("both occurrences should be in a.go")
	}
}

func TestMergeClustersOverlappingRunCollapses(t *testing.T) {
	w := 3
	// A run of one repeated token overlaps itself at every shift; the
	// self-overlap filter must not report a block as its own duplicate.
	forms := []string{"x", "x", "x", "x", "x", "x"}
	a := streamOf("a.go", w, forms...)

	clusters := mergeClusters([]fileStream{a}, w)
	for _, c := range clusters {
		for i, o1 := range c.Occurrences {
			for _, o2 := range c.Occurrences[i+1:] {
				if o1.File == o2.File && o1.startTok < o2.endTok && o2.startTok < o1.endTok {
					t.Errorf("cluster reports overlapping occurrences: %+v", c)
				}
			}
		}
	}
}

func TestPartitionByContent(t *testing.T) {
	w := 2
	a := streamOf("a.go", w, "p", "q", "r")
	b := streamOf("b.go", w, "p", "q", "s")

	refs := []occRef{{file: 0, start: 0}, {file: 1, start: 0}, {file: 0, start: 1}, {file: 1, start: 1}}
	classes := partitionByContent([]fileStream{a, b}, refs, w)

	if len(classes) != 3 {
		t.Fatalf("classes = %d, want 3 (pq, qr, qs)", len(classes))
	}
	if len(classes[0]) != 2 {
		t.Errorf("shared pq class = %d members, want 2", len(classes[0]))
	}
}

func TestMergeClustersDeterministic(t *testing.T) {
	w := 3
	shared := seq("s", 6)
	files := []fileStream{
		streamOf("a.go", w, append(seq("a", 5), shared...)...),
		streamOf("b.go", w, append(shared, seq("b", 5)...)...),
		streamOf("c.go", w, append(seq("c", 2), shared...)...),
	}

	first := mergeClusters(files, w)
	for run := 0; run < 5; run++ {
		again := mergeClusters(files, w)
		if len(again) != len(first) {
			t.Fatalf("run %d: cluster count %d != %d", run, len(again), len(first))
		}
		for i := range first {
			if !sameCluster(first[i], again[i]) {
				t.Fatalf("run %d: cluster %d differs", run, i)
			}
		}
	}
}

func sameCluster(a, b Cluster) bool {
	if a.TokenCount != b.TokenCount || len(a.Occurrences) != len(b.Occurrences) {
		return false
	}
	return clusterKey(a) == clusterKey(b)
}

func clusterKey(c Cluster) string {
	parts := make([]string, 0, len(c.Occurrences))
	for _, o := range c.Occurrences {
		parts = append(parts, fmt.Sprintf("%s:%d-%d", o.File, o.StartLine, o.EndLine))
	}
	return strings.Join(parts, ",")
}
