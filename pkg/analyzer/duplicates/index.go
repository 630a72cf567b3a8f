package duplicates

import (
	"sort"
	"strings"

	"github.com/augurlabs/augur/pkg/lexer"
)

// fileStream is one file's fan-in result consumed by the merge phase.
type fileStream struct {
	path   string
	tokens []lexer.Token
	forms  []string
	fps    []uint64
}

// occRef addresses a window start within the scanned file set.
type occRef struct {
	file  int
	start int
}

func refLess(a, b occRef) bool {
	if a.file != b.file {
		return a.file < b.file
	}
	return a.start < b.start
}

// candidate is a verified, forward-extended duplicate block before the
// maximality filter.
type candidate struct {
	members []occRef
	length  int
}

// mergeClusters builds the global fingerprint index and produces maximal
// duplicate clusters. Single-threaded: it needs a view across every file.
//
// Steps: index every fingerprint; for buckets with ≥2 entries, verify true
// token equality and partition into equivalence classes; greedily extend
// each class forward while all members stay equal; discard blocks contained
// in an already-retained block.
func mergeClusters(files []fileStream, w int) []Cluster {
	index := make(map[uint64][]occRef)
	for fi := range files {
		for s := range files[fi].fps {
			h := files[fi].fps[s]
			index[h] = append(index[h], occRef{file: fi, start: s})
		}
	}

	// Deterministic bucket order regardless of map iteration: each window
	// start belongs to exactly one bucket, so first refs are unique keys.
	var buckets [][]occRef
	for _, refs := range index {
		if len(refs) < 2 {
			continue
		}
		sort.Slice(refs, func(i, j int) bool { return refLess(refs[i], refs[j]) })
		buckets = append(buckets, refs)
	}
	sort.Slice(buckets, func(i, j int) bool { return refLess(buckets[i][0], buckets[j][0]) })

	var cands []candidate
	covered := make(map[occRef]int)

	for _, refs := range buckets {
		for _, members := range partitionByContent(files, refs, w) {
			if len(members) < 2 {
				continue
			}
			// A window set fully inside one earlier candidate is that
			// block's shifted alignment; the containment filter would
			// discard it anyway.
			if id, ok := coveredBy(covered, members); ok && len(members) <= len(cands[id].members) {
				continue
			}

			length := extendForward(files, members, w)
			members = dropSelfOverlaps(members, length)
			if len(members) < 2 {
				continue
			}

			id := len(cands)
			cands = append(cands, candidate{members: members, length: length})
			for _, m := range members {
				for k := 0; k <= length-w; k++ {
					key := occRef{file: m.file, start: m.start + k}
					if _, exists := covered[key]; !exists {
						covered[key] = id
					}
				}
			}
		}
	}

	clusters := make([]Cluster, 0, len(cands))
	for _, c := range cands {
		clusters = append(clusters, toCluster(files, c))
	}
	return filterMaximal(clusters)
}

// partitionByContent splits a hash bucket into equivalence classes of
// genuinely equal windows. Hash equality alone is never trusted.
func partitionByContent(files []fileStream, refs []occRef, w int) [][]occRef {
	classes := make(map[string][]occRef)
	var order []string
	for _, r := range refs {
		forms := files[r.file].forms[r.start : r.start+w]
		key := strings.Join(forms, "\x00")
		if _, ok := classes[key]; !ok {
			order = append(order, key)
		}
		classes[key] = append(classes[key], r)
	}

	out := make([][]occRef, 0, len(order))
	for _, key := range order {
		out = append(out, classes[key])
	}
	return out
}

// extendForward grows the window one token at a time while every member
// remains equal at the new position, returning the maximal common length.
func extendForward(files []fileStream, members []occRef, w int) int {
	length := w
	first := members[0]
	for {
		nextIdx := first.start + length
		if nextIdx >= len(files[first.file].forms) {
			return length
		}
		next := files[first.file].forms[nextIdx]
		for _, m := range members[1:] {
			mi := m.start + length
			if mi >= len(files[m.file].forms) || files[m.file].forms[mi] != next {
				return length
			}
		}
		length++
	}
}

// dropSelfOverlaps removes members that overlap an earlier member in the
// same file after extension. Periodic token runs would otherwise report a
// block as its own duplicate.
func dropSelfOverlaps(members []occRef, length int) []occRef {
	kept := make([]occRef, 0, len(members))
	for _, m := range members {
		overlaps := false
		for _, k := range kept {
			if k.file == m.file && m.start < k.start+length && k.start < m.start+length {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	return kept
}

// coveredBy reports whether every member maps to the same earlier candidate.
func coveredBy(covered map[occRef]int, members []occRef) (int, bool) {
	id, ok := covered[members[0]]
	if !ok {
		return 0, false
	}
	for _, m := range members[1:] {
		if mid, ok := covered[m]; !ok || mid != id {
			return 0, false
		}
	}
	return id, true
}

func toCluster(files []fileStream, c candidate) Cluster {
	occs := make([]Occurrence, 0, len(c.members))
	for _, m := range c.members {
		toks := files[m.file].tokens
		occs = append(occs, Occurrence{
			File:      files[m.file].path,
			StartLine: toks[m.start].StartLine,
			EndLine:   toks[m.start+c.length-1].EndLine,
			fileIdx:   m.file,
			startTok:  m.start,
			endTok:    m.start + c.length,
		})
	}
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].File != occs[j].File {
			return occs[i].File < occs[j].File
		}
		return occs[i].StartLine < occs[j].StartLine
	})

	return Cluster{
		TokenCount:  c.length,
		Lines:       occs[0].Lines(),
		Occurrences: occs,
	}
}

// filterMaximal keeps only clusters not fully contained (occurrence set and
// ranges) within another retained cluster.
func filterMaximal(clusters []Cluster) []Cluster {
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].TokenCount != clusters[j].TokenCount {
			return clusters[i].TokenCount > clusters[j].TokenCount
		}
		a, b := clusters[i].Occurrences[0], clusters[j].Occurrences[0]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.StartLine < b.StartLine
	})

	kept := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		contained := false
		for _, k := range kept {
			if containsCluster(k, c) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i].Occurrences[0], kept[j].Occurrences[0]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return kept[i].TokenCount > kept[j].TokenCount
	})
	return kept
}

// containsCluster reports whether every occurrence of inner lies within an
// occurrence of outer and inner brings no additional occurrences.
func containsCluster(outer, inner Cluster) bool {
	if len(inner.Occurrences) > len(outer.Occurrences) {
		return false
	}
	for _, io := range inner.Occurrences {
		found := false
		for _, oo := range outer.Occurrences {
			if io.fileIdx == oo.fileIdx && io.startTok >= oo.startTok && io.endTok <= oo.endTok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
